package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderlinehq/backend/pkg/db/models"
	"github.com/orderlinehq/backend/pkg/enums"
)

type orderView struct {
	ID              uuid.UUID         `json:"id"`
	OrderNumber     int64             `json:"order_number"`
	AgentID         uuid.UUID         `json:"agent_id"`
	DealerID        uuid.UUID         `json:"dealer_id"`
	Status          enums.OrderStatus `json:"status"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	TaxRate         decimal.Decimal   `json:"tax_rate"`
	TaxAmount       decimal.Decimal   `json:"tax_amount"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	RejectionReason *string           `json:"rejection_reason,omitempty"`
	Lines           []orderLineView   `json:"lines"`
	CreatedAt       time.Time         `json:"created_at"`
	DecidedAt       *time.Time        `json:"decided_at,omitempty"`
	DecidedBy       *uuid.UUID        `json:"decided_by,omitempty"`
}

type orderLineView struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	FOCQty      int             `json:"foc_qty"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

func toOrderView(order *models.Order) orderView {
	lines := make([]orderLineView, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineView{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Qty:         line.Qty,
			UnitPrice:   line.UnitPrice,
			FOCQty:      line.FOCQty,
			LineTotal:   line.LineTotal,
		})
	}
	return orderView{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		AgentID:         order.AgentID,
		DealerID:        order.DealerID,
		Status:          order.Status,
		Subtotal:        order.Subtotal,
		TaxRate:         order.TaxRate,
		TaxAmount:       order.TaxAmount,
		TotalAmount:     order.TotalAmount,
		RejectionReason: order.RejectionReason,
		Lines:           lines,
		CreatedAt:       order.CreatedAt,
		DecidedAt:       order.DecidedAt,
		DecidedBy:       order.DecidedBy,
	}
}
