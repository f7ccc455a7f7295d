package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderlinehq/backend/pkg/enums"
)

// Order is the priced, stock-backed result of a create call. Orders are never
// deleted; confirmed and rejected rows are terminal audit records.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber     int64             `gorm:"column:order_number;not null;default:0"`
	AgentID         uuid.UUID         `gorm:"column:agent_id;type:uuid;not null"`
	DealerID        uuid.UUID         `gorm:"column:dealer_id;type:uuid;not null;index"`
	ReservationID   uuid.UUID         `gorm:"column:reservation_id;type:uuid;not null"`
	Subtotal        decimal.Decimal   `gorm:"column:subtotal;type:numeric(14,2);not null"`
	TaxRate         decimal.Decimal   `gorm:"column:tax_rate;type:numeric(5,4);not null"`
	TaxAmount       decimal.Decimal   `gorm:"column:tax_amount;type:numeric(14,2);not null"`
	TotalAmount     decimal.Decimal   `gorm:"column:total_amount;type:numeric(14,2);not null"`
	Status          enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	RejectionReason *string           `gorm:"column:rejection_reason"`
	Lines           []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
	DecidedAt       *time.Time        `gorm:"column:decided_at"`
	DecidedBy       *uuid.UUID        `gorm:"column:decided_by;type:uuid"`
}

// OrderLine captures the priced request for one product. Unit price and FOC
// quantity are copied in at creation time and never re-derived.
type OrderLine struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	Qty         int             `gorm:"column:qty;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	FOCQty      int             `gorm:"column:foc_qty;not null;default:0"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(14,2);not null"`
	Position    int             `gorm:"column:position;not null;default:0"`
}
