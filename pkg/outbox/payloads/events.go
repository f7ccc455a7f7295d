package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCreatedEvent signals a new pending order with stock blocked against it.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	DealerID    uuid.UUID       `json:"dealer_id"`
	AgentID     uuid.UUID       `json:"agent_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// OrderConfirmedEvent is emitted when an approver confirms a pending order
// and its reservation is committed.
type OrderConfirmedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	DealerID   uuid.UUID `json:"dealer_id"`
	ApproverID uuid.UUID `json:"approver_id"`
}

// OrderRejectedEvent is emitted when an approver rejects a pending order and
// its reservation is released back to availability.
type OrderRejectedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	DealerID   uuid.UUID `json:"dealer_id"`
	ApproverID uuid.UUID `json:"approver_id"`
	Reason     string    `json:"reason,omitempty"`
}
