package orders

import (
	"github.com/google/uuid"
)

// LineItemInput is one requested product quantity on a create call.
type LineItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0"`
}

// CreateInput carries everything needed to create a pending order.
type CreateInput struct {
	AgentID        uuid.UUID
	DealerID       uuid.UUID
	Lines          []LineItemInput
	IdempotencyKey string
}

// DecisionInput identifies the order being decided and who decides it.
// IdempotencyKey is optional; when present, retries replay the first outcome.
type DecisionInput struct {
	OrderID        uuid.UUID
	ApproverID     uuid.UUID
	Reason         string
	IdempotencyKey string
}

// CreateResult is the outcome of a create call. Replayed is true when the
// response was served from a previously resolved idempotency key.
type CreateResult struct {
	OrderID  uuid.UUID
	Replayed bool
}
