package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/orderlinehq/backend/pkg/enums"
)

// IdempotencyRecord binds a caller-supplied request key to its outcome.
// Write-once per key: the first resolution wins and is returned to every
// retry, regardless of payload.
type IdempotencyRecord struct {
	Key          string                  `gorm:"column:key;primaryKey"`
	Status       enums.IdempotencyStatus `gorm:"column:status;type:idempotency_status;not null;default:'in_progress'"`
	OrderID      *uuid.UUID              `gorm:"column:order_id;type:uuid"`
	ErrorCode    *string                 `gorm:"column:error_code"`
	ErrorMessage *string                 `gorm:"column:error_message"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
	ResolvedAt   *time.Time              `gorm:"column:resolved_at"`
}
