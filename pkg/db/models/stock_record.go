package models

import (
	"time"

	"github.com/google/uuid"
)

// StockRecord tracks available/blocked counts per (dealer, product). Mutated
// exclusively by the stock ledger through guarded updates; available_qty and
// blocked_qty never go negative.
type StockRecord struct {
	DealerID     uuid.UUID `gorm:"column:dealer_id;type:uuid;primaryKey"`
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	BlockedQty   int       `gorm:"column:blocked_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
