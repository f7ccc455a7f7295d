package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product carries the immutable reference prices (MRP/PTR/PTS) and the FOC
// scheme for one SKU. The engine treats this table as read-only.
type Product struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU       string           `gorm:"column:sku;not null;uniqueIndex"`
	Name      string           `gorm:"column:name;not null"`
	MRP       decimal.Decimal  `gorm:"column:mrp;type:numeric(12,2);not null"`
	PTR       decimal.Decimal  `gorm:"column:ptr;type:numeric(12,2);not null"`
	PTS       decimal.Decimal  `gorm:"column:pts;type:numeric(12,2);not null"`
	FOCTiers  []ProductFOCTier `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
