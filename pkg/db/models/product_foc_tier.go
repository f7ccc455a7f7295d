package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductFOCTier is one rung of a product's free-of-cost scheme: ordering at
// least Threshold units grants FreeUnits extra units at no charge.
type ProductFOCTier struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_product_foc_tiers_product_threshold"`
	Threshold int       `gorm:"column:threshold;not null;uniqueIndex:ux_product_foc_tiers_product_threshold"`
	FreeUnits int       `gorm:"column:free_units;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
