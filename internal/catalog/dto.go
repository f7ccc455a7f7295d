package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FOCTier is one rung of a free-of-cost scheme. Ordering at least Threshold
// paid units grants FreeUnits extra units.
type FOCTier struct {
	Threshold int `json:"threshold"`
	FreeUnits int `json:"free_units"`
}

// ProductSnapshot is the read-only view the pricing engine consumes. Tiers are
// sorted by ascending threshold.
type ProductSnapshot struct {
	ID       uuid.UUID       `json:"id"`
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	MRP      decimal.Decimal `json:"mrp"`
	PTR      decimal.Decimal `json:"ptr"`
	PTS      decimal.Decimal `json:"pts"`
	FOCTiers []FOCTier       `json:"foc_tiers"`
}
