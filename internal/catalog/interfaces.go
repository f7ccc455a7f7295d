package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orderlinehq/backend/pkg/db/models"
)

// Repository defines persistence reads for the product and dealer tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	FindProductsByIDs(ctx context.Context, productIDs []uuid.UUID) ([]models.Product, error)
	FindProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	FindDealer(ctx context.Context, dealerID uuid.UUID) (*models.Dealer, error)
}
