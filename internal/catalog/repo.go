package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orderlinehq/backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("FOCTiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("threshold ASC")
		}).
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindProductsByIDs(ctx context.Context, productIDs []uuid.UUID) ([]models.Product, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).
		Preload("FOCTiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("threshold ASC")
		}).
		Where("id IN ?", productIDs).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) FindProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("FOCTiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("threshold ASC")
		}).
		Where("sku = ?", sku).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Preload("FOCTiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("threshold ASC")
		}).
		Order("sku ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) FindDealer(ctx context.Context, dealerID uuid.UUID) (*models.Dealer, error) {
	var dealer models.Dealer
	err := r.db.WithContext(ctx).
		Where("id = ?", dealerID).
		First(&dealer).Error
	if err != nil {
		return nil, err
	}
	return &dealer, nil
}
