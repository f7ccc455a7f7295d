package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/orderlinehq/backend/pkg/db/models"
	pkgerrors "github.com/orderlinehq/backend/pkg/errors"
)

type stubCatalogRepo struct {
	products map[uuid.UUID]*models.Product
	dealers  map[uuid.UUID]*models.Dealer
}

func (s *stubCatalogRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubCatalogRepo) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if product, ok := s.products[productID]; ok {
		return product, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCatalogRepo) FindProductsByIDs(ctx context.Context, productIDs []uuid.UUID) ([]models.Product, error) {
	out := []models.Product{}
	for _, id := range productIDs {
		if product, ok := s.products[id]; ok {
			out = append(out, *product)
		}
	}
	return out, nil
}

func (s *stubCatalogRepo) FindProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	for _, product := range s.products {
		if product.SKU == sku {
			return product, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCatalogRepo) ListProducts(ctx context.Context) ([]models.Product, error) {
	out := make([]models.Product, 0, len(s.products))
	for _, product := range s.products {
		out = append(out, *product)
	}
	return out, nil
}

func (s *stubCatalogRepo) FindDealer(ctx context.Context, dealerID uuid.UUID) (*models.Dealer, error) {
	if dealer, ok := s.dealers[dealerID]; ok {
		return dealer, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func newTestProduct(sku string, tiers ...models.ProductFOCTier) *models.Product {
	return &models.Product{
		ID:       uuid.New(),
		SKU:      sku,
		Name:     "Product " + sku,
		MRP:      decimal.NewFromInt(120),
		PTR:      decimal.NewFromInt(100),
		PTS:      decimal.NewFromInt(90),
		FOCTiers: tiers,
	}
}

func TestSnapshotSortsTiersByThreshold(t *testing.T) {
	product := newTestProduct("SKU-1",
		models.ProductFOCTier{Threshold: 50, FreeUnits: 6},
		models.ProductFOCTier{Threshold: 10, FreeUnits: 1},
	)
	repo := &stubCatalogRepo{products: map[uuid.UUID]*models.Product{product.ID: product}}
	svc, err := NewService(repo)
	require.NoError(t, err)

	snapshot, err := svc.Snapshot(context.Background(), product.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.FOCTiers, 2)
	assert.Equal(t, 10, snapshot.FOCTiers[0].Threshold)
	assert.Equal(t, 50, snapshot.FOCTiers[1].Threshold)
	assert.True(t, snapshot.PTR.Equal(decimal.NewFromInt(100)))
}

func TestSnapshotRequiresProductID(t *testing.T) {
	svc, err := NewService(&stubCatalogRepo{})
	require.NoError(t, err)

	_, err = svc.Snapshot(context.Background(), uuid.Nil)
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestSnapshotMapsNotFound(t *testing.T) {
	svc, err := NewService(&stubCatalogRepo{products: map[uuid.UUID]*models.Product{}})
	require.NoError(t, err)

	_, err = svc.Snapshot(context.Background(), uuid.New())
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestSnapshotsDeduplicatesAndSkipsMissing(t *testing.T) {
	product := newTestProduct("SKU-2")
	repo := &stubCatalogRepo{products: map[uuid.UUID]*models.Product{product.ID: product}}
	svc, err := NewService(repo)
	require.NoError(t, err)

	missing := uuid.New()
	out, err := svc.Snapshots(context.Background(), []uuid.UUID{product.ID, product.ID, missing, uuid.Nil})
	require.NoError(t, err)
	require.Len(t, out, 1)
	_, ok := out[product.ID]
	assert.True(t, ok)
	_, ok = out[missing]
	assert.False(t, ok)
}

func TestEnsureDealer(t *testing.T) {
	dealer := &models.Dealer{ID: uuid.New(), Name: "North Pharma"}
	svc, err := NewService(&stubCatalogRepo{dealers: map[uuid.UUID]*models.Dealer{dealer.ID: dealer}})
	require.NoError(t, err)

	require.NoError(t, svc.EnsureDealer(context.Background(), dealer.ID))

	err = svc.EnsureDealer(context.Background(), uuid.New())
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())

	err = svc.EnsureDealer(context.Background(), uuid.Nil)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}
