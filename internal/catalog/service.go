package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orderlinehq/backend/pkg/db/models"
	pkgerrors "github.com/orderlinehq/backend/pkg/errors"
)

// Service exposes catalog reads to the pricing engine and the API layer.
type Service interface {
	Snapshot(ctx context.Context, productID uuid.UUID) (*ProductSnapshot, error)
	Snapshots(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]ProductSnapshot, error)
	ListProducts(ctx context.Context) ([]ProductSnapshot, error)
	EnsureDealer(ctx context.Context, dealerID uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService builds a catalog service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Snapshot(ctx context.Context, productID uuid.UUID) (*ProductSnapshot, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	snapshot := toSnapshot(*product)
	return &snapshot, nil
}

// Snapshots loads a batch of products keyed by ID. Missing IDs are simply
// absent from the result; callers decide whether that is an error.
func (s *service) Snapshots(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]ProductSnapshot, error) {
	unique := dedupeIDs(productIDs)
	if len(unique) == 0 {
		return map[uuid.UUID]ProductSnapshot{}, nil
	}
	products, err := s.repo.FindProductsByIDs(ctx, unique)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	out := make(map[uuid.UUID]ProductSnapshot, len(products))
	for _, product := range products {
		out[product.ID] = toSnapshot(product)
	}
	return out, nil
}

func (s *service) ListProducts(ctx context.Context) ([]ProductSnapshot, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := make([]ProductSnapshot, 0, len(products))
	for _, product := range products {
		out = append(out, toSnapshot(product))
	}
	return out, nil
}

func (s *service) EnsureDealer(ctx context.Context, dealerID uuid.UUID) error {
	if dealerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "dealer id required")
	}
	if _, err := s.repo.FindDealer(ctx, dealerID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "dealer not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dealer")
	}
	return nil
}

func toSnapshot(product models.Product) ProductSnapshot {
	tiers := make([]FOCTier, 0, len(product.FOCTiers))
	for _, tier := range product.FOCTiers {
		tiers = append(tiers, FOCTier{
			Threshold: tier.Threshold,
			FreeUnits: tier.FreeUnits,
		})
	}
	// Preload orders by threshold already; sort again so callers never depend
	// on the load path.
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Threshold < tiers[j].Threshold })
	return ProductSnapshot{
		ID:       product.ID,
		SKU:      product.SKU,
		Name:     product.Name,
		MRP:      product.MRP,
		PTR:      product.PTR,
		PTS:      product.PTS,
		FOCTiers: tiers,
	}
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
