package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/orderlinehq/backend/api/responses"
	"github.com/orderlinehq/backend/internal/catalog"
	"github.com/orderlinehq/backend/internal/stock"
	pkgerrors "github.com/orderlinehq/backend/pkg/errors"
	"github.com/orderlinehq/backend/pkg/logger"
)

// ProductList returns every catalog product with its FOC tiers.
func ProductList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		products, err := svc.ListProducts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

// ProductDetail returns one product snapshot. When a dealer_id query parameter
// is supplied the dealer's stock position is included.
func ProductDetail(svc catalog.Service, ledger stock.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		rawProductID := strings.TrimSpace(chi.URLParam(r, "productId"))
		if rawProductID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id is required"))
			return
		}
		productID, err := uuid.Parse(rawProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		snapshot, err := svc.Snapshot(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rawDealerID := strings.TrimSpace(r.URL.Query().Get("dealer_id"))
		if rawDealerID == "" || ledger == nil {
			responses.WriteSuccess(w, productDetailResponse{Product: *snapshot})
			return
		}

		dealerID, err := uuid.Parse(rawDealerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dealer id"))
			return
		}

		record, err := ledger.Availability(r.Context(), dealerID, productID)
		if err != nil {
			if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeNotFound {
				// No ledger row means the dealer simply has no stock yet.
				responses.WriteSuccess(w, productDetailResponse{
					Product: *snapshot,
					Stock:   &stockView{},
				})
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, productDetailResponse{
			Product: *snapshot,
			Stock: &stockView{
				AvailableQty: record.AvailableQty,
				BlockedQty:   record.BlockedQty,
			},
		})
	}
}

type productDetailResponse struct {
	Product catalog.ProductSnapshot `json:"product"`
	Stock   *stockView              `json:"stock,omitempty"`
}

type stockView struct {
	AvailableQty int `json:"available_qty"`
	BlockedQty   int `json:"blocked_qty"`
}
