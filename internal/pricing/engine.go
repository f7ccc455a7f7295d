package pricing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderlinehq/backend/internal/catalog"
	pkgerrors "github.com/orderlinehq/backend/pkg/errors"
)

// DefaultTaxRate is applied to every quote. Orderline bills a flat 5%.
var DefaultTaxRate = decimal.RequireFromString("0.05")

const moneyPlaces = 2

// LineInput is one requested product quantity.
type LineInput struct {
	ProductID uuid.UUID
	Qty       int
}

// QuoteLine is the priced form of one input line. FOC units ride along free of
// charge and never contribute to the line total.
type QuoteLine struct {
	ProductID   uuid.UUID
	ProductName string
	Qty         int
	UnitPrice   decimal.Decimal
	FOCQty      int
	LineTotal   decimal.Decimal
}

// Quote is the full priced order. Rounding happens once, at the
// subtotal/tax/total level; line totals stay unrounded products of qty and PTR.
type Quote struct {
	Lines     []QuoteLine
	Subtotal  decimal.Decimal
	TaxRate   decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// Engine prices order lines against catalog snapshots.
type Engine interface {
	Price(ctx context.Context, lines []LineInput) (*Quote, error)
}

type engine struct {
	catalog catalog.Service
	taxRate decimal.Decimal
}

// NewEngine builds a pricing engine over the catalog service.
func NewEngine(catalogSvc catalog.Service) (Engine, error) {
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	return &engine{catalog: catalogSvc, taxRate: DefaultTaxRate}, nil
}

func (e *engine) Price(ctx context.Context, lines []LineInput) (*Quote, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order line required")
	}

	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{
					"product_id": line.ProductID,
					"qty":        line.Qty,
				})
		}
		if _, dup := seen[line.ProductID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product line").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}

	snapshots, err := e.catalog.Snapshots(ctx, ids)
	if err != nil {
		return nil, err
	}

	quote := &Quote{
		Lines:   make([]QuoteLine, 0, len(lines)),
		TaxRate: e.taxRate,
	}
	subtotal := decimal.Zero
	for _, line := range lines {
		snapshot, ok := snapshots[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown product").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		lineTotal := snapshot.PTR.Mul(decimal.NewFromInt(int64(line.Qty)))
		quote.Lines = append(quote.Lines, QuoteLine{
			ProductID:   snapshot.ID,
			ProductName: snapshot.Name,
			Qty:         line.Qty,
			UnitPrice:   snapshot.PTR,
			FOCQty:      focUnitsFor(snapshot.FOCTiers, line.Qty),
			LineTotal:   lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	quote.Subtotal = subtotal.Round(moneyPlaces)
	quote.TaxAmount = quote.Subtotal.Mul(e.taxRate).Round(moneyPlaces)
	quote.Total = quote.Subtotal.Add(quote.TaxAmount)
	return quote, nil
}

// focUnitsFor picks the highest tier whose threshold the ordered quantity
// meets. Tiers between thresholds grant the lower tier's units, not a
// proportional amount.
func focUnitsFor(tiers []catalog.FOCTier, qty int) int {
	free := 0
	best := -1
	for _, tier := range tiers {
		if qty >= tier.Threshold && tier.Threshold > best {
			best = tier.Threshold
			free = tier.FreeUnits
		}
	}
	return free
}
