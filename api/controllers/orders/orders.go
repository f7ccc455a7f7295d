package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/orderlinehq/backend/api/middleware"
	"github.com/orderlinehq/backend/api/responses"
	"github.com/orderlinehq/backend/api/validators"
	internalorders "github.com/orderlinehq/backend/internal/orders"
	pkgerrors "github.com/orderlinehq/backend/pkg/errors"
	"github.com/orderlinehq/backend/pkg/logger"
)

// Create prices the requested lines, blocks stock, and persists a pending
// order on behalf of the acting agent.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		agentID, err := parseAgentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		if idempotencyKey == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCreateInput(agentID, idempotencyKey)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, createOrderResponse{
			OrderID:  result.OrderID,
			Replayed: result.Replayed,
		})
	}
}

// Approve confirms a pending order and commits its stock reservation.
func Approve(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return decisionHandler(svc, logg, func(ctx decisionContext) error {
		return svc.Approve(ctx.r.Context(), ctx.input)
	})
}

// Reject rejects a pending order and releases its stock reservation.
func Reject(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return decisionHandler(svc, logg, func(ctx decisionContext) error {
		return svc.Reject(ctx.r.Context(), ctx.input)
	})
}

// Detail returns the order with its lines in creation position.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderView(order))
	}
}

type decisionContext struct {
	r     *http.Request
	input internalorders.DecisionInput
}

func decisionHandler(svc internalorders.Service, logg *logger.Logger, decide func(decisionContext) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		approverID, err := parseApproverID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload decisionRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		input := internalorders.DecisionInput{
			OrderID:        orderID,
			ApproverID:     approverID,
			Reason:         strings.TrimSpace(payload.Reason),
			IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		}

		if err := decide(decisionContext{r: r, input: input}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

type createOrderRequest struct {
	DealerID string                   `json:"dealer_id" validate:"required,uuid"`
	Lines    []createOrderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type createOrderLineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Qty       int    `json:"qty" validate:"required,gt=0"`
}

type createOrderResponse struct {
	OrderID  uuid.UUID `json:"order_id"`
	Replayed bool      `json:"replayed"`
}

type decisionRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

func (r createOrderRequest) toCreateInput(agentID uuid.UUID, idempotencyKey string) (internalorders.CreateInput, error) {
	dealerID, err := uuid.Parse(strings.TrimSpace(r.DealerID))
	if err != nil {
		return internalorders.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dealer id")
	}

	lines := make([]internalorders.LineItemInput, 0, len(r.Lines))
	for _, line := range r.Lines {
		productID, err := uuid.Parse(strings.TrimSpace(line.ProductID))
		if err != nil {
			return internalorders.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
		}
		lines = append(lines, internalorders.LineItemInput{
			ProductID: productID,
			Qty:       line.Qty,
		})
	}

	return internalorders.CreateInput{
		AgentID:        agentID,
		DealerID:       dealerID,
		Lines:          lines,
		IdempotencyKey: idempotencyKey,
	}, nil
}

func parseAgentID(r *http.Request) (uuid.UUID, error) {
	agentID := middleware.AgentIDFromContext(r.Context())
	if agentID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "agent context missing")
	}
	parsed, err := uuid.Parse(agentID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid agent id")
	}
	return parsed, nil
}

func parseApproverID(r *http.Request) (uuid.UUID, error) {
	approverID := middleware.ApproverIDFromContext(r.Context())
	if approverID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "approver context missing")
	}
	parsed, err := uuid.Parse(approverID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid approver id")
	}
	return parsed, nil
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return parsed, nil
}
