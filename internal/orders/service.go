package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/orderlinehq/backend/internal/catalog"
	"github.com/orderlinehq/backend/internal/idempotency"
	"github.com/orderlinehq/backend/internal/pricing"
	"github.com/orderlinehq/backend/internal/stock"
	"github.com/orderlinehq/backend/pkg/db/models"
	"github.com/orderlinehq/backend/pkg/enums"
	pkgerrors "github.com/orderlinehq/backend/pkg/errors"
	"github.com/orderlinehq/backend/pkg/logger"
	"github.com/orderlinehq/backend/pkg/metrics"
	"github.com/orderlinehq/backend/pkg/outbox"
	"github.com/orderlinehq/backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service drives the order lifecycle: create a pending order with stock
// blocked against it, then confirm or reject it exactly once.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
	Approve(ctx context.Context, input DecisionInput) error
	Reject(ctx context.Context, input DecisionInput) error
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	catalog catalog.Service
	pricer  pricing.Engine
	ledger  stock.Ledger
	guard   idempotency.Guard
	outbox  outboxPublisher
	metrics *metrics.OrderMetrics
	logg    *logger.Logger

	releaseRetryAttempts int
	releaseRetryDelay    time.Duration
}

// Options bundles the workflow tuning knobs.
type Options struct {
	ReleaseRetryAttempts int
	ReleaseRetryDelay    time.Duration
}

// NewService builds the order workflow service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	catalogSvc catalog.Service,
	pricer pricing.Engine,
	ledger stock.Ledger,
	guard idempotency.Guard,
	outboxSvc outboxPublisher,
	orderMetrics *metrics.OrderMetrics,
	logg *logger.Logger,
	opts Options,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if pricer == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if opts.ReleaseRetryAttempts <= 0 {
		opts.ReleaseRetryAttempts = 3
	}
	if opts.ReleaseRetryDelay <= 0 {
		opts.ReleaseRetryDelay = 50 * time.Millisecond
	}
	return &service{
		repo:                 repo,
		tx:                   tx,
		catalog:              catalogSvc,
		pricer:               pricer,
		ledger:               ledger,
		guard:                guard,
		outbox:               outboxSvc,
		metrics:              orderMetrics,
		logg:                 logg,
		releaseRetryAttempts: opts.ReleaseRetryAttempts,
		releaseRetryDelay:    opts.ReleaseRetryDelay,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	start := time.Now()
	if input.AgentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent id required")
	}
	if input.DealerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dealer id required")
	}

	started, prior, err := s.guard.Begin(ctx, input.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if !started {
		return s.replayOutcome(prior)
	}

	result, err := s.createOrder(ctx, input)
	if err != nil {
		s.resolveCreateFailure(ctx, input.IdempotencyKey, err)
		if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeInsufficientStock {
			s.metrics.IncInsufficientStock()
		}
		return nil, err
	}

	s.metrics.IncCreated()
	s.metrics.ObserveCreateDuration(time.Since(start))
	return result, nil
}

// replayOutcome serves a request whose key was already claimed. Resolved keys
// return their first outcome verbatim; an in-flight key is a conflict, not a
// wait.
func (s *service) replayOutcome(prior *models.IdempotencyRecord) (*CreateResult, error) {
	if prior == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency record missing")
	}
	switch prior.Status {
	case enums.IdempotencyStatusSucceeded:
		if prior.OrderID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "resolved key has no order")
		}
		s.metrics.IncIdempotentReplay()
		return &CreateResult{OrderID: *prior.OrderID, Replayed: true}, nil
	case enums.IdempotencyStatusFailed:
		code := pkgerrors.CodeInternal
		message := "create order failed"
		if prior.ErrorCode != nil {
			code = pkgerrors.ParseCode(*prior.ErrorCode)
		}
		if prior.ErrorMessage != nil {
			message = *prior.ErrorMessage
		}
		s.metrics.IncIdempotentReplay()
		return nil, pkgerrors.New(code, message)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is in progress")
	}
}

func (s *service) createOrder(ctx context.Context, input CreateInput) (*CreateResult, error) {
	// Catalog reads and pricing happen strictly before the stock critical
	// section.
	if err := s.catalog.EnsureDealer(ctx, input.DealerID); err != nil {
		return nil, err
	}

	priceLines := make([]pricing.LineInput, 0, len(input.Lines))
	for _, line := range input.Lines {
		priceLines = append(priceLines, pricing.LineInput{ProductID: line.ProductID, Qty: line.Qty})
	}
	quote, err := s.pricer.Price(ctx, priceLines)
	if err != nil {
		return nil, err
	}

	blockLines := make([]stock.BlockLine, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		blockLines = append(blockLines, stock.BlockLine{ProductID: line.ProductID, Qty: line.Qty})
	}
	reservation, err := s.ledger.Block(ctx, input.DealerID, blockLines)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:            uuid.New(),
		AgentID:       input.AgentID,
		DealerID:      input.DealerID,
		ReservationID: reservation.ID,
		Subtotal:      quote.Subtotal,
		TaxRate:       quote.TaxRate,
		TaxAmount:     quote.TaxAmount,
		TotalAmount:   quote.Total,
		Status:        enums.OrderStatusPending,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		orderLines := make([]models.OrderLine, 0, len(quote.Lines))
		for position, line := range quote.Lines {
			orderLines = append(orderLines, models.OrderLine{
				ID:          uuid.New(),
				OrderID:     order.ID,
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Qty:         line.Qty,
				UnitPrice:   line.UnitPrice,
				FOCQty:      line.FOCQty,
				LineTotal:   line.LineTotal,
				Position:    position,
			})
		}
		if err := repo.CreateOrderLines(ctx, orderLines); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order lines")
		}

		if err := s.guard.ResolveSuccessTx(ctx, tx, input.IdempotencyKey, order.ID); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{ActorID: input.AgentID, Role: "agent"},
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				DealerID:    input.DealerID,
				AgentID:     input.AgentID,
				TotalAmount: quote.Total,
			},
		})
	})
	if err != nil {
		// The block succeeded in its own transaction; compensate so stock
		// never leaks under a failed persist.
		if releaseErr := s.releaseWithRetry(ctx, reservation.ID); releaseErr != nil {
			err = multierr.Append(err, releaseErr)
		}
		if s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "order persist failed, reservation compensated", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order failed")
	}

	return &CreateResult{OrderID: order.ID}, nil
}

func (s *service) releaseWithRetry(ctx context.Context, reservationID uuid.UUID) error {
	var errs error
	for attempt := 1; attempt <= s.releaseRetryAttempts; attempt++ {
		err := s.ledger.Release(ctx, reservationID)
		if err == nil {
			return nil
		}
		errs = multierr.Append(errs, fmt.Errorf("release attempt %d: %w", attempt, err))
		if attempt < s.releaseRetryAttempts {
			time.Sleep(s.releaseRetryDelay)
		}
	}
	return errs
}

// resolveCreateFailure pins the key to the failure so retries replay it
// instead of repeating pricing and blocking.
func (s *service) resolveCreateFailure(ctx context.Context, key string, cause error) {
	code := pkgerrors.CodeInternal
	message := "create order failed"
	if appErr := pkgerrors.As(cause); appErr != nil {
		code = appErr.Code()
		message = appErr.Message()
	}
	if err := s.guard.ResolveFailure(ctx, key, code, message); err != nil && s.logg != nil {
		s.logg.Error(ctx, "resolve idempotency failure", err)
	}
}

func (s *service) Approve(ctx context.Context, input DecisionInput) error {
	return s.decide(ctx, input, enums.OrderStatusConfirmed)
}

func (s *service) Reject(ctx context.Context, input DecisionInput) error {
	return s.decide(ctx, input, enums.OrderStatusRejected)
}

func (s *service) decide(ctx context.Context, input DecisionInput, target enums.OrderStatus) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ApproverID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "approver id required")
	}

	started := false
	if input.IdempotencyKey != "" {
		var prior *models.IdempotencyRecord
		var err error
		started, prior, err = s.guard.Begin(ctx, input.IdempotencyKey)
		if err != nil {
			return err
		}
		if !started {
			_, err := s.replayOutcome(prior)
			return err
		}
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !order.Status.CanTransitionTo(target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already decided").
				WithDetails(map[string]any{
					"order_id": order.ID,
					"status":   order.Status,
				})
		}

		updates := map[string]any{
			"decided_at": time.Now(),
			"decided_by": input.ApproverID,
		}
		if target == enums.OrderStatusRejected && input.Reason != "" {
			updates["rejection_reason"] = input.Reason
		}
		// Exactly one concurrent decider wins the pending -> terminal CAS.
		won, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPending, target, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition order status")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already decided").
				WithDetails(map[string]any{"order_id": order.ID})
		}

		if target == enums.OrderStatusConfirmed {
			if err := s.ledger.CommitTx(ctx, tx, order.ReservationID); err != nil {
				return err
			}
		} else {
			if err := s.ledger.ReleaseTx(ctx, tx, order.ReservationID); err != nil {
				return err
			}
		}

		if input.IdempotencyKey != "" {
			if err := s.guard.ResolveSuccessTx(ctx, tx, input.IdempotencyKey, order.ID); err != nil {
				return err
			}
		}

		return s.emitDecision(ctx, tx, order, input, target)
	})
	if err != nil {
		if started {
			s.resolveCreateFailure(ctx, input.IdempotencyKey, err)
		}
		return err
	}

	s.metrics.IncDecided(string(target))
	return nil
}

func (s *service) emitDecision(ctx context.Context, tx *gorm.DB, order *models.Order, input DecisionInput, target enums.OrderStatus) error {
	actor := &outbox.ActorRef{ActorID: input.ApproverID, Role: "approver"}
	if target == enums.OrderStatusConfirmed {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.OrderConfirmedEvent{
				OrderID:    order.ID,
				DealerID:   order.DealerID,
				ApproverID: input.ApproverID,
			},
		})
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderRejected,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.OrderRejectedEvent{
			OrderID:    order.ID,
			DealerID:   order.DealerID,
			ApproverID: input.ApproverID,
			Reason:     input.Reason,
		},
	})
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
