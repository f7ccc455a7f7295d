package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orderlinehq/backend/internal/catalog"
	"github.com/orderlinehq/backend/internal/idempotency"
	"github.com/orderlinehq/backend/internal/pricing"
	"github.com/orderlinehq/backend/internal/stock"
	"github.com/orderlinehq/backend/pkg/db/models"
	"github.com/orderlinehq/backend/pkg/enums"
	pkgerrors "github.com/orderlinehq/backend/pkg/errors"
	"github.com/orderlinehq/backend/pkg/outbox"
)

type gormRunner struct {
	db *gorm.DB
}

func (r gormRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupWorkflowTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:workflow_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS dealers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  city TEXT,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  sku TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  mrp NUMERIC NOT NULL,
  ptr NUMERIC NOT NULL,
  pts NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS product_foc_tiers (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  threshold INTEGER NOT NULL,
  free_units INTEGER NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS stock_records (
  dealer_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  available_qty INTEGER NOT NULL DEFAULT 0,
  blocked_qty INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME,
  PRIMARY KEY (dealer_id, product_id)
);`,
		`CREATE TABLE IF NOT EXISTS stock_reservations (
  id TEXT PRIMARY KEY,
  dealer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'held',
  created_at DATETIME,
  finalized_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS stock_reservation_lines (
  id TEXT PRIMARY KEY,
  reservation_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  qty INTEGER NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number INTEGER NOT NULL DEFAULT 0,
  agent_id TEXT NOT NULL,
  dealer_id TEXT NOT NULL,
  reservation_id TEXT NOT NULL,
  subtotal NUMERIC NOT NULL,
  tax_rate NUMERIC NOT NULL,
  tax_amount NUMERIC NOT NULL,
  total_amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  rejection_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  decided_at DATETIME,
  decided_by TEXT
);`,
		`CREATE TABLE IF NOT EXISTS order_lines (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  qty INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  foc_qty INTEGER NOT NULL DEFAULT 0,
  line_total NUMERIC NOT NULL,
  position INTEGER NOT NULL DEFAULT 0
);`,
		`CREATE TABLE IF NOT EXISTS idempotency_records (
  key TEXT PRIMARY KEY,
  status TEXT NOT NULL DEFAULT 'in_progress',
  order_id TEXT,
  error_code TEXT,
  error_message TEXT,
  created_at DATETIME,
  resolved_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type workflowFixture struct {
	db        *gorm.DB
	svc       Service
	ledger    stock.Ledger
	dealerID  uuid.UUID
	productID uuid.UUID
}

// newWorkflowFixture wires real repositories, ledger, guard and outbox over a
// single sqlite database: dealer with 20 on hand, product at PTR 100 with FOC
// scheme {10 -> 1, 50 -> 6}.
func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	db := setupWorkflowTestDB(t)
	runner := gormRunner{db: db}

	dealer := models.Dealer{ID: uuid.New(), Name: "North Pharma"}
	require.NoError(t, db.Create(&dealer).Error)

	product := models.Product{
		ID:   uuid.New(),
		SKU:  "AMX-500",
		Name: "Amoxicillin 500",
		MRP:  decimal.NewFromInt(120),
		PTR:  decimal.NewFromInt(100),
		PTS:  decimal.NewFromInt(90),
	}
	require.NoError(t, db.Create(&product).Error)
	tiers := []models.ProductFOCTier{
		{ID: uuid.New(), ProductID: product.ID, Threshold: 10, FreeUnits: 1},
		{ID: uuid.New(), ProductID: product.ID, Threshold: 50, FreeUnits: 6},
	}
	require.NoError(t, db.Create(&tiers).Error)
	require.NoError(t, db.Create(&models.StockRecord{
		DealerID:     dealer.ID,
		ProductID:    product.ID,
		AvailableQty: 20,
	}).Error)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(db))
	require.NoError(t, err)
	pricer, err := pricing.NewEngine(catalogSvc)
	require.NoError(t, err)
	ledger, err := stock.NewLedger(db, runner)
	require.NoError(t, err)
	guard, err := idempotency.NewGuard(db)
	require.NoError(t, err)
	outboxSvc := outbox.NewService(outbox.NewRepository(db), nil)

	svc, err := NewService(NewRepository(db), runner, catalogSvc, pricer, ledger, guard, outboxSvc, nil, nil, Options{
		ReleaseRetryAttempts: 3,
		ReleaseRetryDelay:    time.Millisecond,
	})
	require.NoError(t, err)

	return &workflowFixture{
		db:        db,
		svc:       svc,
		ledger:    ledger,
		dealerID:  dealer.ID,
		productID: product.ID,
	}
}

func (f *workflowFixture) stockRecord(t *testing.T) models.StockRecord {
	t.Helper()
	var record models.StockRecord
	require.NoError(t, f.db.Where("dealer_id = ? AND product_id = ?", f.dealerID, f.productID).First(&record).Error)
	return record
}

func (f *workflowFixture) outboxEventTypes(t *testing.T) []enums.OutboxEventType {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.db.Order("created_at ASC").Find(&rows).Error)
	types := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		types = append(types, row.EventType)
	}
	return types
}

func TestCreateApproveEndToEnd(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result, err := f.svc.Create(ctx, CreateInput{
		AgentID:        uuid.New(),
		DealerID:       f.dealerID,
		Lines:          []LineItemInput{{ProductID: f.productID, Qty: 10}},
		IdempotencyKey: "create-1",
	})
	require.NoError(t, err)
	assert.False(t, result.Replayed)

	order, err := f.svc.Get(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(1000)), "subtotal %s", order.Subtotal)
	assert.True(t, order.TaxAmount.Equal(decimal.NewFromInt(50)), "tax %s", order.TaxAmount)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(1050)), "total %s", order.TotalAmount)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, 1, order.Lines[0].FOCQty)

	record := f.stockRecord(t)
	assert.Equal(t, 20, record.AvailableQty)
	assert.Equal(t, 10, record.BlockedQty)

	// Same key replays the same order without touching stock again.
	replay, err := f.svc.Create(ctx, CreateInput{
		AgentID:        uuid.New(),
		DealerID:       f.dealerID,
		Lines:          []LineItemInput{{ProductID: f.productID, Qty: 10}},
		IdempotencyKey: "create-1",
	})
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, result.OrderID, replay.OrderID)
	record = f.stockRecord(t)
	assert.Equal(t, 10, record.BlockedQty)

	approverID := uuid.New()
	require.NoError(t, f.svc.Approve(ctx, DecisionInput{OrderID: result.OrderID, ApproverID: approverID}))

	order, err = f.svc.Get(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, order.Status)
	require.NotNil(t, order.DecidedBy)
	assert.Equal(t, approverID, *order.DecidedBy)
	assert.NotNil(t, order.DecidedAt)

	record = f.stockRecord(t)
	assert.Equal(t, 10, record.AvailableQty)
	assert.Equal(t, 0, record.BlockedQty)

	// Decisions are terminal.
	err = f.svc.Approve(ctx, DecisionInput{OrderID: result.OrderID, ApproverID: approverID})
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())

	err = f.svc.Reject(ctx, DecisionInput{OrderID: result.OrderID, ApproverID: approverID})
	appErr = pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())

	assert.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated, enums.EventOrderConfirmed}, f.outboxEventTypes(t))
}

func TestCreateRejectEndToEnd(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result, err := f.svc.Create(ctx, CreateInput{
		AgentID:        uuid.New(),
		DealerID:       f.dealerID,
		Lines:          []LineItemInput{{ProductID: f.productID, Qty: 10}},
		IdempotencyKey: "create-2",
	})
	require.NoError(t, err)

	approverID := uuid.New()
	require.NoError(t, f.svc.Reject(ctx, DecisionInput{
		OrderID:    result.OrderID,
		ApproverID: approverID,
		Reason:     "dealer over credit limit",
	}))

	order, err := f.svc.Get(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusRejected, order.Status)
	require.NotNil(t, order.RejectionReason)
	assert.Equal(t, "dealer over credit limit", *order.RejectionReason)

	record := f.stockRecord(t)
	assert.Equal(t, 20, record.AvailableQty)
	assert.Equal(t, 0, record.BlockedQty)

	assert.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated, enums.EventOrderRejected}, f.outboxEventTypes(t))
}

func TestCreateInsufficientStockReplaysFailure(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	input := CreateInput{
		AgentID:        uuid.New(),
		DealerID:       f.dealerID,
		Lines:          []LineItemInput{{ProductID: f.productID, Qty: 25}},
		IdempotencyKey: "create-3",
	}
	_, err := f.svc.Create(ctx, input)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, appErr.Code())

	record := f.stockRecord(t)
	assert.Equal(t, 0, record.BlockedQty)

	// The retry replays the stored failure without blocking again.
	_, err = f.svc.Create(ctx, input)
	appErr = pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, appErr.Code())

	var reservations int64
	require.NoError(t, f.db.Model(&models.StockReservation{}).Count(&reservations).Error)
	assert.Equal(t, int64(0), reservations)
}

// A concurrent approve and reject on one pending order: the status CAS lets
// exactly one through, and stock is finalized exactly once for the winner.
// Shared-cache sqlite rejects parallel writers, so the race is funneled
// through one pooled connection; goroutine interleaving stays nondeterministic.
func TestConcurrentDecisionsHaveOneWinner(t *testing.T) {
	f := newWorkflowFixture(t)
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	ctx := context.Background()
	result, err := f.svc.Create(ctx, CreateInput{
		AgentID:        uuid.New(),
		DealerID:       f.dealerID,
		Lines:          []LineItemInput{{ProductID: f.productID, Qty: 10}},
		IdempotencyKey: "create-race",
	})
	require.NoError(t, err)

	approverID := uuid.New()
	var approveErr, rejectErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		approveErr = f.svc.Approve(ctx, DecisionInput{OrderID: result.OrderID, ApproverID: approverID})
	}()
	go func() {
		defer wg.Done()
		rejectErr = f.svc.Reject(ctx, DecisionInput{OrderID: result.OrderID, ApproverID: approverID, Reason: "raced"})
	}()
	wg.Wait()

	winners := 0
	for _, decisionErr := range []error{approveErr, rejectErr} {
		if decisionErr == nil {
			winners++
			continue
		}
		appErr := pkgerrors.As(decisionErr)
		require.NotNil(t, appErr, "unexpected error kind: %v", decisionErr)
		assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
	}
	require.Equal(t, 1, winners, "approve err=%v reject err=%v", approveErr, rejectErr)

	order, err := f.svc.Get(ctx, result.OrderID)
	require.NoError(t, err)
	record := f.stockRecord(t)
	assert.Equal(t, 0, record.BlockedQty)
	switch {
	case approveErr == nil:
		assert.Equal(t, enums.OrderStatusConfirmed, order.Status)
		assert.Equal(t, 10, record.AvailableQty)
		assert.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated, enums.EventOrderConfirmed}, f.outboxEventTypes(t))
	default:
		assert.Equal(t, enums.OrderStatusRejected, order.Status)
		assert.Equal(t, 20, record.AvailableQty)
		assert.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated, enums.EventOrderRejected}, f.outboxEventTypes(t))
	}
}

func TestDecisionKeyReplaysOutcome(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result, err := f.svc.Create(ctx, CreateInput{
		AgentID:        uuid.New(),
		DealerID:       f.dealerID,
		Lines:          []LineItemInput{{ProductID: f.productID, Qty: 5}},
		IdempotencyKey: "create-4",
	})
	require.NoError(t, err)

	decision := DecisionInput{
		OrderID:        result.OrderID,
		ApproverID:     uuid.New(),
		IdempotencyKey: "approve-4",
	}
	require.NoError(t, f.svc.Approve(ctx, decision))
	// Retrying with the same key succeeds instead of hitting the closed
	// transition table.
	require.NoError(t, f.svc.Approve(ctx, decision))

	record := f.stockRecord(t)
	assert.Equal(t, 15, record.AvailableQty)
	assert.Equal(t, 0, record.BlockedQty)
}
