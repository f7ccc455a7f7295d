package idempotency

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orderlinehq/backend/pkg/enums"
	pkgerrors "github.com/orderlinehq/backend/pkg/errors"
)

func setupGuardTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:idem_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS idempotency_records (
  key TEXT PRIMARY KEY,
  status TEXT NOT NULL DEFAULT 'in_progress',
  order_id TEXT,
  error_code TEXT,
  error_message TEXT,
  created_at DATETIME,
  resolved_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func TestBeginClaimsKeyOnce(t *testing.T) {
	db := setupGuardTestDB(t)
	guard, err := NewGuard(db)
	require.NoError(t, err)
	ctx := context.Background()

	started, record, err := guard.Begin(ctx, "key-1")
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, enums.IdempotencyStatusInProgress, record.Status)

	started, prior, err := guard.Begin(ctx, "key-1")
	require.NoError(t, err)
	assert.False(t, started)
	require.NotNil(t, prior)
	assert.Equal(t, enums.IdempotencyStatusInProgress, prior.Status)
}

func TestBeginValidatesKey(t *testing.T) {
	db := setupGuardTestDB(t)
	guard, err := NewGuard(db)
	require.NoError(t, err)

	_, _, err = guard.Begin(context.Background(), "  ")
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestResolveSuccessIsWriteOnce(t *testing.T) {
	db := setupGuardTestDB(t)
	guard, err := NewGuard(db)
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = guard.Begin(ctx, "key-1")
	require.NoError(t, err)

	orderID := uuid.New()
	require.NoError(t, guard.ResolveSuccessTx(ctx, db, "key-1", orderID))

	record, err := guard.Find(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, enums.IdempotencyStatusSucceeded, record.Status)
	require.NotNil(t, record.OrderID)
	assert.Equal(t, orderID, *record.OrderID)
	assert.NotNil(t, record.ResolvedAt)

	// The first resolution wins; later writes are dropped.
	require.NoError(t, guard.ResolveFailure(ctx, "key-1", pkgerrors.CodeInternal, "late failure"))
	record, err = guard.Find(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, enums.IdempotencyStatusSucceeded, record.Status)
	assert.Equal(t, orderID, *record.OrderID)
	assert.Nil(t, record.ErrorCode)
}

func TestResolveFailureStoresCode(t *testing.T) {
	db := setupGuardTestDB(t)
	guard, err := NewGuard(db)
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = guard.Begin(ctx, "key-2")
	require.NoError(t, err)
	require.NoError(t, guard.ResolveFailure(ctx, "key-2", pkgerrors.CodeInsufficientStock, "insufficient stock"))

	record, err := guard.Find(ctx, "key-2")
	require.NoError(t, err)
	assert.Equal(t, enums.IdempotencyStatusFailed, record.Status)
	require.NotNil(t, record.ErrorCode)
	assert.Equal(t, string(pkgerrors.CodeInsufficientStock), *record.ErrorCode)
	require.NotNil(t, record.ErrorMessage)
	assert.Equal(t, "insufficient stock", *record.ErrorMessage)
}

func TestResolveUnclaimedKey(t *testing.T) {
	db := setupGuardTestDB(t)
	guard, err := NewGuard(db)
	require.NoError(t, err)

	err = guard.ResolveFailure(context.Background(), "ghost", pkgerrors.CodeInternal, "boom")
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}
