package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderlinehq/backend/pkg/db/models"
	"github.com/orderlinehq/backend/pkg/enums"
)

func seedPendingOrder(t *testing.T, f *workflowFixture) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:            uuid.New(),
		AgentID:       uuid.New(),
		DealerID:      f.dealerID,
		ReservationID: uuid.New(),
		Subtotal:      decimal.NewFromInt(500),
		TaxRate:       decimal.RequireFromString("0.05"),
		TaxAmount:     decimal.NewFromInt(25),
		TotalAmount:   decimal.NewFromInt(525),
		Status:        enums.OrderStatusPending,
	}
	require.NoError(t, f.db.Create(order).Error)
	return order
}

func TestTransitionStatusExactlyOneWinner(t *testing.T) {
	f := newWorkflowFixture(t)
	repo := NewRepository(f.db)
	ctx := context.Background()
	order := seedPendingOrder(t, f)

	approver := uuid.New()
	won, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed, map[string]any{
		"decided_at": time.Now(),
		"decided_by": approver,
	})
	require.NoError(t, err)
	assert.True(t, won)

	// The losing decider sees zero rows affected, whatever its target.
	won, err = repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusRejected, nil)
	require.NoError(t, err)
	assert.False(t, won)

	loaded, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, loaded.Status)
	require.NotNil(t, loaded.DecidedBy)
	assert.Equal(t, approver, *loaded.DecidedBy)
}

func TestFindOrderPreloadsLinesInPosition(t *testing.T) {
	f := newWorkflowFixture(t)
	repo := NewRepository(f.db)
	ctx := context.Background()
	order := seedPendingOrder(t, f)

	lines := []models.OrderLine{
		{ID: uuid.New(), OrderID: order.ID, ProductID: f.productID, ProductName: "B", Qty: 2, UnitPrice: decimal.NewFromInt(100), LineTotal: decimal.NewFromInt(200), Position: 1},
		{ID: uuid.New(), OrderID: order.ID, ProductID: f.productID, ProductName: "A", Qty: 1, UnitPrice: decimal.NewFromInt(100), LineTotal: decimal.NewFromInt(100), Position: 0},
	}
	require.NoError(t, repo.CreateOrderLines(ctx, lines))

	loaded, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 2)
	assert.Equal(t, "A", loaded.Lines[0].ProductName)
	assert.Equal(t, "B", loaded.Lines[1].ProductName)
}
