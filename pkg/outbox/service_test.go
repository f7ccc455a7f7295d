package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orderlinehq/backend/pkg/db/models"
	"github.com/orderlinehq/backend/pkg/enums"
	"github.com/orderlinehq/backend/pkg/outbox/payloads"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:outbox_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	events := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	dlq := `
CREATE TABLE IF NOT EXISTS outbox_dlqs (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(events).Error)
	require.NoError(t, db.Exec(dlq).Error)
	return db
}

func TestEmitPersistsEnvelope(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	orderID := uuid.New()
	agentID := uuid.New()
	event := DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         &ActorRef{ActorID: agentID, Role: "agent"},
		Data: payloads.OrderCreatedEvent{
			OrderID:  orderID,
			DealerID: uuid.New(),
			AgentID:  agentID,
		},
		Version: 1,
	}

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, event)
	}))

	var row models.OutboxEvent
	require.NoError(t, db.Where("aggregate_id = ?", orderID).First(&row).Error)
	assert.Equal(t, enums.EventOrderCreated, row.EventType)
	assert.Equal(t, enums.AggregateOrder, row.AggregateType)
	assert.Nil(t, row.PublishedAt)
	assert.Equal(t, 0, row.AttemptCount)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, agentID, envelope.Actor.ActorID)

	var data payloads.OrderCreatedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, orderID, data.OrderID)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{})
	require.Error(t, err)
}

func TestEmitIfNotExistsDeduplicates(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	orderID := uuid.New()
	event := DomainEvent{
		EventType:     enums.EventOrderConfirmed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data:          payloads.OrderConfirmedEvent{OrderID: orderID},
		Version:       1,
	}

	for i := 0; i < 2; i++ {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(context.Background(), tx, event)
		}))
	}

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ?", orderID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMarkFailedIncrementsAttempts(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	require.NoError(t, repo.Insert(db, event))

	require.NoError(t, repo.MarkFailedTx(db, event.ID, errors.New("publish timeout")))
	require.NoError(t, repo.MarkFailedTx(db, event.ID, errors.New("publish timeout")))

	var row models.OutboxEvent
	require.NoError(t, db.First(&row, "id = ?", event.ID).Error)
	assert.Equal(t, 2, row.AttemptCount)
	require.NotNil(t, row.LastError)
	assert.Equal(t, "publish timeout", *row.LastError)
}

func TestFetchUnpublishedForPublishSkipsExhausted(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	fresh := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	exhausted := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderRejected,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		AttemptCount:  5,
	}
	require.NoError(t, repo.Insert(db, fresh))
	require.NoError(t, repo.Insert(db, exhausted))

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, fresh.ID, rows[0].ID)

	require.NoError(t, repo.MarkPublishedTx(db, fresh.ID))
	rows, err = repo.FetchUnpublishedForPublish(db, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDLQTruncatesLongErrors(t *testing.T) {
	db := setupOutboxTestDB(t)
	dlq := NewDLQRepository(db)

	long := strings.Repeat("x", maxDLQErrorLen+200)
	eventID := uuid.New()
	entry := models.OutboxDLQ{
		ID:            uuid.New(),
		EventID:       eventID,
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.DLQReasonMaxAttempts,
		ErrorMessage:  &long,
		AttemptCount:  5,
	}
	require.NoError(t, dlq.InsertTx(db, entry))

	found, err := dlq.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.ErrorMessage)
	assert.Len(t, *found.ErrorMessage, maxDLQErrorLen)

	missing, err := dlq.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
