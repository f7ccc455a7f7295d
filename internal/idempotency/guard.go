package idempotency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/orderlinehq/backend/pkg/db"
	"github.com/orderlinehq/backend/pkg/db/models"
	"github.com/orderlinehq/backend/pkg/enums"
	pkgerrors "github.com/orderlinehq/backend/pkg/errors"
)

const maxKeyLen = 200

// Guard binds request keys to their outcome, write-once. Begin claims a key;
// the resolve calls pin it permanently to an order or a failure.
type Guard interface {
	// Begin claims the key. started=true means this caller owns the key and
	// must resolve it. started=false returns the existing record, which may
	// still be in progress.
	Begin(ctx context.Context, key string) (started bool, prior *models.IdempotencyRecord, err error)
	ResolveSuccessTx(ctx context.Context, tx *gorm.DB, key string, orderID uuid.UUID) error
	ResolveFailure(ctx context.Context, key string, code pkgerrors.Code, message string) error
	Find(ctx context.Context, key string) (*models.IdempotencyRecord, error)
}

type guard struct {
	db *gorm.DB
}

// NewGuard builds an idempotency guard over the provided DB handle.
func NewGuard(db *gorm.DB) (Guard, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	return &guard{db: db}, nil
}

func validateKey(key string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if len(trimmed) > maxKeyLen {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotency key too long")
	}
	return nil
}

func (g *guard) Begin(ctx context.Context, key string) (bool, *models.IdempotencyRecord, error) {
	if err := validateKey(key); err != nil {
		return false, nil, err
	}

	record := models.IdempotencyRecord{
		Key:    key,
		Status: enums.IdempotencyStatusInProgress,
	}
	err := g.db.WithContext(ctx).Create(&record).Error
	if err == nil {
		return true, &record, nil
	}
	if !dbpkg.IsUniqueViolation(err, "") {
		return false, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}

	prior, findErr := g.Find(ctx, key)
	if findErr != nil {
		return false, nil, findErr
	}
	return false, prior, nil
}

func (g *guard) ResolveSuccessTx(ctx context.Context, tx *gorm.DB, key string, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for key resolution")
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return g.resolve(ctx, tx, key, map[string]any{
		"status":      enums.IdempotencyStatusSucceeded,
		"order_id":    orderID,
		"resolved_at": time.Now(),
	})
}

func (g *guard) ResolveFailure(ctx context.Context, key string, code pkgerrors.Code, message string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return g.resolve(ctx, g.db, key, map[string]any{
		"status":        enums.IdempotencyStatusFailed,
		"error_code":    string(code),
		"error_message": message,
		"resolved_at":   time.Now(),
	})
}

// resolve writes the outcome once. A key already resolved keeps its first
// outcome; resolving it again with anything is silently dropped.
func (g *guard) resolve(ctx context.Context, db *gorm.DB, key string, updates map[string]any) error {
	res := db.WithContext(ctx).Model(&models.IdempotencyRecord{}).
		Where("key = ? AND status = ?", key, enums.IdempotencyStatusInProgress).
		Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "resolve idempotency key")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var record models.IdempotencyRecord
	err := db.WithContext(ctx).Where("key = ?", key).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, "idempotency key not claimed")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record")
	}
	return nil
}

func (g *guard) Find(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	var record models.IdempotencyRecord
	err := g.db.WithContext(ctx).Where("key = ?", key).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "idempotency record not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record")
	}
	return &record, nil
}
