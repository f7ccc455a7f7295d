package stock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orderlinehq/backend/pkg/db/models"
	"github.com/orderlinehq/backend/pkg/enums"
	pkgerrors "github.com/orderlinehq/backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// BlockLine is one (product, qty) pair to block against a dealer's stock.
type BlockLine struct {
	ProductID uuid.UUID
	Qty       int
}

// Ledger owns every mutation of stock_records. Blocking is all-or-nothing per
// batch; commit and release finalize a reservation exactly once.
type Ledger interface {
	Block(ctx context.Context, dealerID uuid.UUID, lines []BlockLine) (*models.StockReservation, error)
	BlockTx(ctx context.Context, tx *gorm.DB, dealerID uuid.UUID, lines []BlockLine) (*models.StockReservation, error)
	Commit(ctx context.Context, reservationID uuid.UUID) error
	CommitTx(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) error
	Release(ctx context.Context, reservationID uuid.UUID) error
	ReleaseTx(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) error
	Availability(ctx context.Context, dealerID, productID uuid.UUID) (*models.StockRecord, error)
}

type ledger struct {
	db *gorm.DB
	tx txRunner
}

// NewLedger builds a stock ledger over the provided DB handle and
// transaction runner.
func NewLedger(db *gorm.DB, tx txRunner) (Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &ledger{db: db, tx: tx}, nil
}

func (l *ledger) Block(ctx context.Context, dealerID uuid.UUID, lines []BlockLine) (*models.StockReservation, error) {
	var reservation *models.StockReservation
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var blockErr error
		reservation, blockErr = l.BlockTx(ctx, tx, dealerID, lines)
		return blockErr
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

func (l *ledger) BlockTx(ctx context.Context, tx *gorm.DB, dealerID uuid.UUID, lines []BlockLine) (*models.StockReservation, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock block")
	}
	if dealerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dealer id required")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one stock line required")
	}

	sorted := make([]BlockLine, len(lines))
	copy(sorted, lines)
	// Deterministic lock order across concurrent blockers.
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})

	seen := make(map[uuid.UUID]struct{}, len(sorted))
	for _, line := range sorted {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"product_id": line.ProductID, "qty": line.Qty})
		}
		if _, dup := seen[line.ProductID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product line").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		seen[line.ProductID] = struct{}{}
	}

	for _, line := range sorted {
		res := tx.WithContext(ctx).Exec(`
			UPDATE stock_records
			SET blocked_qty = blocked_qty + ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE dealer_id = ? AND product_id = ? AND available_qty - blocked_qty >= ?
		`, line.Qty, dealerID, line.ProductID, line.Qty)
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "block stock")
		}
		if res.RowsAffected == 0 {
			return nil, l.insufficientStock(ctx, tx, dealerID, line)
		}
	}

	reservation := &models.StockReservation{
		ID:       uuid.New(),
		DealerID: dealerID,
		Status:   enums.ReservationStatusHeld,
	}
	if err := tx.WithContext(ctx).Create(reservation).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
	}
	reservationLines := make([]models.StockReservationLine, 0, len(sorted))
	for _, line := range sorted {
		reservationLines = append(reservationLines, models.StockReservationLine{
			ID:            uuid.New(),
			ReservationID: reservation.ID,
			ProductID:     line.ProductID,
			Qty:           line.Qty,
		})
	}
	if err := tx.WithContext(ctx).Create(&reservationLines).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation lines")
	}
	reservation.Lines = reservationLines
	return reservation, nil
}

// insufficientStock loads the current counts so the error names what was
// actually on hand. The surrounding transaction rolls back either way.
func (l *ledger) insufficientStock(ctx context.Context, tx *gorm.DB, dealerID uuid.UUID, line BlockLine) error {
	available := 0
	var record models.StockRecord
	err := tx.WithContext(ctx).
		Where("dealer_id = ? AND product_id = ?", dealerID, line.ProductID).
		First(&record).Error
	if err == nil {
		available = record.AvailableQty - record.BlockedQty
		if available < 0 {
			available = 0
		}
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{
			"product_id": line.ProductID,
			"available":  available,
			"requested":  line.Qty,
		})
}

func (l *ledger) Commit(ctx context.Context, reservationID uuid.UUID) error {
	return l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return l.CommitTx(ctx, tx, reservationID)
	})
}

func (l *ledger) CommitTx(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) error {
	return l.finalize(ctx, tx, reservationID, enums.ReservationStatusCommitted)
}

func (l *ledger) Release(ctx context.Context, reservationID uuid.UUID) error {
	return l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return l.ReleaseTx(ctx, tx, reservationID)
	})
}

func (l *ledger) ReleaseTx(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) error {
	return l.finalize(ctx, tx, reservationID, enums.ReservationStatusReleased)
}

// finalize flips the reservation status held -> target exactly once and then
// applies the per-line stock adjustments. Losing the CAS to the same target is
// a no-op; losing it to the opposite target is a state conflict.
func (l *ledger) finalize(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID, target enums.ReservationStatus) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for reservation finalize")
	}
	if reservationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}

	res := tx.WithContext(ctx).Model(&models.StockReservation{}).
		Where("id = ? AND status = ?", reservationID, enums.ReservationStatusHeld).
		Updates(map[string]any{
			"status":       target,
			"finalized_at": time.Now(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "finalize reservation")
	}
	if res.RowsAffected == 0 {
		var reservation models.StockReservation
		err := tx.WithContext(ctx).Where("id = ?", reservationID).First(&reservation).Error
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
		}
		if reservation.Status == target {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation already finalized").
			WithDetails(map[string]any{
				"reservation_id": reservationID,
				"status":         reservation.Status,
			})
	}

	var reservation models.StockReservation
	if err := tx.WithContext(ctx).Preload("Lines").Where("id = ?", reservationID).First(&reservation).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation lines")
	}

	for _, line := range reservation.Lines {
		var res *gorm.DB
		if target == enums.ReservationStatusCommitted {
			res = tx.WithContext(ctx).Exec(`
				UPDATE stock_records
				SET available_qty = available_qty - ?,
					blocked_qty = blocked_qty - ?,
					updated_at = CURRENT_TIMESTAMP
				WHERE dealer_id = ? AND product_id = ? AND available_qty >= ? AND blocked_qty >= ?
			`, line.Qty, line.Qty, reservation.DealerID, line.ProductID, line.Qty, line.Qty)
		} else {
			res = tx.WithContext(ctx).Exec(`
				UPDATE stock_records
				SET blocked_qty = blocked_qty - ?,
					updated_at = CURRENT_TIMESTAMP
				WHERE dealer_id = ? AND product_id = ? AND blocked_qty >= ?
			`, line.Qty, reservation.DealerID, line.ProductID, line.Qty)
		}
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "adjust stock record")
		}
		if res.RowsAffected == 0 {
			// Counts no longer cover the reservation. Rolling back keeps the
			// reservation held for investigation instead of corrupting stock.
			return pkgerrors.New(pkgerrors.CodeInternal, "stock record inconsistent with reservation").
				WithDetails(map[string]any{
					"reservation_id": reservationID,
					"product_id":     line.ProductID,
				})
		}
	}
	return nil
}

func (l *ledger) Availability(ctx context.Context, dealerID, productID uuid.UUID) (*models.StockRecord, error) {
	var record models.StockRecord
	err := l.db.WithContext(ctx).
		Where("dealer_id = ? AND product_id = ?", dealerID, productID).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
	}
	return &record, nil
}
