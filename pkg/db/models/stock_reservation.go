package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/orderlinehq/backend/pkg/enums"
)

// StockReservation records one all-or-nothing block of stock for an order.
// Finalization (commit or release) flips the status exactly once; repeat
// finalizations of the same kind are no-ops.
type StockReservation struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DealerID    uuid.UUID               `gorm:"column:dealer_id;type:uuid;not null"`
	Status      enums.ReservationStatus `gorm:"column:status;type:reservation_status;not null;default:'held'"`
	Lines       []StockReservationLine  `gorm:"foreignKey:ReservationID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	FinalizedAt *time.Time              `gorm:"column:finalized_at"`
}

// StockReservationLine is the blocked quantity for one product in a reservation.
type StockReservationLine struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReservationID uuid.UUID `gorm:"column:reservation_id;type:uuid;not null;index"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Qty           int       `gorm:"column:qty;not null"`
}
