package models

import (
	"time"

	"github.com/google/uuid"
)

// Dealer is the customer entity an order is placed against. Each dealer owns
// its own stock allocation pool.
type Dealer struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	City      *string   `gorm:"column:city"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
