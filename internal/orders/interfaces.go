package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orderlinehq/backend/pkg/db/models"
	"github.com/orderlinehq/backend/pkg/enums"
)

// Repository defines persistence operations for the order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderLines(ctx context.Context, lines []models.OrderLine) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// TransitionStatus performs the compare-and-set from -> to and reports
	// whether this caller won the transition.
	TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
}
