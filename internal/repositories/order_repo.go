package repositories

import (
	"context"

	"storefront/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	// List returns orders matching filter, newest first.
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	// SetFulfilled updates the fulfillment flag. Unknown ids yield models.ErrNotFound.
	SetFulfilled(ctx context.Context, id string, fulfilled bool) error
}
