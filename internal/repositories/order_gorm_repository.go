package repositories

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"storefront/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// List retrieves orders newest first.
func (r *GORMOrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if filter.Fulfilled != nil {
		q = q.Where("fulfilled = ?", *filter.Fulfilled)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at > ?", filter.Since.UTC())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	orders := []models.Order{}
	if err := q.Find(&orders).Error; err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// GetByID retrieves a single order by its ID.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(models.ErrNotFound, "order %s", id)
		}
		return nil, errors.Wrapf(err, "get order %s", id)
	}
	return &order, nil
}

// Create stores a new order. A second order for the same payment session is
// reported as models.ErrConflict.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.Wrapf(models.ErrConflict, "payment session %s", order.PaymentSessionID)
		}
		return errors.Wrap(err, "create order")
	}
	return nil
}

// SetFulfilled updates the fulfillment flag of an existing order.
func (r *GORMOrderRepository) SetFulfilled(ctx context.Context, id string, fulfilled bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{"fulfilled": fulfilled, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update fulfillment of order %s", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(models.ErrNotFound, "order %s", id)
	}
	return nil
}
