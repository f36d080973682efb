package services

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/pkg/pricing"
)

// Notifier is told about every order that was stored successfully.
type Notifier interface {
	NotifyNewOrder(ctx context.Context, order *models.Order)
}

// OrderService is the single entry point to order records for every surface.
type OrderService struct {
	repo     repositories.OrderRepository
	notifier Notifier
	logger   *zap.Logger
}

// NewOrderService creates a new OrderService. notifier may be nil.
func NewOrderService(repo repositories.OrderRepository, notifier Notifier, logger *zap.Logger) *OrderService {
	return &OrderService{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// ListOrders returns orders newest first, with totals filled in.
func (s *OrderService) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].ApplyTotals()
	}
	return orders, nil
}

// GetOrder retrieves a single order by its ID.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	order.ApplyTotals()
	return order, nil
}

// CreateOrder stores a new order and notifies about it. The stored amount is
// always the calculated total; notification problems never fail the call.
func (s *OrderService) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.PaymentSessionID == "" {
		return nil, errors.Wrap(models.ErrValidation, "paymentSessionId is required")
	}
	for _, item := range order.Items {
		if item.Quantity < 1 || item.Price.IsNegative() {
			return nil, errors.Wrapf(models.ErrValidation, "invalid line item %q", item.Name)
		}
	}

	order.ID = uuid.New().String()
	order.CreatedAt = time.Now().UTC()
	order.Fulfilled = false
	if order.Currency == "" {
		order.Currency = models.DefaultCurrency
	}
	order.Currency = strings.ToLower(order.Currency)
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}

	totals := order.ApplyTotals()
	if !order.Amount.IsZero() && !order.Amount.Equal(totals.Total) {
		s.logger.Warn("Order amount disagrees with calculated total, using calculated total",
			zap.String("payment_session_id", order.PaymentSessionID),
			zap.String("amount", order.Amount.StringFixed(2)),
			zap.String("total", totals.Total.StringFixed(2)))
	}
	order.Amount = totals.Total

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("total", order.Amount.StringFixed(2)))

	if s.notifier != nil {
		s.notifier.NotifyNewOrder(ctx, order)
	}
	return order, nil
}

// SetFulfilled flips the fulfillment flag. Concurrent updates are last-write-wins.
func (s *OrderService) SetFulfilled(ctx context.Context, id string, fulfilled bool) error {
	if id == "" {
		return errors.Wrap(models.ErrValidation, "orderId is required")
	}
	if err := s.repo.SetFulfilled(ctx, id, fulfilled); err != nil {
		return err
	}
	s.logger.Info("Order fulfillment updated", zap.String("order_id", id), zap.Bool("fulfilled", fulfilled))
	return nil
}

// Quote prices a cart without storing anything.
func (s *OrderService) Quote(items []models.LineItem, shippingType *string) pricing.Totals {
	o := models.Order{Items: items, ShippingType: shippingType}
	return o.Totals()
}
