package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"storefront/internal/models"
)

// AsyncNotifier hands orders to the next notifier on a separate goroutine so
// order creation never waits on the push provider.
type AsyncNotifier struct {
	next    Notifier
	timeout time.Duration
}

// NewAsyncNotifier wraps next. Each dispatch gets at most timeout to finish.
func NewAsyncNotifier(next Notifier, timeout time.Duration) *AsyncNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AsyncNotifier{next: next, timeout: timeout}
}

// NotifyNewOrder returns immediately.
func (n *AsyncNotifier) NotifyNewOrder(ctx context.Context, order *models.Order) {
	snapshot := *order
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		n.next.NotifyNewOrder(ctx, &snapshot)
	}()
}

// OrderCreatedEvent is the queue message announcing a new order.
type OrderCreatedEvent struct {
	OrderID string `json:"orderId"`
}

// Publisher sends a message body to the notification queue.
type Publisher interface {
	Publish(body []byte) error
}

// QueueNotifier announces new orders on the message queue. The consumer side
// is NotificationConsumer.
type QueueNotifier struct {
	publisher Publisher
	logger    *zap.Logger
}

// NewQueueNotifier creates a QueueNotifier.
func NewQueueNotifier(publisher Publisher, logger *zap.Logger) *QueueNotifier {
	return &QueueNotifier{publisher: publisher, logger: logger}
}

// NotifyNewOrder publishes an OrderCreatedEvent. Failures are logged only.
func (n *QueueNotifier) NotifyNewOrder(_ context.Context, order *models.Order) {
	body, err := json.Marshal(OrderCreatedEvent{OrderID: order.ID})
	if err != nil {
		n.logger.Error("Failed to marshal order created event", zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	if err := n.publisher.Publish(body); err != nil {
		n.logger.Warn("Failed to publish order created event", zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	n.logger.Debug("Published order created event", zap.String("order_id", order.ID))
}

// OrderGetter loads a stored order.
type OrderGetter interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
}

// NotificationConsumer turns queued order events into push notifications.
type NotificationConsumer struct {
	orders     OrderGetter
	dispatcher Notifier
	logger     *zap.Logger
	timeout    time.Duration
}

// NewNotificationConsumer creates a NotificationConsumer.
func NewNotificationConsumer(orders OrderGetter, dispatcher Notifier, timeout time.Duration, logger *zap.Logger) *NotificationConsumer {
	return &NotificationConsumer{
		orders:     orders,
		dispatcher: dispatcher,
		logger:     logger,
		timeout:    timeout,
	}
}

// Handle processes one delivery. Deliveries are acked whether or not this
// returns an error: notifications are never retried.
func (c *NotificationConsumer) Handle(msg amqp.Delivery) error {
	return c.HandleBody(msg.Body)
}

// HandleBody processes a raw event body.
func (c *NotificationConsumer) HandleBody(body []byte) error {
	var event OrderCreatedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Warn("Dropping malformed order event", zap.ByteString("body", body), zap.Error(err))
		return errors.Wrap(err, "decode order event")
	}
	if event.OrderID == "" {
		c.logger.Warn("Dropping order event without order id", zap.ByteString("body", body))
		return errors.New("order event without order id")
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	order, err := c.orders.GetOrder(ctx, event.OrderID)
	if err != nil {
		c.logger.Warn("Dropping order event", zap.String("order_id", event.OrderID), zap.Error(err))
		return errors.Wrapf(err, "load order %s", event.OrderID)
	}

	c.dispatcher.NotifyNewOrder(ctx, order)
	return nil
}
