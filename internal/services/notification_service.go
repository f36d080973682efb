package services

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/pkg/push"
)

const newOrderTitle = "New Order!"

// PushSender delivers push messages to the push provider.
type PushSender interface {
	Send(ctx context.Context, messages []push.Message) ([]push.Ticket, error)
}

// NotificationService registers device tokens and fans new-order
// notifications out to them.
type NotificationService struct {
	tokens    repositories.PushTokenRepository
	sender    PushSender
	logger    *zap.Logger
	batchSize int
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(tokens repositories.PushTokenRepository, sender PushSender, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		tokens:    tokens,
		sender:    sender,
		logger:    logger,
		batchSize: push.MaxBatchSize,
	}
}

// RegisterToken stores a device token. Registering a token twice is a no-op
// apart from its timestamp.
func (s *NotificationService) RegisterToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.Wrap(models.ErrValidation, "token is required")
	}
	if err := s.tokens.Upsert(ctx, token); err != nil {
		return err
	}
	s.logger.Info("Push token registered", zap.String("token", token))
	return nil
}

// NotifyNewOrder pushes the order summary to every registered device.
// Malformed tokens are skipped, failed batches are logged and dropped.
func (s *NotificationService) NotifyNewOrder(ctx context.Context, order *models.Order) {
	lg := s.logger.With(zap.String("order_id", order.ID))

	tokens, err := s.tokens.ListTokens(ctx)
	if err != nil {
		lg.Error("Failed to load push tokens", zap.Error(err))
		return
	}

	valid := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !push.IsValidToken(token) {
			lg.Warn("Skipping malformed push token", zap.String("token", token))
			continue
		}
		valid = append(valid, token)
	}
	if len(valid) == 0 {
		lg.Debug("No push tokens registered")
		return
	}

	body := order.Summary()
	for start := 0; start < len(valid); start += s.batchSize {
		end := min(start+s.batchSize, len(valid))
		batch := valid[start:end]

		msg := push.Message{
			To:    batch,
			Title: newOrderTitle,
			Body:  body,
			Sound: "default",
			Data:  map[string]string{"orderId": order.ID},
		}
		tickets, err := s.sender.Send(ctx, []push.Message{msg})
		if err != nil {
			lg.Error("Failed to send push notifications", zap.Int("tokens", len(batch)), zap.Error(err))
			continue
		}
		for i, ticket := range tickets {
			if ticket.Status == push.StatusOK {
				continue
			}
			token := ""
			if i < len(batch) {
				token = batch[i]
			}
			lg.Warn("Push ticket error",
				zap.String("token", token),
				zap.String("message", ticket.Message),
				zap.Any("details", ticket.Details))
		}
		lg.Info("Push notifications sent", zap.Int("tokens", len(batch)))
	}
}
