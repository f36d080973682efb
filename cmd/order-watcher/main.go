// Command order-watcher polls the orders API and pushes a notification for
// every order created since its last run.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/logging"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/internal/watcher"
	"storefront/pkg/push"
)

func main() {
	cfg, err := config.LoadWatcher()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens := repositories.NewMemoryPushTokenRepository()
	for _, token := range cfg.PushTokens {
		if err := tokens.Upsert(ctx, token); err != nil {
			logger.Fatal("Error loading push token", zap.Error(err))
		}
	}
	pushClient := push.NewClient(push.Config{
		URL:         cfg.ExpoPushURL,
		AccessToken: cfg.ExpoAccessToken,
		Timeout:     cfg.PushTimeout,
	})
	notifications := services.NewNotificationService(tokens, pushClient, logger)

	onNewOrder := func(ctx context.Context, order *models.Order) {
		logger.Info("New order", zap.String("order_id", order.ID), zap.String("summary", order.Summary()))
		notifications.NotifyNewOrder(ctx, order)
	}

	client := watcher.NewClient(cfg.OrdersAPIURL, cfg.OrdersAPISecret, cfg.PushTimeout)
	poller := watcher.NewPoller(client, watcher.NewFileStateStore(cfg.StateFile), cfg.PollInterval, onNewOrder, logger)

	logger.Info("Watching orders", zap.String("url", cfg.OrdersAPIURL), zap.Duration("interval", cfg.PollInterval))
	if err := poller.Run(ctx); err != nil {
		logger.Fatal("Order watcher stopped with error", zap.Error(err))
	}
}
