// Package app wires the store's components together and runs them.
package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"storefront/internal/config"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/challenge"
	"storefront/pkg/push"
	"storefront/pkg/rabbitmq"
)

// App is the assembled API server.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	server   *fiber.App
	db       *gorm.DB
	mq       *rabbitmq.Client
	consumer *services.NotificationConsumer
}

type stores struct {
	orders   repositories.OrderRepository
	tokens   repositories.PushTokenRepository
	products repositories.ProductRepository
	users    repositories.UserRepository
}

// New builds the server. The store is opened and migrated, the admin account
// is seeded and, when RABBITMQ_URL is set, the queue is connected.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	st, err := a.openStores()
	if err != nil {
		return nil, err
	}

	authService := services.NewAuthService(st.users, cfg.JWTSecret, logger)
	if err := authService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		a.Close()
		return nil, errors.Wrap(err, "seed admin")
	}

	pushClient := push.NewClient(push.Config{
		URL:         cfg.ExpoPushURL,
		AccessToken: cfg.ExpoAccessToken,
		Timeout:     cfg.PushTimeout,
	})
	notificationService := services.NewNotificationService(st.tokens, pushClient, logger)

	var notifier services.Notifier
	if cfg.RabbitMQURL != "" {
		a.mq, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.RabbitMQQueue}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		notifier = services.NewQueueNotifier(a.mq, logger)
	} else {
		notifier = services.NewAsyncNotifier(notificationService, cfg.PushTimeout)
	}

	orderService := services.NewOrderService(st.orders, notifier, logger)
	productService := services.NewProductService(st.products)
	if a.mq != nil {
		a.consumer = services.NewNotificationConsumer(orderService, notificationService, cfg.PushTimeout, logger)
	}

	a.server = fiber.New(fiber.Config{
		AppName:               "storefront",
		ErrorHandler:          handlers.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	a.server.Use(recover.New())
	a.server.Use(requestid.New())
	a.server.Use(middleware.RequestLogger(logger))

	validate := handlers.NewValidator()
	authRequired := middleware.AuthRequired(authService, logger)

	handlers.NewHealthHandler(a.databaseChecker(), a.queueChecker()).RegisterRoutes(a.server)

	api := a.server.Group("/api")
	handlers.NewOrderHandler(orderService, challenge.NewAuthenticator(cfg.OrdersAPISecret), validate, logger).RegisterRoutes(api)
	handlers.NewPushHandler(notificationService, validate).RegisterRoutes(api)
	handlers.NewProductHandler(productService, validate).RegisterRoutes(api, authRequired)
	handlers.NewAuthHandler(authService, validate).RegisterRoutes(api, authRequired)

	return a, nil
}

func (a *App) openStores() (stores, error) {
	if a.cfg.DBDriver == repositories.DriverMemory {
		return stores{
			orders:   repositories.NewMemoryOrderRepository(),
			tokens:   repositories.NewMemoryPushTokenRepository(),
			products: repositories.NewMemoryProductRepository(),
			users:    repositories.NewMemoryUserRepository(),
		}, nil
	}

	db, err := repositories.OpenDB(repositories.DBConfig{
		Driver:          a.cfg.DBDriver,
		DSN:             a.cfg.DatabaseDSN,
		MaxOpenConns:    a.cfg.DBMaxOpenConns,
		MaxIdleConns:    a.cfg.DBMaxIdleConns,
		ConnMaxLifetime: a.cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return stores{}, err
	}
	if err := repositories.Migrate(db); err != nil {
		_ = repositories.CloseDB(db)
		return stores{}, err
	}
	a.db = db

	return stores{
		orders:   repositories.NewGORMOrderRepository(db),
		tokens:   repositories.NewGORMPushTokenRepository(db),
		products: repositories.NewGORMProductRepository(db),
		users:    repositories.NewGORMUserRepository(db),
	}, nil
}

func (a *App) databaseChecker() handlers.Checker {
	if a.db == nil {
		return nil
	}
	return repositories.NewDBChecker(a.db)
}

func (a *App) queueChecker() handlers.Checker {
	if a.mq == nil {
		return nil
	}
	return a.mq
}

// Server exposes the fiber app, mainly for tests.
func (a *App) Server() *fiber.App {
	return a.server
}

// Run serves HTTP, and consumes the notification queue when one is
// configured, until ctx is done or one of them fails. Resources are released
// before it returns.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Running server", zap.String("addr", a.cfg.AppPort))
		if err := a.server.Listen(a.cfg.AppPort); err != nil {
			return errors.Wrap(err, "listen")
		}
		return nil
	})

	if a.consumer != nil {
		g.Go(func() error {
			return a.mq.Consume(gctx, a.consumer.Handle)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		if err := a.server.ShutdownWithContext(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown server")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("Server gracefully stopped")
	return nil
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.ShutdownTimeout > 0 {
		return a.cfg.ShutdownTimeout
	}
	return 10 * time.Second
}

// Close releases the queue connection and the database pool.
func (a *App) Close() {
	if a.mq != nil {
		if err := a.mq.Close(); err != nil {
			a.logger.Warn("Error closing RabbitMQ client", zap.Error(err))
		}
		a.mq = nil
	}
	if a.db != nil {
		if err := repositories.CloseDB(a.db); err != nil {
			a.logger.Warn("Error closing database", zap.Error(err))
		}
		a.db = nil
	}
}
