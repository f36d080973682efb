// Package config loads service settings from the environment and an optional
// config.yaml.
package config

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/viper"
)

// Config holds the API server settings.
type Config struct {
	AppPort  string
	LogLevel string

	DBDriver          string
	DatabaseDSN       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	RabbitMQURL   string
	RabbitMQQueue string

	OrdersAPISecret string
	JWTSecret       string

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	ExpoPushURL     string
	ExpoAccessToken string
	PushTimeout     time.Duration

	ShutdownTimeout time.Duration
}

// WatcherConfig holds the order watcher settings.
type WatcherConfig struct {
	LogLevel        string
	OrdersAPIURL    string
	OrdersAPISecret string
	PollInterval    time.Duration
	StateFile       string

	ExpoPushURL     string
	ExpoAccessToken string
	PushTimeout     time.Duration
	PushTokens      []string
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "storefront.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_QUEUE", "order_notifications")
	v.SetDefault("ORDERS_API_SECRET", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ADMIN_USERNAME", "")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send")
	v.SetDefault("EXPO_ACCESS_TOKEN", "")
	v.SetDefault("PUSH_TIMEOUT", 10*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)

	v.SetDefault("ORDERS_API_URL", "http://localhost:8080/api/orders")
	v.SetDefault("POLL_INTERVAL", 30*time.Second)
	v.SetDefault("STATE_FILE", "order-watcher.json")
	v.SetDefault("PUSH_TOKENS", "")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/storefront")

	v.AutomaticEnv()
	return v
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "read config file")
	}
	return nil
}

// Load reads the API server configuration.
func Load() (*Config, error) {
	v := newViper()
	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		AppPort:           v.GetString("APP_PORT"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		DBDriver:          strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseDSN:       v.GetString("DATABASE_DSN"),
		DBMaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		DBConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		RabbitMQURL:       v.GetString("RABBITMQ_URL"),
		RabbitMQQueue:     v.GetString("RABBITMQ_QUEUE"),
		OrdersAPISecret:   v.GetString("ORDERS_API_SECRET"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		AdminUsername:     v.GetString("ADMIN_USERNAME"),
		AdminEmail:        v.GetString("ADMIN_EMAIL"),
		AdminPassword:     v.GetString("ADMIN_PASSWORD"),
		ExpoPushURL:       v.GetString("EXPO_PUSH_URL"),
		ExpoAccessToken:   v.GetString("EXPO_ACCESS_TOKEN"),
		PushTimeout:       v.GetDuration("PUSH_TIMEOUT"),
		ShutdownTimeout:   v.GetDuration("SHUTDOWN_TIMEOUT"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite", "memory":
	default:
		return errors.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDriver != "memory" && c.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is required")
	}
	if c.OrdersAPISecret == "" {
		return errors.New("ORDERS_API_SECRET is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}

// LoadWatcher reads the order watcher configuration.
func LoadWatcher() (*WatcherConfig, error) {
	v := newViper()
	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg := &WatcherConfig{
		LogLevel:        v.GetString("LOG_LEVEL"),
		OrdersAPIURL:    v.GetString("ORDERS_API_URL"),
		OrdersAPISecret: v.GetString("ORDERS_API_SECRET"),
		PollInterval:    v.GetDuration("POLL_INTERVAL"),
		StateFile:       v.GetString("STATE_FILE"),
		ExpoPushURL:     v.GetString("EXPO_PUSH_URL"),
		ExpoAccessToken: v.GetString("EXPO_ACCESS_TOKEN"),
		PushTimeout:     v.GetDuration("PUSH_TIMEOUT"),
		PushTokens:      splitList(v.GetString("PUSH_TOKENS")),
	}
	if cfg.OrdersAPISecret == "" {
		return nil, errors.New("ORDERS_API_SECRET is required")
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.Errorf("POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
