package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Checker is a dependency the health endpoint reports on.
type Checker interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports process and dependency health.
type HealthHandler struct {
	database Checker
	queue    Checker
}

// NewHealthHandler creates a HealthHandler. A nil checker is reported as
// "disabled".
func NewHealthHandler(database, queue Checker) *HealthHandler {
	return &HealthHandler{database: database, queue: queue}
}

// RegisterRoutes registers the health route.
func (h *HealthHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/health", h.HandleHealth)
}

// HandleHealth answers 200 when every enabled dependency responds, 503 otherwise.
func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	database := check(ctx, h.database)
	queue := check(ctx, h.queue)

	status, code := "healthy", fiber.StatusOK
	if database == "unavailable" || queue == "unavailable" {
		status, code = "degraded", fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"database": database,
		"queue":    queue,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

func check(ctx context.Context, c Checker) string {
	if c == nil {
		return "disabled"
	}
	if err := c.Ping(ctx); err != nil {
		return "unavailable"
	}
	return "ok"
}
