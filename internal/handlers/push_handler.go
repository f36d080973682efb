package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/services"
)

// PushHandler registers devices for new-order notifications.
type PushHandler struct {
	service  *services.NotificationService
	validate *validator.Validate
}

// NewPushHandler creates a new PushHandler.
func NewPushHandler(service *services.NotificationService, validate *validator.Validate) *PushHandler {
	return &PushHandler{service: service, validate: validate}
}

// RegisterRoutes registers the push routes.
func (h *PushHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/register-push-token", h.HandleRegisterToken)
	router.Put("/register-push-token", h.HandleRegisterToken)
}

// PushTokenRequest is the body of a token registration.
type PushTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// HandleRegisterToken upserts the device token.
func (h *PushHandler) HandleRegisterToken(c *fiber.Ctx) error {
	var req PushTokenRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}
	if err := h.service.RegisterToken(c.UserContext(), req.Token); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}
