package handlers

import (
	_ "embed"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"
	"storefront/pkg/challenge"
)

//go:embed orders_page.html
var ordersPage []byte

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	auth     *challenge.Authenticator
	validate *validator.Validate
	logger   *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, auth *challenge.Authenticator, validate *validator.Validate, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		auth:     auth,
		validate: validate,
		logger:   logger,
	}
}

// RegisterRoutes registers the order routes.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/orders", h.HandleBrowser, middleware.ChallengeRequired(h.auth, h.logger), h.HandleGetOrders)
	router.Post("/orders", h.HandleCreateOrder)
	router.Post("/update-order-fulfillment", h.HandleUpdateFulfillment)
	router.Post("/pricing/quote", h.HandleQuote)
}

// HandleBrowser answers browsers with a static page, whatever the query.
func (h *OrderHandler) HandleBrowser(c *fiber.Ctx) error {
	if !strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMETextHTML) {
		return c.Next()
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(ordersPage)
}

// HandleGetOrders returns one order (?id=) or a filtered list, newest first.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	if id := c.Query("id"); id != "" {
		order, err := h.service.GetOrder(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(order)
	}

	filter, err := parseOrderFilter(c)
	if err != nil {
		return err
	}
	orders, err := h.service.ListOrders(c.UserContext(), filter)
	if err != nil {
		return err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return c.JSON(orders)
}

func parseOrderFilter(c *fiber.Ctx) (models.OrderFilter, error) {
	var filter models.OrderFilter

	if raw := c.Query("fulfilled"); raw != "" {
		fulfilled, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, errors.Wrapf(models.ErrValidation, "invalid fulfilled %q", raw)
		}
		filter.Fulfilled = &fulfilled
	}
	filter.Status = c.Query("status")
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return filter, errors.Wrapf(models.ErrValidation, "invalid since %q", raw)
		}
		filter.Since = since
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, errors.Wrapf(models.ErrValidation, "invalid limit %q", raw)
		}
		filter.Limit = limit
	}
	return filter, nil
}

// HandleCreateOrder stores an order sent by the checkout flow.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var order models.Order
	if ok, err := parseBody(c, h.validate, &order); !ok {
		return err
	}

	created, err := h.service.CreateOrder(c.UserContext(), &order)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"orderId": created.ID,
	})
}

// FulfillmentRequest is the body of the fulfillment update.
type FulfillmentRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	Fulfilled *bool  `json:"fulfilled" validate:"required"`
}

// HandleUpdateFulfillment sets or clears an order's fulfilled flag.
func (h *OrderHandler) HandleUpdateFulfillment(c *fiber.Ctx) error {
	var req FulfillmentRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	if err := h.service.SetFulfilled(c.UserContext(), req.OrderID, *req.Fulfilled); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// QuoteRequest is a cart to be priced.
type QuoteRequest struct {
	Items        []models.LineItem `json:"items" validate:"omitempty,dive"`
	ShippingType *string           `json:"shippingType"`
}

// HandleQuote prices a cart without storing it.
func (h *OrderHandler) HandleQuote(c *fiber.Ctx) error {
	var req QuoteRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}
	return c.JSON(h.service.Quote(req.Items, req.ShippingType))
}
