package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/challenge"
)

const ordersSecret = "shared-secret"

type recordingNotifier struct {
	mu     sync.Mutex
	orders []string
}

func (n *recordingNotifier) NotifyNewOrder(_ context.Context, order *models.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order.ID)
}

func (n *recordingNotifier) notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.orders...)
}

type testEnv struct {
	app         *fiber.App
	db          *gorm.DB
	authService *services.AuthService
	notifier    *recordingNotifier
}

// setupApp builds the API against an in-memory SQLite database.
func setupApp(t *testing.T) *testEnv {
	t.Helper()

	db, err := repositories.OpenDB(repositories.DBConfig{
		Driver: repositories.DriverSQLite,
		DSN:    "file:" + t.Name() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))
	t.Cleanup(func() { _ = repositories.CloseDB(db) })

	logger := zap.NewNop()
	notifier := &recordingNotifier{}

	orderService := services.NewOrderService(repositories.NewGORMOrderRepository(db), notifier, logger)
	productService := services.NewProductService(repositories.NewGORMProductRepository(db))
	authService := services.NewAuthService(repositories.NewGORMUserRepository(db), "test_jwt_secret", logger)
	notificationService := services.NewNotificationService(repositories.NewGORMPushTokenRepository(db), nil, logger)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(logger)})
	validate := handlers.NewValidator()
	authRequired := middleware.AuthRequired(authService, logger)

	handlers.NewHealthHandler(repositories.NewDBChecker(db), nil).RegisterRoutes(app)
	api := app.Group("/api")
	handlers.NewOrderHandler(orderService, challenge.NewAuthenticator(ordersSecret), validate, logger).RegisterRoutes(api)
	handlers.NewPushHandler(notificationService, validate).RegisterRoutes(api)
	handlers.NewProductHandler(productService, validate).RegisterRoutes(api, authRequired)
	handlers.NewAuthHandler(authService, validate).RegisterRoutes(api, authRequired)

	return &testEnv{app: app, db: db, authService: authService, notifier: notifier}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, headers ...string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(b)
		}
		reader = strings.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// ordersURL returns an authenticated /api/orders URL with extra query appended.
func ordersURL(extra string) string {
	ch := challenge.NewChallenge()
	u := "/api/orders?challenge=" + ch + "&response=" + challenge.Response(ch, ordersSecret)
	if extra != "" {
		u += "&" + extra
	}
	return u
}

func orderBody(session string, shipping string, items ...map[string]any) map[string]any {
	return map[string]any{
		"paymentSessionId": session,
		"currency":         "EUR",
		"status":           "paid",
		"shippingType":     shipping,
		"items":            items,
	}
}

func item(name string, qty int, price float64) map[string]any {
	return map[string]any{"name": name, "size": "M", "quantity": qty, "price": price}
}

func (e *testEnv) createOrder(t *testing.T, body map[string]any) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]any](t, resp)
	assert.Equal(t, true, created["success"])
	id, _ := created["orderId"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestOrders_ChallengeHandshake(t *testing.T) {
	env := setupApp(t)

	resp := env.do(t, http.MethodGet, "/api/orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	issued := decode[map[string]string](t, resp)
	ch := issued["challenge"]
	assert.Len(t, ch, 13)

	good := challenge.Response(ch, ordersSecret)
	resp = env.do(t, http.MethodGet, "/api/orders?challenge="+ch+"&response="+good, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]models.Order](t, resp))

	for _, q := range []string{
		"?challenge=" + ch + "&response=" + challenge.Response(ch, "other-secret"),
		"?challenge=" + ch,
		"?response=" + good,
	} {
		resp = env.do(t, http.MethodGet, "/api/orders"+q, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, q)
		assert.Equal(t, "Unauthorized", decode[map[string]string](t, resp)["error"])
	}
}

func TestOrders_BrowserGetsPage(t *testing.T) {
	env := setupApp(t)

	for _, target := range []string{"/api/orders", "/api/orders?challenge=x&response=y"} {
		resp := env.do(t, http.MethodGet, target, nil, "Accept", "text/html,application/xhtml+xml")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "<html")
	}
}

func TestOrders_CreateListAndGet(t *testing.T) {
	env := setupApp(t)

	first := env.createOrder(t, orderBody("cs_1", "Standard", item("T-Shirt", 2, 30), item("Cap", 1, 50)))
	second := env.createOrder(t, orderBody("cs_2", "Express", item("Hoodie", 1, 20)))
	assert.Equal(t, []string{first, second}, env.notifier.notified())

	resp := env.do(t, http.MethodGet, ordersURL(""), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	orders := decode[[]map[string]any](t, resp)
	require.Len(t, orders, 2)

	assert.Equal(t, second, orders[0]["id"])
	assert.InDelta(t, 20.0, orders[0]["subtotal"], 0.001)
	assert.InDelta(t, 10.0, orders[0]["shippingCost"], 0.001)
	assert.InDelta(t, 30.0, orders[0]["amount"], 0.001)

	assert.Equal(t, first, orders[1]["id"])
	assert.InDelta(t, 110.0, orders[1]["subtotal"], 0.001)
	assert.InDelta(t, 0.0, orders[1]["shippingCost"], 0.001)
	assert.InDelta(t, 110.0, orders[1]["amount"], 0.001)
	assert.Equal(t, "eur", orders[1]["currency"])
	assert.Equal(t, false, orders[1]["fulfilled"])

	resp = env.do(t, http.MethodGet, ordersURL("id="+first), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	one := decode[map[string]any](t, resp)
	assert.Equal(t, "cs_1", one["paymentSessionId"])
	assert.Len(t, one["items"], 2)

	resp = env.do(t, http.MethodGet, ordersURL("id=does-not-exist"), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, ordersURL("limit=1"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Order](t, resp), 1)

	resp = env.do(t, http.MethodGet, ordersURL("limit=-1"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrders_CreateRejectsBadInput(t *testing.T) {
	env := setupApp(t)

	resp := env.do(t, http.MethodPost, "/api/orders", orderBody("", "Standard", item("Cap", 1, 10)))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/orders", orderBody("cs_bad", "Standard", item("Cap", 0, 10)))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/orders", orderBody("cs_bad", "Standard", item("Cap", 1, -3)))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/orders", `{"paymentSessionId":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env.createOrder(t, orderBody("cs_dup", "Standard", item("Cap", 1, 10)))
	resp = env.do(t, http.MethodPost, "/api/orders", orderBody("cs_dup", "Standard", item("Cap", 1, 10)))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	assert.Len(t, env.notifier.notified(), 1)
}

func TestOrders_Fulfillment(t *testing.T) {
	env := setupApp(t)
	id := env.createOrder(t, orderBody("cs_1", "Standard", item("Cap", 1, 10)))

	resp := env.do(t, http.MethodPost, "/api/update-order-fulfillment", map[string]any{"orderId": id, "fulfilled": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode[map[string]any](t, resp)["success"])

	resp = env.do(t, http.MethodGet, ordersURL("fulfilled=true"), nil)
	fulfilled := decode[[]models.Order](t, resp)
	require.Len(t, fulfilled, 1)
	assert.True(t, fulfilled[0].Fulfilled)

	resp = env.do(t, http.MethodGet, ordersURL("fulfilled=false"), nil)
	assert.Empty(t, decode[[]models.Order](t, resp))

	resp = env.do(t, http.MethodPost, "/api/update-order-fulfillment", map[string]any{"orderId": id, "fulfilled": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/update-order-fulfillment", map[string]any{"orderId": "ghost", "fulfilled": true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var count int64
	require.NoError(t, env.db.Model(&models.Order{}).Where("id = ?", "ghost").Count(&count).Error)
	assert.Zero(t, count)

	resp = env.do(t, http.MethodPost, "/api/update-order-fulfillment", map[string]any{"orderId": id})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/update-order-fulfillment", map[string]any{"fulfilled": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPricingQuote(t *testing.T) {
	env := setupApp(t)

	cases := []struct {
		name                        string
		body                        map[string]any
		subtotal, shipping, total float64
	}{
		{"free shipping", map[string]any{"shippingType": "Standard", "items": []any{item("A", 2, 30), item("B", 1, 50)}}, 110, 0, 110},
		{"express", map[string]any{"shippingType": "Express", "items": []any{item("A", 1, 20)}}, 20, 10, 30},
		{"empty cart", map[string]any{}, 0, 5, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/pricing/quote", tc.body)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			totals := decode[map[string]float64](t, resp)
			assert.InDelta(t, tc.subtotal, totals["subtotal"], 0.001)
			assert.InDelta(t, tc.shipping, totals["shippingCost"], 0.001)
			assert.InDelta(t, tc.total, totals["total"], 0.001)
		})
	}
}

func TestRegisterPushToken(t *testing.T) {
	env := setupApp(t)

	for _, method := range []string{http.MethodPost, http.MethodPut} {
		resp := env.do(t, method, "/api/register-push-token", map[string]string{"token": "ExponentPushToken[abc]"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, decode[map[string]any](t, resp)["success"])
	}

	var count int64
	require.NoError(t, env.db.Model(&models.PushRegistration{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	resp := env.do(t, http.MethodPost, "/api/register-push-token", map[string]string{"token": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	require.NoError(t, e.authService.RegisterUser(context.Background(), &models.User{
		Username: "authuser",
		Email:    "auth@example.com",
		Password: "securepassword",
	}))

	resp := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "authuser", "password": "securepassword"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := decode[map[string]string](t, resp)["token"]
	require.NotEmpty(t, token)
	return token
}

func TestAuthLoginAndRegister(t *testing.T) {
	env := setupApp(t)
	token := env.adminToken(t)

	claims, err := env.authService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "authuser", claims["username"])

	resp := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "authuser", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	newAdmin := map[string]string{"username": "second", "email": "second@example.com", "password": "password123"}
	resp = env.do(t, http.MethodPost, "/api/auth/register", newAdmin)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/register", newAdmin, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	registered := decode[map[string]any](t, resp)
	assert.Equal(t, "User registered successfully", registered["message"])
	assert.NotContains(t, registered["user"], "password")

	resp = env.do(t, http.MethodPost, "/api/auth/register", newAdmin, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestProductEndpoints(t *testing.T) {
	env := setupApp(t)
	token := env.adminToken(t)
	auth := []string{"Authorization", "Bearer " + token}

	newProduct := map[string]any{"name": "Smartphone", "description": "Latest model", "price": 799.99, "stock": 50}
	resp := env.do(t, http.MethodPost, "/api/products", newProduct, auth...)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.Product](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []string{"One size"}, created.Sizes)

	resp = env.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Product](t, resp), 1)

	resp = env.do(t, http.MethodGet, "/api/products/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Smartphone", decode[models.Product](t, resp).Name)

	update := map[string]any{"name": "Smartphone Pro", "description": "Pro edition", "price": 899.99, "stock": 45, "sizes": []string{"128GB"}}
	resp = env.do(t, http.MethodPut, "/api/products/"+created.ID, update, auth...)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[models.Product](t, resp)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Smartphone Pro", updated.Name)
	assert.Equal(t, "899.99", updated.Price.StringFixed(2))

	resp = env.do(t, http.MethodPost, "/api/products", map[string]any{"name": "Free", "price": 0}, auth...)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/products/"+created.ID, nil, auth...)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, decode[map[string]string](t, resp)["message"], "deleted successfully")

	resp = env.do(t, http.MethodGet, "/api/products/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProductWritesRequireAuth(t *testing.T) {
	env := setupApp(t)

	resp := env.do(t, http.MethodPost, "/api/products", map[string]any{"name": "Unauthorized Product", "price": 100.0, "stock": 10})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/products/any", nil, "Authorization", "Bearer forged")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := setupApp(t)

	resp := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[map[string]string](t, resp)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "ok", health["database"])
	assert.Equal(t, "disabled", health["queue"])
}
