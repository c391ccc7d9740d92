package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/events"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/payment"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testJWTSecret     = "test_jwt_secret"
	testWebhookSecret = "whsec_test"
)

type testEnv struct {
	app     *fiber.App
	auth    *services.AuthService
	store   repositories.Store
	gateway *payment.MockGateway
}

// setupApp wires every handler against an isolated in-memory SQLite database.
func setupApp(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true, Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repositories.Migrate(db))

	log := zap.NewNop()
	store := repositories.NewGORMStore(db)
	gateway := payment.NewMockGateway("http://shop.local", testWebhookSecret)

	authService := services.NewAuthService(repositories.NewGORMUserRepository(db), testJWTSecret, log)
	productService := services.NewProductService(store.Products())
	cartService := services.NewCartService(repositories.NewMockCartRepository(), store.Products())
	wishlistService := services.NewWishlistService(repositories.NewGORMWishlistRepository(db), store.Products())
	orderService := services.NewOrderService(store, cartService, gateway, events.NewPublisher(nil, log),
		services.OrderConfig{BaseURL: "http://shop.local", ShippingAmount: 30}, log)

	app := fiber.New()
	handlers.NewMockCheckoutHandler(orderService, testWebhookSecret, log).RegisterRoutes(app)
	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(authService, log).RegisterRoutes(apiV1)
	handlers.NewPaymentHandler(orderService, log).RegisterRoutes(apiV1)
	productHandler := handlers.NewProductHandler(productService, log)
	productHandler.RegisterPublicRoutes(apiV1)

	protectedRoutes := apiV1.Group("", middleware.AuthRequired(authService))
	productHandler.RegisterRoutes(protectedRoutes)
	handlers.NewCartHandler(cartService, log).RegisterRoutes(protectedRoutes)
	handlers.NewWishlistHandler(wishlistService, log).RegisterRoutes(protectedRoutes)
	handlers.NewOrderHandler(orderService, log).RegisterRoutes(protectedRoutes)

	env := &testEnv{app: app, auth: authService, store: store, gateway: gateway}
	env.seedProduct(t, "p-laptop", "Test Laptop", 1000, 5)
	env.seedProduct(t, "p-monitor", "Test Monitor", 200, 10)
	return env
}

func (e *testEnv) seedProduct(t *testing.T, id, name string, price float64, stock int) {
	t.Helper()
	require.NoError(t, e.store.Products().Create(context.Background(),
		&models.Product{ID: id, Name: name, Price: price, Stock: stock}))
}

func (e *testEnv) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := e.store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

// do sends a JSON request and decodes the JSON response into out when out is non-nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	var resp map[string]string
	status := e.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": username, "password": password}, &resp)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, resp["token"])
	return resp["token"]
}

func (e *testEnv) registerAndLogin(t *testing.T, username string) string {
	t.Helper()
	status := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	}, nil)
	require.Equal(t, http.StatusCreated, status)
	return e.login(t, username, "password123")
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	require.NoError(t, e.auth.EnsureAdmin(context.Background(), "admin", "admin@example.com", "adminpass"))
	return e.login(t, "admin", "adminpass")
}

type checkoutResponse struct {
	Message     string       `json:"message"`
	Order       models.Order `json:"order"`
	RedirectURL string       `json:"redirect_url"`
}

func (e *testEnv) checkout(t *testing.T, token string, method models.PaymentMethod, lines map[string]int) checkoutResponse {
	t.Helper()
	for id, qty := range lines {
		require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/v1/cart", token,
			map[string]any{"product_id": id, "qty": qty}, nil))
	}
	var resp checkoutResponse
	status := e.do(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"payment_method": method,
		"street":         "1 Main St",
		"city":           "Cairo",
	}, &resp)
	require.Equal(t, http.StatusCreated, status)
	return resp
}

func (e *testEnv) webhook(t *testing.T, evType payment.EventType, sessionID, signature string) int {
	t.Helper()
	body := payment.NewEventPayload("evt_"+uuid.NewString(), evType, sessionID)
	if signature == "" {
		signature = payment.Sign(body, testWebhookSecret, time.Now())
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(payment.SignatureHeader, signature)
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func (e *testEnv) orderStatus(t *testing.T, token string, id uint) models.OrderStatus {
	t.Helper()
	var details services.OrderDetails
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", id), token, nil, &details))
	return details.Order.Status
}

func TestAuthRegisterAndLogin(t *testing.T) {
	env := setupApp(t)

	user := map[string]string{
		"username": "testuser",
		"email":    "test@example.com",
		"password": "password123",
	}
	var registerResp map[string]any
	assert.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/auth/register", "", user, &registerResp))
	assert.Equal(t, "User registered successfully", registerResp["message"])

	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/v1/auth/register", "", user, nil))

	token := env.login(t, "testuser", "password123")
	claims, err := env.auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "testuser", claims.Username)
	assert.Equal(t, models.RoleUser, claims.Role)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "testuser", "password": "wrong"}, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "testuser"}, nil))
}

func TestProductEndpoints(t *testing.T) {
	env := setupApp(t)
	admin := env.adminToken(t)
	user := env.registerAndLogin(t, "shopper")

	var products []models.Product
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/products", "", nil, &products))
	assert.Len(t, products, 2)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/products/p-laptop", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/products/missing", "", nil, nil))

	newProduct := map[string]any{
		"name":        "Smartphone",
		"description": "Latest model smartphone",
		"price":       799.99,
		"stock":       50,
	}
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/v1/products", "", newProduct, nil))
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/v1/products", user, newProduct, nil))

	var created models.Product
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/products", admin, newProduct, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Smartphone", created.Name)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/v1/products", admin,
		map[string]any{"name": "No price"}, nil))

	var updated models.Product
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/api/v1/products/"+created.ID, admin, map[string]any{
		"name":  "Smartphone Pro",
		"price": 899.99,
		"stock": 45,
	}, &updated))
	assert.Equal(t, "Smartphone Pro", updated.Name)
	assert.Equal(t, 45, updated.Stock)

	var deleteResp map[string]string
	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/v1/products/"+created.ID, admin, nil, &deleteResp))
	assert.Contains(t, deleteResp["message"], "deleted successfully")
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/products/"+created.ID, "", nil, nil))
}

func TestCartEndpoints(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "shopper")

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/v1/cart", "", nil, nil))

	var cart struct {
		Cart []models.CartItem `json:"cart"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/cart", token,
		map[string]any{"product_id": "p-laptop"}, &cart))
	require.Len(t, cart.Cart, 1)
	assert.Equal(t, 1, cart.Cart[0].Qty)
	assert.Equal(t, "Test Laptop", cart.Cart[0].Name)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/api/v1/cart", token,
		map[string]any{"product_id": "p-laptop", "qty": 3}, &cart))
	assert.Equal(t, 3, cart.Cart[0].Qty)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/v1/cart", token,
		map[string]any{"qty": 1}, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/v1/cart", token,
		map[string]any{"product_id": "missing"}, nil))

	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/v1/cart/p-laptop", token, nil, &cart))
	assert.Empty(t, cart.Cart)
}

func TestWishlistEndpoints(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "shopper")

	var list struct {
		Added    bool                  `json:"added"`
		Wishlist []models.WishlistItem `json:"wishlist"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/wishlist", token,
		map[string]string{"product_id": "p-laptop"}, &list))
	assert.Len(t, list.Wishlist, 1)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/wishlist/toggle", token,
		map[string]string{"product_id": "p-monitor"}, &list))
	assert.True(t, list.Added)
	assert.Len(t, list.Wishlist, 2)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/v1/wishlist/p-laptop", token, nil, &list))
	assert.Len(t, list.Wishlist, 1)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/api/v1/wishlist", token,
		map[string]any{"product_ids": []string{"p-laptop", "p-monitor", "p-laptop"}}, &list))
	assert.Len(t, list.Wishlist, 2)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/v1/wishlist", token,
		map[string]string{}, nil))
}

func TestCheckoutAndPaymentWebhook(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "shopper")

	res := env.checkout(t, token, models.PaymentCredit, map[string]int{"p-laptop": 2})
	assert.Equal(t, "Order created successfully", res.Message)
	assert.Equal(t, models.StatusPending, res.Order.Status)
	assert.Equal(t, 2030.0, res.Order.Total)
	assert.NotEmpty(t, res.Order.PaymentID)
	assert.Equal(t, res.Order.PaymentURL, res.RedirectURL)
	assert.Equal(t, 3, env.stock(t, "p-laptop"))

	var cart struct {
		Cart []models.CartItem `json:"cart"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/cart", token, nil, &cart))
	assert.Empty(t, cart.Cart)

	assert.Equal(t, http.StatusBadRequest, env.webhook(t, payment.EventSessionCompleted, res.Order.PaymentID, "t=1,v1=deadbeef"))
	assert.Equal(t, models.StatusPending, env.orderStatus(t, token, res.Order.ID))

	assert.Equal(t, http.StatusOK, env.webhook(t, payment.EventSessionCompleted, res.Order.PaymentID, ""))
	assert.Equal(t, models.StatusAccepted, env.orderStatus(t, token, res.Order.ID))

	// A replayed notification is acknowledged without further effect.
	assert.Equal(t, http.StatusOK, env.webhook(t, payment.EventSessionCompleted, res.Order.PaymentID, ""))
	assert.Equal(t, http.StatusOK, env.webhook(t, payment.EventSessionExpired, res.Order.PaymentID, ""))
	assert.Equal(t, models.StatusAccepted, env.orderStatus(t, token, res.Order.ID))
	assert.Equal(t, 3, env.stock(t, "p-laptop"))
}

func TestCheckoutRejections(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "shopper")

	var resp map[string]any
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"payment_method": "cash", "street": "1 Main St", "city": "Cairo",
	}, &resp))
	assert.Equal(t, "No items in the cart", resp["message"])

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/cart", token,
		map[string]any{"product_id": "p-laptop", "qty": 2}, nil))
	require.NoError(t, env.store.Products().Update(context.Background(),
		&models.Product{ID: "p-laptop", Name: "Test Laptop", Price: 1000, Stock: 1}))

	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"payment_method": "cash", "street": "1 Main St", "city": "Cairo",
	}, &resp))
	assert.Contains(t, resp["message"], "stock is not enough")
	assert.Equal(t, 1, env.stock(t, "p-laptop"))

	env.gateway.FailWith(fmt.Errorf("provider down"))
	require.NoError(t, env.store.Products().Update(context.Background(),
		&models.Product{ID: "p-laptop", Name: "Test Laptop", Price: 1000, Stock: 5}))
	assert.Equal(t, http.StatusBadGateway, env.do(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"payment_method": "credit", "street": "1 Main St", "city": "Cairo",
	}, nil))
	assert.Equal(t, 5, env.stock(t, "p-laptop"))
}

func TestMockCheckoutExpiry(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "shopper")

	res := env.checkout(t, token, models.PaymentCredit, map[string]int{"p-monitor": 4})
	assert.Equal(t, 6, env.stock(t, "p-monitor"))

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/checkout/"+res.Order.PaymentID, "", nil, nil))
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/checkout/"+res.Order.PaymentID+"/expire", "", nil, nil))
	assert.Equal(t, models.StatusCancelled, env.orderStatus(t, token, res.Order.ID))
	assert.Equal(t, 10, env.stock(t, "p-monitor"))

	// Completing after expiry must not resurrect the order.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/checkout/"+res.Order.PaymentID+"/complete", "", nil, nil))
	assert.Equal(t, models.StatusCancelled, env.orderStatus(t, token, res.Order.ID))
}

func TestCancelOrderEndpoint(t *testing.T) {
	env := setupApp(t)
	owner := env.registerAndLogin(t, "owner")
	other := env.registerAndLogin(t, "other")

	res := env.checkout(t, owner, models.PaymentCash, map[string]int{"p-monitor": 3})
	assert.Equal(t, 7, env.stock(t, "p-monitor"))
	path := fmt.Sprintf("/api/v1/orders/%d/cancel", res.Order.ID)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, path, other, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/v1/orders/9999/cancel", owner, nil, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/v1/orders/abc/cancel", owner, nil, nil))

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, path, owner, nil, nil))
	assert.Equal(t, 10, env.stock(t, "p-monitor"))
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, path, owner, nil, nil))
	assert.Equal(t, 10, env.stock(t, "p-monitor"))
}

func TestAdminOrderEndpoints(t *testing.T) {
	env := setupApp(t)
	admin := env.adminToken(t)
	user := env.registerAndLogin(t, "shopper")

	res := env.checkout(t, user, models.PaymentCash, map[string]int{"p-laptop": 1, "p-monitor": 2})
	statusPath := fmt.Sprintf("/api/v1/orders/%d/status", res.Order.ID)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/v1/orders", user, nil, nil))
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPatch, statusPath, user,
		map[string]string{"status": "accepted"}, nil))

	var orders []models.Order
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/orders", admin, nil, &orders))
	assert.Len(t, orders, 1)

	var count map[string]int64
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/orders/count", admin, nil, &count))
	assert.Equal(t, int64(1), count["count"])

	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPatch, statusPath, admin,
		map[string]string{"status": "delivered"}, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPatch, statusPath, admin,
		map[string]string{"status": "shipped"}, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPatch, statusPath, admin, map[string]string{}, nil))

	for _, next := range []models.OrderStatus{models.StatusAccepted, models.StatusOnWay, models.StatusDelivered} {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPatch, statusPath, admin,
			map[string]string{"status": string(next)}, nil), "moving to %s", next)
	}
	assert.Equal(t, models.StatusDelivered, env.orderStatus(t, user, res.Order.ID))

	var mine []models.Order
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/orders/mine", user, nil, &mine))
	assert.Len(t, mine, 1)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/orders/%d", res.Order.ID), admin, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", res.Order.ID), user, nil, nil))
}

func TestReorderEndpoint(t *testing.T) {
	env := setupApp(t)
	admin := env.adminToken(t)
	user := env.registerAndLogin(t, "shopper")

	res := env.checkout(t, user, models.PaymentCash, map[string]int{"p-laptop": 2})
	reorderPath := fmt.Sprintf("/api/v1/orders/%d/reorder", res.Order.ID)
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, reorderPath, user, nil, nil))

	statusPath := fmt.Sprintf("/api/v1/orders/%d/status", res.Order.ID)
	for _, next := range []string{"accepted", "on_way", "delivered"} {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPatch, statusPath, admin, map[string]string{"status": next}, nil))
	}

	var result struct {
		Message string `json:"message"`
		services.ReorderResult
	}
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, reorderPath, user, nil, &result))
	assert.Equal(t, "Re-Order Done Successfully", result.Message)
	require.Len(t, result.Cart, 1)
	assert.Equal(t, "p-laptop", result.Cart[0].ProductID)
	assert.Equal(t, 2, result.Cart[0].Qty)
	assert.Empty(t, result.Errors)
}

func TestDiscountEndpoint(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "shopper")

	var resp map[string]any
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/orders/discount", token,
		map[string]string{"promo_code": "10off"}, &resp))
	assert.Equal(t, 0.1, resp["discount"])

	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/v1/orders/discount", token,
		map[string]string{"promo_code": "BOGUS"}, &resp))
	assert.Equal(t, "Invalid Promo Code", resp["message"])
}
