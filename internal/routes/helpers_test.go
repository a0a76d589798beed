package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/hairnova/internal/config"
	"github.com/example/hairnova/internal/database"
	"github.com/example/hairnova/internal/handlers"
	"github.com/example/hairnova/internal/middleware"
	"github.com/example/hairnova/internal/models"
	"github.com/example/hairnova/internal/pricing"
	"github.com/example/hairnova/internal/services"
	"github.com/example/hairnova/internal/utils"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockImages struct {
	mock.Mock
}

func (m *mockImages) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	args := m.Called(key, contentType)
	return args.String(0), args.Error(1)
}

func (m *mockImages) Delete(ctx context.Context, url string) error {
	return m.Called(url).Error(0)
}

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	cfg    *config.Config
	mailer *mockMailer
	images *mockImages
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newLimitedTestEnv(t, 1000, 1000)
}

// newLimitedTestEnv builds the app with a rate limiter of perMinute and burst
// on the auth endpoints.
func newLimitedTestEnv(t *testing.T, perMinute, burst int) *testEnv {
	t.Helper()

	db, err := database.OpenInMemory()
	require.NoError(t, err)

	mailer := new(mockMailer)
	mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	images := new(mockImages)

	cfg := &config.Config{JWTSecret: "test-secret", TokenExpires: time.Hour, Environment: "test"}
	log := zap.NewNop()
	limiter := middleware.NewRateLimiter(perMinute, burst)
	t.Cleanup(limiter.Stop)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(log)})
	Register(app, Deps{
		DB:       db,
		Config:   cfg,
		Log:      log,
		Sessions: NewSessionStore(cfg, nil),
		OTP:      services.NewOTPService(db, services.NewEmailService(mailer, 10*time.Minute), 10*time.Minute),
		Images:   images,
		Telegram: services.NewTelegramService("", "", log),
		Limiter:  limiter,
	})

	return &testEnv{app: app, db: db, cfg: cfg, mailer: mailer, images: images}
}

// client carries a bearer token and the session cookie between requests.
type client struct {
	env     *testEnv
	token   string
	session *http.Cookie
}

func (e *testEnv) guest() *client {
	return &client{env: e}
}

func (e *testEnv) as(t *testing.T, user models.User) *client {
	token, err := utils.GenerateToken(e.cfg.JWTSecret, user.ID, string(user.Role), time.Hour)
	require.NoError(t, err)
	return &client{env: e, token: token}
}

type response map[string]interface{}

func (r response) data() map[string]interface{} {
	d, _ := r["data"].(map[string]interface{})
	return d
}

func (r response) list() []interface{} {
	l, _ := r["data"].([]interface{})
	return l
}

func (cl *client) send(t *testing.T, req *http.Request) (int, response) {
	t.Helper()
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}
	if cl.session != nil {
		req.AddCookie(cl.session)
	}

	resp, err := cl.env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	for _, ck := range resp.Cookies() {
		if ck.Name == sessionCookie {
			cl.session = &http.Cookie{Name: ck.Name, Value: ck.Value}
		}
	}

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out response
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (cl *client) do(t *testing.T, method, path string, body interface{}) (int, response) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return cl.send(t, req)
}

var otpPattern = regexp.MustCompile(`letter-spacing:6px">(\d{6})<`)

// lastCode returns the code from the most recent email.
func (e *testEnv) lastCode(t *testing.T) string {
	t.Helper()
	calls := e.mailer.Calls
	require.NotEmpty(t, calls)
	match := otpPattern.FindStringSubmatch(calls[len(calls)-1].Arguments.String(2))
	require.Len(t, match, 2)
	return match[1]
}

func (e *testEnv) seedUser(t *testing.T, email string, role models.Role) models.User {
	t.Helper()
	hash, err := utils.HashPassword("secret1")
	require.NoError(t, err)
	user := models.User{
		Username:        email,
		Email:           email,
		Phone:           uuid.NewString()[:12],
		FullName:        "Test " + string(role),
		PasswordHash:    hash,
		IsEmailVerified: true,
		Role:            role,
	}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

func variant(capacity string, price int64, stock int) pricing.Variant {
	v := pricing.Variant{Capacity: capacity, Stock: stock}
	if price > 0 {
		v.Price = decimal.NewNullDecimal(decimal.NewFromInt(price))
	}
	return v
}

func (e *testEnv) seedProduct(t *testing.T, name string, price int64, stock int, variants ...pricing.Variant) models.Product {
	t.Helper()
	p := models.Product{
		Name:     name,
		Price:    decimal.NewFromInt(price),
		Stock:    stock,
		IsActive: true,
		Images:   []string{},
	}
	require.NoError(t, p.SetVariants(variants))
	require.NoError(t, e.db.Create(&p).Error)
	return p
}

func (e *testEnv) reload(t *testing.T, id uuid.UUID) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, e.db.First(&p, "id = ?", id).Error)
	return p
}

func dec(t *testing.T, v interface{}) decimal.Decimal {
	t.Helper()
	s, ok := v.(string)
	require.True(t, ok, "expected decimal string, got %T", v)
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func checkoutBody() map[string]interface{} {
	return map[string]interface{}{
		"full_name": "Nguyen Lan",
		"phone":     "0901234567",
		"email":     "lan@example.com",
		"province":  "Ha Noi",
		"ward":      "Ba Dinh",
		"address":   "12 Kim Ma",
	}
}
