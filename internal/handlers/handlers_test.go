package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/hairnova/internal/database"
	"github.com/example/hairnova/internal/models"
)

func TestErrorHandler(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.New(core))})
	app.Get("/teapot", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusTeapot, "short and stout") })
	app.Get("/missing", func(c *fiber.Ctx) error { return gorm.ErrRecordNotFound })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("db exploded") })

	cases := []struct {
		path    string
		status  int
		message string
	}{
		{"/teapot", http.StatusTeapot, "short and stout"},
		{"/missing", http.StatusNotFound, "not found"},
		{"/boom", http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, tc.path, nil))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, tc.status, resp.StatusCode, tc.path)
		assert.Contains(t, string(body), `"success":false`)
		assert.Contains(t, string(body), tc.message)
	}

	require.Equal(t, 1, logs.Len(), "only server errors are logged")
	assert.Equal(t, "/boom", logs.All()[0].ContextMap()["path"])
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%argan%", likePattern("  ARGAN "))
	assert.Equal(t, `%50\%\_off\\%`, likePattern(`50%_off\`))
}

func TestStatusError(t *testing.T) {
	var fe *fiber.Error
	require.ErrorAs(t, statusError(models.ErrInvalidTransition), &fe)
	assert.Equal(t, fiber.StatusConflict, fe.Code)
	require.ErrorAs(t, statusError(models.ErrUnknownStatus), &fe)
	assert.Equal(t, fiber.StatusBadRequest, fe.Code)

	other := errors.New("x")
	assert.Same(t, other, statusError(other))
}

func TestNewOrderResponse(t *testing.T) {
	resp := newOrderResponse(models.Order{Status: models.StatusPending, PaymentMethod: models.PaymentBank})
	assert.Equal(t, "Bank transfer", resp.PaymentMethodName)
	assert.Equal(t, models.StatusPending.DisplayName(), resp.StatusName)
	assert.ElementsMatch(t, []models.OrderStatus{models.StatusConfirmed, models.StatusCancelled}, resp.AllowedTransitions)

	final := newOrderResponse(models.Order{Status: models.StatusCompleted})
	assert.NotNil(t, final.AllowedTransitions)
	assert.Empty(t, final.AllowedTransitions)
}

func TestAvatarURL(t *testing.T) {
	u := avatarURL("Tran Mai")
	assert.True(t, strings.HasPrefix(u, avatarBaseURL+"?"))
	assert.Contains(t, u, "name=Tran+Mai")
}

func TestVoucherDiscountIsZero(t *testing.T) {
	assert.True(t, voucherDiscount("SUMMER10", decimal.NewFromInt(500000)).IsZero())
}

func TestForUpdateAddsRowLock(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)

	var products []models.Product
	stmt := forUpdate(db.Session(&gorm.Session{DryRun: true})).Find(&products).Statement
	c, ok := stmt.Clauses["FOR"]
	require.True(t, ok, "locking clause attached")
	lock, ok := c.Expression.(clause.Locking)
	require.True(t, ok)
	assert.Equal(t, clause.LockingStrengthUpdate, lock.Strength)
}
