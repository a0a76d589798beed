package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/hairnova/internal/models"
	"github.com/example/hairnova/internal/reports"
	"github.com/example/hairnova/internal/services"
)

const recentOrderLimit = 10

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	db       *gorm.DB
	images   services.ImageStore
	telegram *services.TelegramService
	log      *zap.Logger
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB, images services.ImageStore, telegram *services.TelegramService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{db: db, images: images, telegram: telegram, log: log.Named("admin")}
}

type growthFigures struct {
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
	Growth   float64 `json:"growth"`
}

func newGrowth(cur, prev float64) growthFigures {
	return growthFigures{Current: cur, Previous: prev, Growth: reports.Growth(cur, prev)}
}

// monthOverMonth compares a count scoped by the query in this and last calendar month.
func (h *AdminHandler) monthOverMonth(now time.Time, model interface{}, column string, scope func(*gorm.DB) *gorm.DB) (growthFigures, error) {
	thisMonth, lastMonth := reports.ThisMonth(now), reports.LastMonth(now)
	cur, err := h.countIn(model, column, &thisMonth, scope)
	if err != nil {
		return growthFigures{}, err
	}
	prev, err := h.countIn(model, column, &lastMonth, scope)
	if err != nil {
		return growthFigures{}, err
	}
	return newGrowth(float64(cur), float64(prev)), nil
}

// Dashboard returns totals, month-over-month growth and the latest orders.
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	now := time.Now()

	customers, err := h.countIn(&models.User{}, "created_at", nil, customersOnly)
	if err != nil {
		return err
	}
	products, err := h.countIn(&models.Product{}, "created_at", nil, nil)
	if err != nil {
		return err
	}
	orders, err := h.countIn(&models.Order{}, "created_at", nil, nil)
	if err != nil {
		return err
	}
	revenue, err := h.revenueIn(nil)
	if err != nil {
		return err
	}

	customerGrowth, err := h.monthOverMonth(now, &models.User{}, "created_at", customersOnly)
	if err != nil {
		return err
	}
	orderGrowth, err := h.monthOverMonth(now, &models.Order{}, "created_at", nil)
	if err != nil {
		return err
	}
	productGrowth, err := h.monthOverMonth(now, &models.Product{}, "created_at", nil)
	if err != nil {
		return err
	}

	thisMonth, lastMonth := reports.ThisMonth(now), reports.LastMonth(now)
	curRevenue, err := h.revenueIn(&thisMonth)
	if err != nil {
		return err
	}
	prevRevenue, err := h.revenueIn(&lastMonth)
	if err != nil {
		return err
	}

	var recent []models.Order
	if err := h.db.Order("created_at desc").Limit(recentOrderLimit).Find(&recent).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_customers": customers,
			"total_products":  products,
			"total_orders":    orders,
			"total_revenue":   revenue,
			"growth": fiber.Map{
				"customers": customerGrowth,
				"orders":    orderGrowth,
				"products":  productGrowth,
				"revenue":   newGrowth(curRevenue.InexactFloat64(), prevRevenue.InexactFloat64()),
			},
			"recent_orders": newOrderResponses(recent),
		},
	})
}
