package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/hairnova/internal/models"
	"github.com/example/hairnova/internal/reports"
)

const topProductLimit = 10

func customersOnly(q *gorm.DB) *gorm.DB {
	return q.Where("role = ?", models.RoleCustomer)
}

func completedOnly(q *gorm.DB) *gorm.DB {
	return q.Where("status = ?", models.StatusCompleted)
}

// inRange restricts column to r. A nil range leaves the query untouched.
func inRange(q *gorm.DB, column string, r *reports.Range) *gorm.DB {
	if r == nil {
		return q
	}
	return q.Where(column+" >= ? AND "+column+" < ?", r.From, r.To)
}

// within narrows period to the optional filter.
func within(period reports.Range, filter *reports.Range) *reports.Range {
	if filter != nil {
		period = period.Intersect(*filter)
	}
	return &period
}

func (h *AdminHandler) countIn(model interface{}, column string, r *reports.Range, scope func(*gorm.DB) *gorm.DB) (int64, error) {
	q := inRange(h.db.Model(model), column, r)
	if scope != nil {
		q = scope(q)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// revenueIn sums the totals of completed orders placed in r.
func (h *AdminHandler) revenueIn(r *reports.Range) (decimal.Decimal, error) {
	var total decimal.Decimal
	q := completedOnly(inRange(h.db.Model(&models.Order{}), "created_at", r))
	if err := q.Select("COALESCE(SUM(total), 0)").Row().Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

type series struct {
	Granularity reports.Granularity `json:"granularity"`
	Buckets     []reports.Bucket    `json:"buckets"`
}

// buildSeries buckets the created_at of the rows matched by query over the range
// chosen by SeriesRange. valueColumn may be empty for pure counts.
func buildSeries(query *gorm.DB, valueColumn string, filter *reports.Range, fallback reports.Range,
	fallbackGranularity reports.Granularity, now, earliest time.Time) (series, error) {
	r := reports.SeriesRange(filter, fallback, now, earliest)
	g := fallbackGranularity
	if filter != nil {
		g = reports.GranularityFor(r)
	}

	type row struct {
		CreatedAt time.Time
		Value     decimal.Decimal
	}
	columns := "created_at"
	if valueColumn != "" {
		columns += ", " + valueColumn + " AS value"
	}

	var rows []row
	if err := inRange(query, "created_at", &r).Select(columns).Scan(&rows).Error; err != nil {
		return series{}, err
	}

	points := make([]reports.Point, len(rows))
	for i, rw := range rows {
		points[i] = reports.Point{At: rw.CreatedAt, Value: rw.Value}
	}

	return series{Granularity: g, Buckets: reports.Fill(reports.Buckets(r, g), points)}, nil
}

// earliest returns the creation time of the oldest row of model, or now when empty.
func (h *AdminHandler) earliest(model interface{}, now time.Time) (time.Time, error) {
	var base models.BaseModel
	err := h.db.Model(model).Select("created_at").Order("created_at asc").Limit(1).Take(&base).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return now, nil
	}
	return base.CreatedAt, err
}

type topProduct struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// Reports returns revenue, order, customer and product figures. from/to
// (yyyy-mm-dd, inclusive) restrict every figure.
func (h *AdminHandler) Reports(c *fiber.Ctx) error {
	now := time.Now()
	filter, err := reports.ParseRange(c.Query("from"), c.Query("to"), now.Location())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid date range: "+err.Error())
	}

	firstOrder, err := h.earliest(&models.Order{}, now)
	if err != nil {
		return err
	}
	firstUser, err := h.earliest(&models.User{}, now)
	if err != nil {
		return err
	}

	revenue, err := h.revenueReport(now, filter, firstOrder)
	if err != nil {
		return err
	}
	orders, err := h.orderReport(now, filter, firstOrder)
	if err != nil {
		return err
	}
	customers, err := h.customerReport(now, filter, firstUser)
	if err != nil {
		return err
	}

	var top []topProduct
	q := h.db.Table("order_items").
		Select("order_items.product_id, order_items.product_name, SUM(order_items.quantity) AS quantity, SUM(order_items.subtotal) AS revenue").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status = ?", models.StatusCompleted)
	if err := inRange(q, "orders.created_at", filter).
		Group("order_items.product_id, order_items.product_name").
		Order("revenue desc").
		Limit(topProductLimit).
		Scan(&top).Error; err != nil {
		return err
	}
	if top == nil {
		top = []topProduct{}
	}

	var applied fiber.Map
	if filter != nil {
		applied = fiber.Map{"from": filter.From, "to": filter.To}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"range":        applied,
			"revenue":      revenue,
			"orders":       orders,
			"customers":    customers,
			"top_products": top,
		},
	})
}

func (h *AdminHandler) revenueReport(now time.Time, filter *reports.Range, earliest time.Time) (fiber.Map, error) {
	total, err := h.revenueIn(filter)
	if err != nil {
		return nil, err
	}
	today, err := h.revenueIn(within(reports.Today(now), filter))
	if err != nil {
		return nil, err
	}
	thisMonth, err := h.revenueIn(within(reports.ThisMonth(now), filter))
	if err != nil {
		return nil, err
	}
	lastMonth, err := h.revenueIn(within(reports.LastMonth(now), filter))
	if err != nil {
		return nil, err
	}

	s, err := buildSeries(completedOnly(h.db.Model(&models.Order{})), "total", filter,
		reports.LastMonths(now, 12), reports.Monthly, now, earliest)
	if err != nil {
		return nil, err
	}

	return fiber.Map{
		"total":      total,
		"today":      today,
		"this_month": thisMonth,
		"last_month": lastMonth,
		"series":     s,
	}, nil
}

func (h *AdminHandler) orderReport(now time.Time, filter *reports.Range, earliest time.Time) (fiber.Map, error) {
	type statusCount struct {
		Status models.OrderStatus
		Count  int64
	}
	var counts []statusCount
	if err := inRange(h.db.Model(&models.Order{}), "created_at", filter).
		Select("status, count(*) as count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, err
	}

	byStatus := make(map[models.OrderStatus]int64, len(models.AllStatuses()))
	for _, s := range models.AllStatuses() {
		byStatus[s] = 0
	}
	var total int64
	for _, sc := range counts {
		byStatus[sc.Status] = sc.Count
		total += sc.Count
	}

	today, err := h.countIn(&models.Order{}, "created_at", within(reports.Today(now), filter), nil)
	if err != nil {
		return nil, err
	}
	thisMonth, err := h.countIn(&models.Order{}, "created_at", within(reports.ThisMonth(now), filter), nil)
	if err != nil {
		return nil, err
	}

	s, err := buildSeries(h.db.Model(&models.Order{}), "", filter,
		reports.LastDays(now, 30), reports.Daily, now, earliest)
	if err != nil {
		return nil, err
	}

	return fiber.Map{
		"total":      total,
		"by_status":  byStatus,
		"today":      today,
		"this_month": thisMonth,
		"series":     s,
	}, nil
}

func (h *AdminHandler) customerReport(now time.Time, filter *reports.Range, earliest time.Time) (fiber.Map, error) {
	total, err := h.countIn(&models.User{}, "created_at", filter, customersOnly)
	if err != nil {
		return nil, err
	}
	newThisMonth, err := h.countIn(&models.User{}, "created_at", within(reports.ThisMonth(now), filter), customersOnly)
	if err != nil {
		return nil, err
	}
	newLastMonth, err := h.countIn(&models.User{}, "created_at", within(reports.LastMonth(now), filter), customersOnly)
	if err != nil {
		return nil, err
	}

	var buyers int64
	if err := inRange(h.db.Model(&models.Order{}), "created_at", filter).
		Where("user_id IS NOT NULL").
		Distinct("user_id").
		Count(&buyers).Error; err != nil {
		return nil, err
	}

	s, err := buildSeries(customersOnly(h.db.Model(&models.User{})), "", filter,
		reports.LastMonths(now, 12), reports.Monthly, now, earliest)
	if err != nil {
		return nil, err
	}

	return fiber.Map{
		"total":          total,
		"new_this_month": newThisMonth,
		"new_last_month": newLastMonth,
		"with_orders":    buyers,
		"growth":         reports.Growth(float64(newThisMonth), float64(newLastMonth)),
		"series":         s,
	}, nil
}
