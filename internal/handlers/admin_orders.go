package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/hairnova/internal/models"
	"github.com/example/hairnova/internal/utils"
)

// ListOrders returns all orders with pagination, status filter and search.
func (h *AdminHandler) ListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := c.Query("search"); search != "" {
		query = searchWhere(query, search, "order_code", "customer_name", "customer_phone", "customer_email")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       newOrderResponses(orders),
		"pagination": pg.Meta(total),
	})
}

func (h *AdminHandler) findOrder(c *fiber.Ctx, tx *gorm.DB) (models.Order, error) {
	var order models.Order
	id, err := paramID(c, "id")
	if err != nil {
		return order, err
	}
	if err := tx.Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		return order, notFound(err, "order")
	}
	return order, nil
}

// GetOrder returns one order with its items, timeline and the account that placed it.
func (h *AdminHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.findOrder(c, h.db)
	if err != nil {
		return err
	}

	data := fiber.Map{
		"order":    newOrderResponse(order),
		"timeline": order.Timeline(),
	}
	if order.UserID != nil {
		var user models.User
		if err := h.db.First(&user, "id = ?", *order.UserID).Error; err == nil {
			data["customer"] = user
		}
	}

	return c.JSON(fiber.Map{"success": true, "data": data})
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateOrderStatus moves an order along the status machine.
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	var req updateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	next := models.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))

	var order models.Order
	var previous models.OrderStatus
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = h.findOrder(c, forUpdate(tx)); err != nil {
			return err
		}
		previous = order.Status
		return transitionOrder(tx, &order, next)
	})
	if err != nil {
		return statusError(err)
	}

	snapshot := order
	go h.telegram.NotifyStatusChange(&snapshot, previous)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "order status updated",
		"data": fiber.Map{
			"order_id":        order.ID,
			"old_status":      previous,
			"old_status_name": previous.DisplayName(),
			"new_status":      order.Status,
			"new_status_name": order.Status.DisplayName(),
			"status_class":    order.Status.BadgeClass(),
		},
	})
}
