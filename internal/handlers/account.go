package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/hairnova/internal/models"
	"github.com/example/hairnova/internal/utils"
)

// AccountHandler serves the signed-in customer's own data.
type AccountHandler struct {
	db *gorm.DB
}

// NewAccountHandler constructs AccountHandler.
func NewAccountHandler(db *gorm.DB) *AccountHandler {
	return &AccountHandler{db: db}
}

func (h *AccountHandler) loadUser(c *fiber.Ctx) (models.User, error) {
	var user models.User
	userID, err := currentUser(c)
	if err != nil {
		return user, err
	}
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		return user, err
	}
	return user, nil
}

// Overview returns the profile with order counters.
func (h *AccountHandler) Overview(c *fiber.Ctx) error {
	user, err := h.loadUser(c)
	if err != nil {
		return err
	}

	type statusCount struct {
		Status models.OrderStatus
		Count  int64
	}
	var counts []statusCount
	if err := h.db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Where("user_id = ?", user.ID).
		Group("status").
		Scan(&counts).Error; err != nil {
		return err
	}

	byStatus := make(map[models.OrderStatus]int64)
	var total int64
	for _, sc := range counts {
		byStatus[sc.Status] = sc.Count
		total += sc.Count
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"user": user,
			"orders": fiber.Map{
				"total":      total,
				"processing": byStatus[models.StatusPending] + byStatus[models.StatusConfirmed],
				"shipping":   byStatus[models.StatusShipping],
				"completed":  byStatus[models.StatusCompleted],
				"cancelled":  byStatus[models.StatusCancelled],
			},
		},
	})
}

type updateProfileRequest struct {
	FullName string `json:"full_name" validate:"required,max=255"`
	Phone    string `json:"phone" validate:"max=32"`
}

// UpdateProfile changes the name and phone number.
func (h *AccountHandler) UpdateProfile(c *fiber.Ctx) error {
	user, err := h.loadUser(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	phone := strings.TrimSpace(req.Phone)

	if err := ensurePhoneFree(h.db, phone, user.ID); err != nil {
		return err
	}

	user.FullName = strings.TrimSpace(req.FullName)
	user.Phone = phone
	if err := h.db.Model(&user).Select("full_name", "phone").Updates(&user).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": user})
}

func ensurePhoneFree(db *gorm.DB, phone string, owner uuid.UUID) error {
	if phone == "" {
		return nil
	}
	var count int64
	if err := db.Model(&models.User{}).Where("phone = ? AND id <> ?", phone, owner).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fiber.NewError(fiber.StatusConflict, "phone number already in use")
	}
	return nil
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"omitempty,eqfield=NewPassword"`
}

// ChangePassword replaces the password after checking the current one.
func (h *AccountHandler) ChangePassword(c *fiber.Ctx) error {
	user, err := h.loadUser(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if !utils.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return fiber.NewError(fiber.StatusBadRequest, "current password is incorrect")
	}
	if req.NewPassword == req.CurrentPassword {
		return fiber.NewError(fiber.StatusBadRequest, "new password must differ from the current one")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := h.db.Model(&user).Update("password_hash", hash).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "password changed"})
}

// ListOrders returns the user's orders, newest first.
func (h *AccountHandler) ListOrders(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{}).Where("user_id = ?", userID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
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

// GetOrder returns one of the user's orders by ID.
func (h *AccountHandler) GetOrder(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var order models.Order
	if err := h.db.Preload("Items").First(&order, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return notFound(err, "order")
	}

	return c.JSON(fiber.Map{"success": true, "data": newOrderResponse(order)})
}

func (h *AccountHandler) orderByCode(c *fiber.Ctx, tx *gorm.DB) (models.Order, error) {
	var order models.Order
	userID, err := currentUser(c)
	if err != nil {
		return order, err
	}

	code := strings.ToUpper(strings.TrimSpace(c.Params("code")))
	if err := tx.Preload("Items").First(&order, "order_code = ? AND user_id = ?", code, userID).Error; err != nil {
		return order, notFound(err, "order")
	}
	return order, nil
}

// TrackOrder returns an order by its code with its timeline.
func (h *AccountHandler) TrackOrder(c *fiber.Ctx) error {
	order, err := h.orderByCode(c, h.db)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"order":             newOrderResponse(order),
			"timeline":          order.Timeline(),
			"expected_delivery": order.ExpectedDelivery(),
		},
	})
}

// CancelOrder lets the customer cancel an order that has not been confirmed yet.
func (h *AccountHandler) CancelOrder(c *fiber.Ctx) error {
	var order models.Order
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = h.orderByCode(c, forUpdate(tx)); err != nil {
			return err
		}
		if order.Status != models.StatusPending {
			return fiber.NewError(fiber.StatusConflict, "only pending orders can be cancelled")
		}
		return transitionOrder(tx, &order, models.StatusCancelled)
	})
	if err != nil {
		return statusError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": newOrderResponse(order)})
}
