package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/hairnova/internal/middleware"
	"github.com/example/hairnova/internal/models"
	"github.com/example/hairnova/internal/utils"
)

// ListUsers returns accounts with pagination, search and order statistics.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.User{})

	if search := c.Query("search"); search != "" {
		query = searchWhere(query, search, "username", "email", "full_name", "phone")
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var users []models.User
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return err
	}

	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	type userStats struct {
		UserID     uuid.UUID
		OrderCount int64
		TotalSpent decimal.Decimal
	}
	var stats []userStats
	if len(ids) > 0 {
		if err := h.db.Model(&models.Order{}).
			Select("user_id, count(*) as order_count, COALESCE(SUM(CASE WHEN status = ? THEN total ELSE 0 END), 0) as total_spent", models.StatusCompleted).
			Where("user_id IN ?", ids).
			Group("user_id").
			Scan(&stats).Error; err != nil {
			return err
		}
	}

	statsMap := make(map[uuid.UUID]userStats, len(stats))
	for _, s := range stats {
		statsMap[s.UserID] = s
	}

	type userResponse struct {
		models.User
		OrderCount int64           `json:"order_count"`
		TotalSpent decimal.Decimal `json:"total_spent"`
	}

	result := make([]userResponse, len(users))
	for i, u := range users {
		result[i] = userResponse{User: u, TotalSpent: decimal.Zero}
		if s, ok := statsMap[u.ID]; ok {
			result[i].OrderCount = s.OrderCount
			result[i].TotalSpent = s.TotalSpent
		}
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       result,
		"pagination": pg.Meta(total),
	})
}

func (h *AdminHandler) findUser(c *fiber.Ctx) (models.User, error) {
	var user models.User
	id, err := paramID(c, "id")
	if err != nil {
		return user, err
	}
	if err := h.db.First(&user, "id = ?", id).Error; err != nil {
		return user, notFound(err, "user")
	}
	return user, nil
}

// GetUser returns one account.
func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.findUser(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": user})
}

type userRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"max=255"`
	Phone    string `json:"phone" validate:"max=32"`
	Password string `json:"password" validate:"omitempty,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=customer admin"`
}

// ensureUserUnique rejects a username, email or phone held by another account.
func (h *AdminHandler) ensureUserUnique(req *userRequest, self uuid.UUID) error {
	var count int64
	if err := h.db.Model(&models.User{}).
		Where("(username = ? OR email = ?) AND id <> ?", req.Username, req.Email, self).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fiber.NewError(fiber.StatusConflict, "username or email already in use")
	}
	return ensurePhoneFree(h.db, req.Phone, self)
}

func (r *userRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = normalizeEmail(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
	r.Phone = strings.TrimSpace(r.Phone)
}

// CreateUser adds an account. Accounts created here skip email verification.
func (h *AdminHandler) CreateUser(c *fiber.Ctx) error {
	var req userRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.normalize()
	if req.Password == "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "password is required")
	}
	if err := h.ensureUserUnique(&req, uuid.Nil); err != nil {
		return err
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return err
	}

	user := models.User{
		Username:        req.Username,
		Email:           req.Email,
		FullName:        req.FullName,
		Phone:           req.Phone,
		PasswordHash:    hash,
		IsEmailVerified: true,
		Role:            models.RoleCustomer,
	}
	if req.Role != "" {
		user.Role = models.Role(req.Role)
	}
	if err := h.db.Create(&user).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": user})
}

// UpdateUser edits an account. The password changes only when one is given.
func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	user, err := h.findUser(c)
	if err != nil {
		return err
	}

	var req userRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.normalize()
	if err := h.ensureUserUnique(&req, user.ID); err != nil {
		return err
	}

	if err := h.saveUser(c, &user, &req); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": user})
}

func (h *AdminHandler) saveUser(c *fiber.Ctx, user *models.User, req *userRequest) error {
	user.Username = req.Username
	user.Email = req.Email
	user.FullName = req.FullName
	user.Phone = req.Phone
	columns := []interface{}{"email", "full_name", "phone"}

	if req.Role != "" && models.Role(req.Role) != user.Role {
		if self, _ := middleware.GetCurrentUserID(c); self == user.ID {
			return fiber.NewError(fiber.StatusBadRequest, "you cannot change your own role")
		}
		user.Role = models.Role(req.Role)
		columns = append(columns, "role")
	}

	if req.Password != "" {
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
		columns = append(columns, "password_hash")
	}

	return h.db.Model(user).Select("username", columns...).Updates(user).Error
}

// DeleteUser removes an account. Its orders are kept without the owner link.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	user, err := h.findUser(c)
	if err != nil {
		return err
	}
	if self, _ := middleware.GetCurrentUserID(c); self == user.ID {
		return fiber.NewError(fiber.StatusBadRequest, "you cannot delete your own account")
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		var reviewed []uuid.UUID
		if err := tx.Model(&models.Review{}).Where("user_id = ?", user.ID).Distinct("product_id").Pluck("product_id", &reviewed).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Review{}).Error; err != nil {
			return err
		}
		for _, productID := range reviewed {
			if err := refreshRating(tx, productID); err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Wishlist{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Order{}).Where("user_id = ?", user.ID).Update("user_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "user deleted"})
}

func (h *AdminHandler) setRole(c *fiber.Ctx, role models.Role) error {
	user, err := h.findUser(c)
	if err != nil {
		return err
	}
	if role != models.RoleAdmin {
		if self, _ := middleware.GetCurrentUserID(c); self == user.ID {
			return fiber.NewError(fiber.StatusBadRequest, "you cannot revoke your own admin rights")
		}
	}

	if err := h.db.Model(&user).Update("role", role).Error; err != nil {
		return err
	}
	user.Role = role
	return c.JSON(fiber.Map{"success": true, "data": user})
}

// GrantAdmin gives an account the admin role.
func (h *AdminHandler) GrantAdmin(c *fiber.Ctx) error {
	return h.setRole(c, models.RoleAdmin)
}

// RevokeAdmin turns an admin back into a customer.
func (h *AdminHandler) RevokeAdmin(c *fiber.Ctx) error {
	return h.setRole(c, models.RoleCustomer)
}

func (h *AdminHandler) self(c *fiber.Ctx) (models.User, error) {
	var user models.User
	id, err := currentUser(c)
	if err != nil {
		return user, err
	}
	if err := h.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		return user, err
	}
	return user, nil
}

// Profile returns the signed-in admin.
func (h *AdminHandler) Profile(c *fiber.Ctx) error {
	user, err := h.self(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": user})
}

// UpdateProfile edits the signed-in admin's own account. The role cannot change here.
func (h *AdminHandler) UpdateProfile(c *fiber.Ctx) error {
	user, err := h.self(c)
	if err != nil {
		return err
	}

	var req userRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.normalize()
	req.Role = ""
	if err := h.ensureUserUnique(&req, user.ID); err != nil {
		return err
	}

	if err := h.saveUser(c, &user, &req); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": user})
}
