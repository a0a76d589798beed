package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/hairnova/internal/models"
)

// WishlistHandler manages the signed-in user's saved products.
type WishlistHandler struct {
	db *gorm.DB
}

// NewWishlistHandler constructs WishlistHandler.
func NewWishlistHandler(db *gorm.DB) *WishlistHandler {
	return &WishlistHandler{db: db}
}

func (h *WishlistHandler) count(userID uuid.UUID) (int64, error) {
	var n int64
	err := h.db.Model(&models.Wishlist{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// List returns the wishlist with products, newest first.
func (h *WishlistHandler) List(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var items []models.Wishlist
	if err := h.db.Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&items).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": items})
}

type toggleWishlistRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

// Toggle adds the product, or removes it when it is already saved.
func (h *WishlistHandler) Toggle(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req toggleWishlistRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	productID := uuid.MustParse(req.ProductID)

	var product models.Product
	if err := h.db.Select("id").First(&product, "id = ?", productID).Error; err != nil {
		return notFound(err, "product")
	}

	added := false
	err = h.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND product_id = ?", userID, productID).Delete(&models.Wishlist{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		added = true
		return tx.Create(&models.Wishlist{UserID: userID, ProductID: productID}).Error
	})
	if err != nil {
		return err
	}

	count, err := h.count(userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"added": added, "count": count},
	})
}

// Remove deletes one product from the wishlist.
func (h *WishlistHandler) Remove(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	productID, err := paramID(c, "productId")
	if err != nil {
		return err
	}

	res := h.db.Where("user_id = ? AND product_id = ?", userID, productID).Delete(&models.Wishlist{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "product not in wishlist")
	}

	count, err := h.count(userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"count": count}})
}

// Count returns how many products are saved.
func (h *WishlistHandler) Count(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	count, err := h.count(userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"count": count}})
}

// Check reports whether a product is saved.
func (h *WishlistHandler) Check(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	productID, err := paramID(c, "productId")
	if err != nil {
		return err
	}

	var n int64
	if err := h.db.Model(&models.Wishlist{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Count(&n).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"in_wishlist": n > 0}})
}

// IDs returns the saved product IDs so the storefront can mark hearts.
func (h *WishlistHandler) IDs(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	ids := []uuid.UUID{}
	if err := h.db.Model(&models.Wishlist{}).Where("user_id = ?", userID).Pluck("product_id", &ids).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": ids})
}
