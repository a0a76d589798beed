package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/hairnova/internal/models"
	"github.com/example/hairnova/internal/pricing"
	"github.com/example/hairnova/internal/services"
)

const recommendationLimit = 10

// CartHandler serves the session cart.
type CartHandler struct {
	db       *gorm.DB
	sessions *session.Store
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(db *gorm.DB, sessions *session.Store) *CartHandler {
	return &CartHandler{db: db, sessions: sessions}
}

type cartItemView struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	MainImage string          `json:"main_image"`
	Capacity  string          `json:"capacity,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Stock     int             `json:"stock"`
}

type cartSummary struct {
	Items    []cartItemView  `json:"items"`
	Count    int             `json:"count"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// hydrateCart joins the session lines with current product data. Lines whose
// product was deleted are dropped from the cart.
func hydrateCart(db *gorm.DB, cart *services.Cart) (cartSummary, error) {
	summary := cartSummary{Items: []cartItemView{}, Subtotal: decimal.Zero}

	lines := cart.Items()
	if len(lines) == 0 {
		return summary, nil
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}

	var products []models.Product
	if err := db.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return summary, err
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	missing := make(map[uuid.UUID]struct{})
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			missing[l.ProductID] = struct{}{}
			continue
		}

		price := p.UnitPrice(l.Capacity)
		subtotal := price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		summary.Items = append(summary.Items, cartItemView{
			ProductID: p.ID,
			Name:      p.Name,
			MainImage: p.MainImage,
			Capacity:  l.Capacity,
			Quantity:  l.Quantity,
			UnitPrice: price,
			Subtotal:  subtotal,
			Stock:     p.AvailableStock(l.Capacity),
		})
		summary.Count += l.Quantity
		summary.Subtotal = summary.Subtotal.Add(subtotal)
	}

	if len(missing) > 0 {
		cart.DropProducts(missing)
	}
	return summary, nil
}

// withCart loads the session cart, runs fn and saves the session afterwards.
func (h *CartHandler) withCart(c *fiber.Ctx, fn func(cart *services.Cart) error) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return err
	}
	if err := fn(services.NewCart(sess)); err != nil {
		return err
	}
	return sess.Save()
}

// View returns the hydrated cart with a few featured products.
func (h *CartHandler) View(c *fiber.Ctx) error {
	var summary cartSummary
	err := h.withCart(c, func(cart *services.Cart) error {
		var err error
		summary, err = hydrateCart(h.db, cart)
		return err
	})
	if err != nil {
		return err
	}

	var recommended []models.Product
	if err := h.db.Where("is_active = ? AND is_featured = ?", true, true).
		Order("rating desc").
		Limit(recommendationLimit).
		Find(&recommended).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"items":           summary.Items,
			"count":           summary.Count,
			"subtotal":        summary.Subtotal,
			"recommendations": recommended,
		},
	})
}

type cartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"`
	Capacity  string `json:"capacity" validate:"max=64"`
}

func (r cartItemRequest) productID() uuid.UUID {
	return uuid.MustParse(r.ProductID)
}

func (h *CartHandler) activeProduct(id uuid.UUID) (models.Product, error) {
	var product models.Product
	if err := h.db.First(&product, "id = ? AND is_active = ?", id, true).Error; err != nil {
		return product, notFound(err, "product")
	}
	return product, nil
}

// resolveCapacity checks the requested capacity against the product variants.
// Plain products ignore the capacity.
func resolveCapacity(c *fiber.Ctx, product *models.Product, capacity string) (string, bool, error) {
	if !product.HasVariants() {
		return "", true, nil
	}
	if capacity == "" {
		return "", false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":           false,
			"message":           "please choose a capacity",
			"requires_capacity": true,
		})
	}
	variant, ok := pricing.FindVariant(product.Variants, capacity)
	if !ok {
		return "", false, fiber.NewError(fiber.StatusBadRequest, "unknown capacity "+capacity)
	}
	return variant.Capacity, true, nil
}

func stockError(available int) error {
	if available <= 0 {
		return fiber.NewError(fiber.StatusConflict, "out of stock")
	}
	return fiber.NewError(fiber.StatusConflict, "only "+strconv.Itoa(available)+" left in stock")
}

// AddItem puts a product in the cart after checking stock against what is already there.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var req cartItemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "quantity must be at least 1")
	}

	product, err := h.activeProduct(req.productID())
	if err != nil {
		return err
	}
	capacity, ok, err := resolveCapacity(c, &product, req.Capacity)
	if !ok {
		return err
	}

	var count int
	err = h.withCart(c, func(cart *services.Cart) error {
		available := product.AvailableStock(capacity)
		if cart.QuantityOf(product.ID, capacity)+req.Quantity > available {
			return stockError(available)
		}
		cart.Add(product.ID, req.Quantity, capacity)
		count = cart.Count()
		return nil
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"message":    product.Name + " added to cart",
		"cart_count": count,
	})
}

// UpdateItem sets the quantity of a cart line.
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	var req cartItemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Quantity < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "quantity must be at least 1")
	}

	product, err := h.activeProduct(req.productID())
	if err != nil {
		return err
	}

	var count int
	err = h.withCart(c, func(cart *services.Cart) error {
		available := product.AvailableStock(req.Capacity)
		if req.Quantity > available {
			return stockError(available)
		}
		if !cart.UpdateQuantity(product.ID, req.Capacity, req.Quantity) {
			return fiber.NewError(fiber.StatusNotFound, "item not in cart")
		}
		count = cart.Count()
		return nil
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "cart_count": count})
}

// RemoveItem drops a cart line.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	var req cartItemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var count int
	err := h.withCart(c, func(cart *services.Cart) error {
		if !cart.Remove(req.productID(), req.Capacity) {
			return fiber.NewError(fiber.StatusNotFound, "item not in cart")
		}
		count = cart.Count()
		return nil
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "cart_count": count})
}

// Count returns the number of units in the cart.
func (h *CartHandler) Count(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"count": services.NewCart(sess).Count()},
	})
}
