package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/hairnova/internal/middleware"
	"github.com/example/hairnova/internal/models"
	"github.com/example/hairnova/internal/pricing"
	"github.com/example/hairnova/internal/utils"
)

const (
	shopPageSize      = 16
	homeSectionLimit  = 10
	relatedLimit      = 4
	suggestionDefault = 8
	suggestionMax     = 20
)

var productSearchColumns = []string{"name", "description", "detailed_description", "brand", "tags"}

// ShopHandler serves the public catalog.
type ShopHandler struct {
	db *gorm.DB
}

// NewShopHandler constructs ShopHandler.
func NewShopHandler(db *gorm.DB) *ShopHandler {
	return &ShopHandler{db: db}
}

func (h *ShopHandler) active() *gorm.DB {
	return h.db.Model(&models.Product{}).Where("is_active = ?", true)
}

func (h *ShopHandler) activeCategories(limit int) ([]models.Category, error) {
	var categories []models.Category
	query := h.db.Where("is_active = ?", true).Order("name asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&categories).Error
	return categories, err
}

// Home returns the landing page sections.
func (h *ShopHandler) Home(c *fiber.Ctx) error {
	var featured, fresh, sale []models.Product
	if err := h.active().Where("is_featured = ?", true).Order("rating desc").Find(&featured).Error; err != nil {
		return err
	}
	if err := h.active().Where("is_new = ?", true).Order("created_at desc").Limit(homeSectionLimit).Find(&fresh).Error; err != nil {
		return err
	}
	if err := h.active().Where("on_sale = ?", true).Order("created_at desc").Limit(homeSectionLimit).Find(&sale).Error; err != nil {
		return err
	}

	categories, err := h.activeCategories(0)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"featured_products": featured,
			"new_products":      fresh,
			"sale_products":     sale,
			"categories":        categories,
		},
	})
}

// Categories lists the active categories. ?limit= trims the list.
func (h *ShopHandler) Categories(c *fiber.Ctx) error {
	categories, err := h.activeCategories(c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": categories})
}

func sortProducts(query *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case "new":
		return query.Order("created_at desc")
	case "priceAsc":
		return query.Order("price asc")
	case "priceDesc":
		return query.Order("price desc")
	default:
		return query.Order("rating desc").Order("review_count desc")
	}
}

// Shop lists active products with filters, search and sorting.
func (h *ShopHandler) Shop(c *fiber.Ctx) error {
	pg := utils.ParsePaginationWithLimit(c, shopPageSize)
	query := h.active()

	category := strings.TrimSpace(c.Query("category"))
	if category != "" && !strings.EqualFold(category, "all") {
		query = query.Where("category_id IN (?)",
			h.db.Model(&models.Category{}).Select("id").Where("LOWER(name) = ?", strings.ToLower(category)))
	}
	if brand := strings.TrimSpace(c.Query("brand")); brand != "" {
		query = query.Where("brand = ?", brand)
	}
	if raw := c.Query("max_price"); raw != "" {
		maxPrice, err := decimal.NewFromString(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid max_price")
		}
		query = query.Where("price <= ?", maxPrice)
	}
	search := strings.TrimSpace(c.Query("search"))
	if search != "" {
		query = searchWhere(query, search, productSearchColumns...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	sort := c.Query("sort", "popular")
	var products []models.Product
	if err := sortProducts(query, sort).Preload("Category").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&products).Error; err != nil {
		return err
	}

	var maxPrice decimal.Decimal
	if err := h.active().Select("COALESCE(MAX(price), 0)").Row().Scan(&maxPrice); err != nil {
		return err
	}

	var brands []string
	if err := h.active().Where("brand <> ''").Distinct("brand").Order("brand").Pluck("brand", &brands).Error; err != nil {
		return err
	}

	categories, err := h.activeCategories(0)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       products,
		"pagination": pg.Meta(total),
		"filters": fiber.Map{
			"category":   category,
			"brand":      c.Query("brand"),
			"search":     search,
			"sort":       sort,
			"max_price":  maxPrice,
			"categories": categories,
			"brands":     brands,
		},
	})
}

type suggestion struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	MainImage string          `json:"main_image"`
	Price     decimal.Decimal `json:"price"`
}

// Suggestions powers the search-as-you-type box.
func (h *ShopHandler) Suggestions(c *fiber.Ctx) error {
	term := strings.TrimSpace(c.Query("query"))
	if term == "" {
		return c.JSON(fiber.Map{"success": true, "data": []suggestion{}})
	}

	limit := c.QueryInt("limit", suggestionDefault)
	if limit <= 0 || limit > suggestionMax {
		limit = suggestionDefault
	}

	var out []suggestion
	if err := searchWhere(h.active(), term, "name", "brand", "tags").
		Select("id, name, main_image, price").
		Order("rating desc").
		Limit(limit).
		Scan(&out).Error; err != nil {
		return err
	}
	if out == nil {
		out = []suggestion{}
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}

func (h *ShopHandler) activeProduct(c *fiber.Ctx) (models.Product, error) {
	var product models.Product
	id, err := paramID(c, "id")
	if err != nil {
		return product, err
	}
	if err := h.db.Preload("Category").First(&product, "id = ? AND is_active = ?", id, true).Error; err != nil {
		return product, notFound(err, "product")
	}
	return product, nil
}

// ProductDetail returns a product with related products and the caller's review state.
func (h *ShopHandler) ProductDetail(c *fiber.Ctx) error {
	product, err := h.activeProduct(c)
	if err != nil {
		return err
	}

	related := []models.Product{}
	if product.CategoryID != nil {
		if err := h.active().
			Where("category_id = ? AND id <> ?", *product.CategoryID, product.ID).
			Order("rating desc").
			Limit(relatedLimit).
			Find(&related).Error; err != nil {
			return err
		}
	}

	data := fiber.Map{
		"product":            product,
		"tags":               product.TagList(),
		"available_variants": pricing.Available(product.Variants),
		"related_products":   related,
	}

	if userID, ok := middleware.GetCurrentUserID(c); ok {
		orders, reviewed, err := reviewEligibility(h.db, userID, product.ID)
		if err != nil {
			return err
		}
		data["can_review"] = len(orders) > 0
		data["has_reviewed"] = reviewed
	}

	return c.JSON(fiber.Map{"success": true, "data": data})
}

// ProductVariants lists the capacities a product can be bought in.
func (h *ShopHandler) ProductVariants(c *fiber.Ctx) error {
	product, err := h.activeProduct(c)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"has_variants": product.HasVariants(),
			"variants":     pricing.Available(product.Variants),
			"base_price":   product.Price,
			"stock":        product.Stock,
		},
	})
}
