package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/hairnova/internal/models"
	"github.com/example/hairnova/internal/pricing"
	"github.com/example/hairnova/internal/services"
	"github.com/example/hairnova/internal/utils"
)

const (
	maxImageSize   = 5 << 20
	uploadTimeout  = 30 * time.Second
	expiryDateForm = "2006-01-02"
)

// ListCategories returns every category with its product count.
func (h *AdminHandler) ListCategories(c *fiber.Ctx) error {
	var categories []models.Category
	if err := h.db.Order("name asc").Find(&categories).Error; err != nil {
		return err
	}

	type categoryCount struct {
		CategoryID uuid.UUID
		Count      int64
	}
	var counts []categoryCount
	if err := h.db.Model(&models.Product{}).
		Select("category_id, count(*) as count").
		Where("category_id IS NOT NULL").
		Group("category_id").
		Scan(&counts).Error; err != nil {
		return err
	}
	byCategory := make(map[uuid.UUID]int64, len(counts))
	for _, cc := range counts {
		byCategory[cc.CategoryID] = cc.Count
	}

	type categoryResponse struct {
		models.Category
		ProductCount int64 `json:"product_count"`
	}
	out := make([]categoryResponse, len(categories))
	for i, cat := range categories {
		out[i] = categoryResponse{Category: cat, ProductCount: byCategory[cat.ID]}
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

func (r categoryRequest) apply(cat *models.Category) {
	cat.Name = strings.TrimSpace(r.Name)
	cat.Description = strings.TrimSpace(r.Description)
	if r.IsActive != nil {
		cat.IsActive = *r.IsActive
	}
}

// CreateCategory adds a category. New categories are active unless told otherwise.
func (h *AdminHandler) CreateCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	cat := models.Category{IsActive: true}
	req.apply(&cat)
	if err := h.db.Create(&cat).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": cat})
}

func (h *AdminHandler) findCategory(c *fiber.Ctx) (models.Category, error) {
	var cat models.Category
	id, err := paramID(c, "id")
	if err != nil {
		return cat, err
	}
	if err := h.db.First(&cat, "id = ?", id).Error; err != nil {
		return cat, notFound(err, "category")
	}
	return cat, nil
}

// UpdateCategory edits a category.
func (h *AdminHandler) UpdateCategory(c *fiber.Ctx) error {
	cat, err := h.findCategory(c)
	if err != nil {
		return err
	}
	var req categoryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	req.apply(&cat)
	if err := h.db.Model(&cat).Select("name", "description", "is_active").Updates(&cat).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": cat})
}

// DeleteCategory removes a category that no product uses.
func (h *AdminHandler) DeleteCategory(c *fiber.Ctx) error {
	cat, err := h.findCategory(c)
	if err != nil {
		return err
	}

	var inUse int64
	if err := h.db.Model(&models.Product{}).Where("category_id = ?", cat.ID).Count(&inUse).Error; err != nil {
		return err
	}
	if inUse > 0 {
		return fiber.NewError(fiber.StatusConflict, "category still has products")
	}

	if err := h.db.Delete(&cat).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "category deleted"})
}

// ListProducts returns every product, active or not, with search and category filters.
func (h *AdminHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Product{})

	if search := c.Query("search"); search != "" {
		query = searchWhere(query, search, "name", "sku", "brand")
	}
	if raw := c.Query("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid category_id")
		}
		query = query.Where("category_id = ?", id)
	}
	if c.Query("low_stock") == "true" {
		query = query.Where("stock <= ?", 5)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var products []models.Product
	if err := query.Preload("Category").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       products,
		"pagination": pg.Meta(total),
	})
}

func (h *AdminHandler) findProduct(c *fiber.Ctx) (models.Product, error) {
	var product models.Product
	id, err := paramID(c, "id")
	if err != nil {
		return product, err
	}
	if err := h.db.Preload("Category").First(&product, "id = ?", id).Error; err != nil {
		return product, notFound(err, "product")
	}
	return product, nil
}

// GetProduct returns a product with its raw variant list.
func (h *AdminHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.findProduct(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

type productRequest struct {
	Name                string              `json:"name" validate:"required,max=255"`
	CategoryID          string              `json:"category_id" validate:"omitempty,uuid"`
	Description         string              `json:"description"`
	DetailedDescription string              `json:"detailed_description"`
	Price               decimal.Decimal     `json:"price"`
	OriginalPrice       decimal.NullDecimal `json:"original_price"`
	SKU                 string              `json:"sku" validate:"max=64"`
	Tags                string              `json:"tags"`
	Brand               string              `json:"brand" validate:"max=128"`
	Origin              string              `json:"origin" validate:"max=128"`
	ExpiryDate          string              `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	Stock               int                 `json:"stock" validate:"min=0"`
	Variants            []pricing.Variant   `json:"variants"`
	IsActive            *bool               `json:"is_active"`
	IsFeatured          bool                `json:"is_featured"`
	IsNew               bool                `json:"is_new"`
	OnSale              bool                `json:"on_sale"`
}

// apply copies the request onto p. With variants the product stock becomes
// their total; without, stock is taken as given.
func (h *AdminHandler) apply(req *productRequest, p *models.Product) error {
	if req.Price.IsNegative() {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "price cannot be negative")
	}
	if req.OriginalPrice.Valid && req.OriginalPrice.Decimal.IsNegative() {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "original price cannot be negative")
	}

	variants := pricing.Normalize(req.Variants)
	if err := pricing.Validate(variants); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	p.CategoryID = nil
	if req.CategoryID != "" {
		id := uuid.MustParse(req.CategoryID)
		var count int64
		if err := h.db.Model(&models.Category{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "category not found")
		}
		p.CategoryID = &id
	}

	p.ExpiryDate = nil
	if req.ExpiryDate != "" {
		t, _ := time.Parse(expiryDateForm, req.ExpiryDate)
		p.ExpiryDate = &t
	}

	p.Name = strings.TrimSpace(req.Name)
	p.Description = req.Description
	p.DetailedDescription = req.DetailedDescription
	p.Price = req.Price
	p.OriginalPrice = req.OriginalPrice
	p.SKU = strings.TrimSpace(req.SKU)
	p.Tags = strings.Join(tagsOf(req.Tags), ",")
	p.Brand = strings.TrimSpace(req.Brand)
	p.Origin = strings.TrimSpace(req.Origin)
	p.IsFeatured = req.IsFeatured
	p.IsNew = req.IsNew
	p.OnSale = req.OnSale
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}

	p.Stock = req.Stock
	return p.SetVariants(variants)
}

func tagsOf(raw string) []string {
	p := models.Product{Tags: raw}
	return p.TagList()
}

var productColumns = []interface{}{
	"category_id", "description", "detailed_description", "price", "original_price",
	"sku", "tags", "brand", "origin", "expiry_date", "stock", "stock_by_capacity",
	"is_active", "is_featured", "is_new", "on_sale",
}

// CreateProduct adds a product. Images are uploaded separately.
func (h *AdminHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	product := models.Product{IsActive: true, Images: []string{}}
	if err := h.apply(&req, &product); err != nil {
		return err
	}
	if err := h.db.Create(&product).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

// UpdateProduct replaces the editable fields of a product.
func (h *AdminHandler) UpdateProduct(c *fiber.Ctx) error {
	product, err := h.findProduct(c)
	if err != nil {
		return err
	}
	var req productRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.apply(&req, &product); err != nil {
		return err
	}
	product.Category = nil
	if err := h.db.Model(&product).Select("name", productColumns...).Updates(&product).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

// DeleteProduct removes a product with its reviews, wishlist entries and images.
func (h *AdminHandler) DeleteProduct(c *fiber.Ctx) error {
	product, err := h.findProduct(c)
	if err != nil {
		return err
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", product.ID).Delete(&models.Review{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", product.ID).Delete(&models.Wishlist{}).Error; err != nil {
			return err
		}
		return tx.Delete(&product).Error
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), uploadTimeout)
	defer cancel()
	for _, url := range append([]string{product.MainImage}, product.Images...) {
		if url == "" {
			continue
		}
		if err := h.images.Delete(ctx, url); err != nil {
			h.log.Warn("image cleanup failed", zap.String("product_id", product.ID.String()), zap.String("url", url), zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{"success": true, "message": "product deleted"})
}

func (h *AdminHandler) upload(ctx context.Context, productID uuid.UUID, fh *multipart.FileHeader) (string, error) {
	contentType, ok := services.ImageContentType(fh.Filename)
	if !ok {
		return "", fiber.NewError(fiber.StatusBadRequest, "unsupported image type: "+fh.Filename)
	}
	if fh.Size > maxImageSize {
		return "", fiber.NewError(fiber.StatusRequestEntityTooLarge, fh.Filename+" is larger than 5 MB")
	}

	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	url, err := h.images.Upload(ctx, services.ProductImageKey(productID, fh.Filename), f, contentType)
	if errors.Is(err, services.ErrStorageDisabled) {
		return "", fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return url, err
}

// UploadImages stores a new main image (field "main_image") and/or extra images
// (field "images"). Extra images are appended unless replace=true.
func (h *AdminHandler) UploadImages(c *fiber.Ctx) error {
	product, err := h.findProduct(c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "expected multipart form data")
	}
	mains, extras := form.File["main_image"], form.File["images"]
	if len(mains) == 0 && len(extras) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no images uploaded")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), uploadTimeout)
	defer cancel()

	var replaced []string
	if len(mains) > 0 {
		url, err := h.upload(ctx, product.ID, mains[0])
		if err != nil {
			return err
		}
		if product.MainImage != "" {
			replaced = append(replaced, product.MainImage)
		}
		product.MainImage = url
	}

	if len(extras) > 0 {
		if c.FormValue("replace") == "true" {
			replaced = append(replaced, product.Images...)
			product.Images = nil
		}
		for _, fh := range extras {
			url, err := h.upload(ctx, product.ID, fh)
			if err != nil {
				return err
			}
			product.Images = append(product.Images, url)
		}
	}
	if product.Images == nil {
		product.Images = []string{}
	}

	if err := h.db.Model(&product).Select("main_image", "images").Updates(&product).Error; err != nil {
		return err
	}

	for _, url := range replaced {
		if err := h.images.Delete(ctx, url); err != nil {
			h.log.Warn("old image cleanup failed", zap.String("url", url), zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}
