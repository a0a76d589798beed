package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/hairnova/internal/pricing"
)

// Category groups products in the storefront navigation.
type Category struct {
	BaseModel
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	IsActive    bool   `json:"is_active"`
}

// Product is a sellable item. StockByCapacity holds the serialized capacity variants;
// when it is non-empty Stock is kept equal to the variant total.
type Product struct {
	BaseModel
	Name                string              `gorm:"size:255;not null" json:"name"`
	CategoryID          *uuid.UUID          `gorm:"type:uuid;index" json:"category_id"`
	Category            *Category           `json:"category,omitempty"`
	Description         string              `gorm:"type:text" json:"description"`
	DetailedDescription string              `gorm:"type:text" json:"detailed_description"`
	Price               decimal.Decimal     `gorm:"type:numeric(18,2);not null" json:"price"`
	OriginalPrice       decimal.NullDecimal `gorm:"type:numeric(18,2)" json:"original_price"`
	MainImage           string              `json:"main_image"`
	Images              []string            `gorm:"type:text;serializer:json" json:"images"`
	SKU                 string              `gorm:"size:64" json:"sku"`
	Tags                string              `json:"tags"`
	Brand               string              `gorm:"size:128;index" json:"brand"`
	Origin              string              `gorm:"size:128" json:"origin"`
	ExpiryDate          *time.Time          `json:"expiry_date"`
	Stock               int                 `json:"stock"`
	StockByCapacity     string              `gorm:"type:text" json:"-"`
	Rating              float64             `json:"rating"`
	ReviewCount         int                 `json:"review_count"`
	IsActive            bool                `gorm:"index" json:"is_active"`
	IsFeatured          bool                `json:"is_featured"`
	IsNew               bool                `json:"is_new"`
	OnSale              bool                `json:"on_sale"`
	Variants            []pricing.Variant   `gorm:"-" json:"variants"`
}

// AfterFind exposes the decoded variants alongside the raw column.
func (p *Product) AfterFind(*gorm.DB) error {
	p.Variants = pricing.ParseVariants(p.StockByCapacity)
	return nil
}

// HasVariants reports whether the product sells by capacity.
func (p *Product) HasVariants() bool {
	return len(pricing.ParseVariants(p.StockByCapacity)) > 0
}

// UnitPrice resolves the price for the given capacity.
func (p *Product) UnitPrice(capacity string) decimal.Decimal {
	return pricing.UnitPrice(pricing.ParseVariants(p.StockByCapacity), capacity, p.Price)
}

// AvailableStock is the variant stock for capacity, or the product stock when the
// product has no variants.
func (p *Product) AvailableStock(capacity string) int {
	variants := pricing.ParseVariants(p.StockByCapacity)
	if len(variants) == 0 {
		return p.Stock
	}
	return pricing.StockFor(variants, capacity)
}

// SetVariants stores the variants and recomputes Stock.
func (p *Product) SetVariants(variants []pricing.Variant) error {
	raw, err := pricing.SerializeVariants(variants)
	if err != nil {
		return err
	}
	p.StockByCapacity = raw
	p.Variants = variants
	if len(variants) > 0 {
		p.Stock = pricing.TotalStock(variants)
	}
	return nil
}

// AdjustStock applies delta to the capacity variant (or to Stock for plain products).
func (p *Product) AdjustStock(capacity string, delta int) error {
	variants := pricing.ParseVariants(p.StockByCapacity)
	if len(variants) == 0 {
		if p.Stock+delta < 0 {
			return pricing.ErrInsufficientStock
		}
		p.Stock += delta
		return nil
	}

	adjusted, err := pricing.Adjust(variants, capacity, delta)
	if err != nil {
		return err
	}
	return p.SetVariants(adjusted)
}

// TagList splits the comma separated tags.
func (p *Product) TagList() []string {
	var tags []string
	for _, t := range strings.Split(p.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Review is a rating left by a customer for a product bought in a completed order.
type Review struct {
	BaseModel
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_review_once;not null" json:"product_id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_review_once;not null" json:"user_id"`
	OrderID   uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_review_once;not null" json:"order_id"`
	Rating    int       `gorm:"not null" json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment"`
	User      *User     `json:"-"`
}
