// Package pricing resolves per-capacity price and stock for products sold in
// several sizes. Variants are stored on the product as a JSON list.
package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownCapacity   = errors.New("capacity not offered for this product")
	ErrInsufficientStock = errors.New("not enough stock")
)

// Variant is one capacity option. A null or non-positive Price means the product
// base price applies.
type Variant struct {
	Capacity string              `json:"capacity"`
	Price    decimal.NullDecimal `json:"price"`
	Stock    int                 `json:"stock"`
}

// UnmarshalJSON accepts Stock written either as a number or as a numeric string.
func (v *Variant) UnmarshalJSON(data []byte) error {
	var raw struct {
		Capacity string              `json:"capacity"`
		Price    decimal.NullDecimal `json:"price"`
		Stock    json.Number         `json:"stock"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	v.Capacity = raw.Capacity
	v.Price = raw.Price
	v.Stock = 0
	if raw.Stock != "" {
		n, err := raw.Stock.Int64()
		if err != nil {
			return fmt.Errorf("variant %q stock: %w", raw.Capacity, err)
		}
		v.Stock = int(n)
	}
	return nil
}

// HasPrice reports whether the variant overrides the base price.
func (v Variant) HasPrice() bool {
	return v.Price.Valid && v.Price.Decimal.IsPositive()
}

// ParseVariants decodes the stored list. Empty or malformed input yields nil.
func ParseVariants(raw string) []Variant {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var variants []Variant
	if err := json.Unmarshal([]byte(raw), &variants); err != nil {
		return nil
	}
	return variants
}

// storedVariant is the column format: keys are Capacity, Price and Stock.
type storedVariant struct {
	Capacity string              `json:"Capacity"`
	Price    decimal.NullDecimal `json:"Price"`
	Stock    int                 `json:"Stock"`
}

// SerializeVariants encodes the list for storage. An empty list is stored as "".
func SerializeVariants(variants []Variant) (string, error) {
	if len(variants) == 0 {
		return "", nil
	}
	out := make([]storedVariant, len(variants))
	for i, v := range variants {
		out[i] = storedVariant(v)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// TotalStock sums the stock of every variant.
func TotalStock(variants []Variant) int {
	total := 0
	for _, v := range variants {
		total += v.Stock
	}
	return total
}

func sameCapacity(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// FindVariant looks up capacity ignoring case and surrounding spaces.
func FindVariant(variants []Variant, capacity string) (Variant, bool) {
	if strings.TrimSpace(capacity) == "" {
		return Variant{}, false
	}
	for _, v := range variants {
		if sameCapacity(v.Capacity, capacity) {
			return v, true
		}
	}
	return Variant{}, false
}

// StockFor returns the stock of capacity, 0 when the capacity is not offered.
func StockFor(variants []Variant, capacity string) int {
	v, ok := FindVariant(variants, capacity)
	if !ok {
		return 0
	}
	return v.Stock
}

// UnitPrice resolves the price of capacity, falling back to base.
func UnitPrice(variants []Variant, capacity string, base decimal.Decimal) decimal.Decimal {
	if v, ok := FindVariant(variants, capacity); ok && v.HasPrice() {
		return v.Price.Decimal
	}
	return base
}

// Available returns the variants a shopper can pick: named and in stock.
func Available(variants []Variant) []Variant {
	out := make([]Variant, 0, len(variants))
	for _, v := range variants {
		if strings.TrimSpace(v.Capacity) != "" && v.Stock > 0 {
			out = append(out, v)
		}
	}
	return out
}

// Adjust returns a copy of variants with delta applied to the stock of capacity.
func Adjust(variants []Variant, capacity string, delta int) ([]Variant, error) {
	out := make([]Variant, len(variants))
	copy(out, variants)

	for i := range out {
		if !sameCapacity(out[i].Capacity, capacity) {
			continue
		}
		if out[i].Stock+delta < 0 {
			return nil, ErrInsufficientStock
		}
		out[i].Stock += delta
		return out, nil
	}
	return nil, ErrUnknownCapacity
}

// Validate checks a list submitted by staff: capacities must be named and
// distinct, stock and prices non-negative.
func Validate(variants []Variant) error {
	seen := make(map[string]struct{}, len(variants))
	for i, v := range variants {
		key := strings.ToLower(strings.TrimSpace(v.Capacity))
		if key == "" {
			return fmt.Errorf("variant %d: capacity is required", i+1)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("variant %q listed twice", v.Capacity)
		}
		seen[key] = struct{}{}
		if v.Stock < 0 {
			return fmt.Errorf("variant %q: stock cannot be negative", v.Capacity)
		}
		if v.Price.Valid && v.Price.Decimal.IsNegative() {
			return fmt.Errorf("variant %q: price cannot be negative", v.Capacity)
		}
	}
	return nil
}

// Normalize trims capacity names in place and returns the list.
func Normalize(variants []Variant) []Variant {
	for i := range variants {
		variants[i].Capacity = strings.TrimSpace(variants[i].Capacity)
	}
	return variants
}
