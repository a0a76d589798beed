package services

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// CartSessionKey is the session key holding the serialized cart.
const CartSessionKey = "cart_items"

// SessionValues is the subset of a session the cart needs. *session.Session
// from fiber satisfies it.
type SessionValues interface {
	Get(key string) interface{}
	Set(key string, val interface{})
	Delete(key string)
}

// CartLine is one product and capacity pair in the cart.
type CartLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Capacity  string    `json:"capacity,omitempty"`
}

func (l CartLine) matches(productID uuid.UUID, capacity string) bool {
	return l.ProductID == productID &&
		strings.EqualFold(strings.TrimSpace(l.Capacity), strings.TrimSpace(capacity))
}

// Cart stores lines as JSON in the session. The caller saves the session.
type Cart struct {
	values SessionValues
}

// NewCart wraps session values.
func NewCart(values SessionValues) *Cart {
	return &Cart{values: values}
}

// Items returns the current lines. Unreadable session data reads as an empty cart.
func (c *Cart) Items() []CartLine {
	var raw []byte
	switch v := c.values.Get(CartSessionKey).(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return nil
	}

	var lines []CartLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil
	}
	return lines
}

func (c *Cart) save(lines []CartLine) {
	if len(lines) == 0 {
		c.values.Delete(CartSessionKey)
		return
	}
	b, _ := json.Marshal(lines)
	c.values.Set(CartSessionKey, string(b))
}

// QuantityOf is the quantity already in the cart for the pair.
func (c *Cart) QuantityOf(productID uuid.UUID, capacity string) int {
	for _, l := range c.Items() {
		if l.matches(productID, capacity) {
			return l.Quantity
		}
	}
	return 0
}

// Add puts quantity units in the cart, merging into an existing line.
func (c *Cart) Add(productID uuid.UUID, quantity int, capacity string) {
	if quantity <= 0 {
		return
	}

	lines := c.Items()
	for i := range lines {
		if lines[i].matches(productID, capacity) {
			lines[i].Quantity += quantity
			c.save(lines)
			return
		}
	}
	c.save(append(lines, CartLine{ProductID: productID, Quantity: quantity, Capacity: strings.TrimSpace(capacity)}))
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
// It reports whether the line existed.
func (c *Cart) UpdateQuantity(productID uuid.UUID, capacity string, quantity int) bool {
	if quantity <= 0 {
		return c.Remove(productID, capacity)
	}

	lines := c.Items()
	for i := range lines {
		if lines[i].matches(productID, capacity) {
			lines[i].Quantity = quantity
			c.save(lines)
			return true
		}
	}
	return false
}

// Remove drops a line and reports whether it existed.
func (c *Cart) Remove(productID uuid.UUID, capacity string) bool {
	lines := c.Items()
	for i := range lines {
		if lines[i].matches(productID, capacity) {
			c.save(append(lines[:i], lines[i+1:]...))
			return true
		}
	}
	return false
}

// DropProducts removes every line for the given products.
func (c *Cart) DropProducts(ids map[uuid.UUID]struct{}) {
	lines := c.Items()
	kept := lines[:0]
	for _, l := range lines {
		if _, gone := ids[l.ProductID]; !gone {
			kept = append(kept, l)
		}
	}
	if len(kept) != len(lines) {
		c.save(kept)
	}
}

// Count is the total number of units across lines.
func (c *Cart) Count() int {
	total := 0
	for _, l := range c.Items() {
		total += l.Quantity
	}
	return total
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.values.Delete(CartSessionKey)
}
