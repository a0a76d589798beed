package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how the customer intends to pay. Payment itself happens outside the API.
type PaymentMethod string

const (
	PaymentCOD   PaymentMethod = "cod"
	PaymentBank  PaymentMethod = "bank"
	PaymentMomo  PaymentMethod = "momo"
	PaymentVNPay PaymentMethod = "vnpay"
)

var paymentMethodNames = map[PaymentMethod]string{
	PaymentCOD:   "Cash on delivery",
	PaymentBank:  "Bank transfer",
	PaymentMomo:  "MoMo wallet",
	PaymentVNPay: "VNPay",
}

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	_, ok := paymentMethodNames[m]
	return ok
}

// DisplayName is the human readable payment method.
func (m PaymentMethod) DisplayName() string {
	if name, ok := paymentMethodNames[m]; ok {
		return name
	}
	return string(m)
}

// Order is a placed purchase. UserID is nil for guest checkouts.
type Order struct {
	BaseModel
	OrderCode     string          `gorm:"size:32;uniqueIndex;not null" json:"order_code"`
	UserID        *uuid.UUID      `gorm:"type:uuid;index" json:"user_id"`
	User          *User           `json:"-"`
	CustomerName  string          `gorm:"size:255" json:"customer_name"`
	CustomerPhone string          `gorm:"size:32" json:"customer_phone"`
	CustomerEmail string          `gorm:"size:255" json:"customer_email"`
	Address       string          `gorm:"size:512" json:"shipping_address"`
	Province      string          `gorm:"size:128" json:"shipping_province"`
	Ward          string          `gorm:"size:128" json:"shipping_ward"`
	ShipToOther   bool            `json:"ship_to_other"`
	OtherName     string          `gorm:"size:255" json:"shipping_other_name,omitempty"`
	OtherPhone    string          `gorm:"size:32" json:"shipping_other_phone,omitempty"`
	OtherAddress  string          `gorm:"size:512" json:"shipping_other_address,omitempty"`
	OtherProvince string          `gorm:"size:128" json:"shipping_other_province,omitempty"`
	OtherWard     string          `gorm:"size:128" json:"shipping_other_ward,omitempty"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"subtotal"`
	Discount      decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"discount"`
	Total         decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total"`
	PaymentMethod PaymentMethod   `gorm:"size:16;not null" json:"payment_method"`
	Status        OrderStatus     `gorm:"size:16;index;not null" json:"status"`
	Note          string          `gorm:"type:text" json:"note"`
	VoucherCode   string          `gorm:"size:64" json:"voucher_code"`
	ConfirmedAt   *time.Time      `json:"confirmed_at"`
	ShippingAt    *time.Time      `json:"shipping_at"`
	CompletedAt   *time.Time      `json:"completed_at"`
	CancelledAt   *time.Time      `json:"cancelled_at"`
	Items         []OrderItem     `json:"items,omitempty"`
}

// OrderItem is a snapshot of a cart line at checkout time.
type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"order_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;index;not null" json:"product_id"`
	ProductName string          `gorm:"size:255" json:"product_name"`
	Capacity    string          `gorm:"size:64" json:"capacity"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"price"`
	Subtotal    decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"subtotal"`
}

// ApplyStatus moves the order to next after checking the transition and stamps the
// matching timestamp.
func (o *Order) ApplyStatus(next OrderStatus, now time.Time) error {
	if err := ValidateTransition(o.Status, next); err != nil {
		return err
	}

	o.Status = next
	switch next {
	case StatusConfirmed:
		o.ConfirmedAt = &now
	case StatusShipping:
		o.ShippingAt = &now
	case StatusCompleted:
		o.CompletedAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
	}
	return nil
}

// TimelineEntry is one reached step of an order's history.
type TimelineEntry struct {
	Status OrderStatus `json:"status"`
	Name   string      `json:"name"`
	At     time.Time   `json:"at"`
}

// Timeline lists the steps the order went through, oldest first.
func (o *Order) Timeline() []TimelineEntry {
	entries := []TimelineEntry{{Status: StatusPending, Name: StatusPending.DisplayName(), At: o.CreatedAt}}
	steps := []struct {
		status OrderStatus
		at     *time.Time
	}{
		{StatusConfirmed, o.ConfirmedAt},
		{StatusShipping, o.ShippingAt},
		{StatusCompleted, o.CompletedAt},
		{StatusCancelled, o.CancelledAt},
	}
	for _, step := range steps {
		if step.at != nil {
			entries = append(entries, TimelineEntry{Status: step.status, Name: step.status.DisplayName(), At: *step.at})
		}
	}
	return entries
}

// ExpectedDelivery is the promised delivery date for an order placed at CreatedAt.
func (o *Order) ExpectedDelivery() time.Time {
	return o.CreatedAt.AddDate(0, 0, 5)
}
