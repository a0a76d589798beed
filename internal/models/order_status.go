package models

import "errors"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusShipping  OrderStatus = "shipping"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

var (
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrStatusUnchanged   = errors.New("order already has this status")
	ErrOrderFinalized    = errors.New("order is completed or cancelled and can no longer change")
	ErrInvalidTransition = errors.New("order status transition not allowed")
)

// next lists the forward move allowed from each active status. Cancellation is
// handled separately.
var next = map[OrderStatus]OrderStatus{
	StatusPending:   StatusConfirmed,
	StatusConfirmed: StatusShipping,
	StatusShipping:  StatusCompleted,
}

var statusMeta = map[OrderStatus]struct{ name, class string }{
	StatusPending:   {"Pending", "bg-warning"},
	StatusConfirmed: {"Confirmed", "bg-info"},
	StatusShipping:  {"Shipping", "bg-primary"},
	StatusCompleted: {"Completed", "bg-success"},
	StatusCancelled: {"Cancelled", "bg-danger"},
}

// AllStatuses returns the statuses in lifecycle order.
func AllStatuses() []OrderStatus {
	return []OrderStatus{StatusPending, StatusConfirmed, StatusShipping, StatusCompleted, StatusCancelled}
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := statusMeta[s]
	return ok
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// DisplayName is the label shown to customers and staff.
func (s OrderStatus) DisplayName() string {
	if meta, ok := statusMeta[s]; ok {
		return meta.name
	}
	return string(s)
}

// BadgeClass is the CSS class the frontend uses for the status badge.
func (s OrderStatus) BadgeClass() string {
	if meta, ok := statusMeta[s]; ok {
		return meta.class
	}
	return "bg-secondary"
}

// ValidateTransition checks whether an order in from may move to to.
func ValidateTransition(from, to OrderStatus) error {
	if !from.Valid() || !to.Valid() {
		return ErrUnknownStatus
	}
	if from == to {
		return ErrStatusUnchanged
	}
	if from.Terminal() {
		return ErrOrderFinalized
	}
	if to == StatusCancelled || next[from] == to {
		return nil
	}
	return ErrInvalidTransition
}

// AllowedTransitions lists the statuses reachable from s.
func AllowedTransitions(s OrderStatus) []OrderStatus {
	if !s.Valid() || s.Terminal() {
		return nil
	}
	return []OrderStatus{next[s], StatusCancelled}
}
