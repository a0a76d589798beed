package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/hairnova/internal/models"
	"github.com/example/hairnova/internal/pricing"
)

type orderResponse struct {
	models.Order
	StatusName         string               `json:"status_name"`
	StatusClass        string               `json:"status_class"`
	PaymentMethodName  string               `json:"payment_method_name"`
	AllowedTransitions []models.OrderStatus `json:"allowed_transitions"`
}

func newOrderResponse(o models.Order) orderResponse {
	allowed := models.AllowedTransitions(o.Status)
	if allowed == nil {
		allowed = []models.OrderStatus{}
	}
	return orderResponse{
		Order:              o,
		StatusName:         o.Status.DisplayName(),
		StatusClass:        o.Status.BadgeClass(),
		PaymentMethodName:  o.PaymentMethod.DisplayName(),
		AllowedTransitions: allowed,
	}
}

func newOrderResponses(orders []models.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = newOrderResponse(o)
	}
	return out
}

// transitionOrder applies next to order inside tx and puts stock back when the
// order is cancelled. order.Items must be loaded.
func transitionOrder(tx *gorm.DB, order *models.Order, next models.OrderStatus) error {
	if err := order.ApplyStatus(next, time.Now()); err != nil {
		return err
	}

	if err := tx.Model(order).Select("status", "confirmed_at", "shipping_at", "completed_at", "cancelled_at").
		Updates(order).Error; err != nil {
		return err
	}

	if next == models.StatusCancelled {
		return restock(tx, order.Items)
	}
	return nil
}

// forUpdate locks the selected rows until tx ends.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

func restock(tx *gorm.DB, items []models.OrderItem) error {
	for _, item := range items {
		var product models.Product
		if err := forUpdate(tx).First(&product, "id = ?", item.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return err
		}

		if err := product.AdjustStock(item.Capacity, item.Quantity); err != nil {
			// the capacity was removed from the product since the order was placed
			if errors.Is(err, pricing.ErrUnknownCapacity) {
				continue
			}
			return err
		}
		if err := saveStock(tx, &product); err != nil {
			return err
		}
	}
	return nil
}

func saveStock(tx *gorm.DB, product *models.Product) error {
	return tx.Model(product).Select("stock", "stock_by_capacity").Updates(product).Error
}

// statusError maps status machine errors to HTTP errors.
func statusError(err error) error {
	switch {
	case errors.Is(err, models.ErrUnknownStatus):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrStatusUnchanged),
		errors.Is(err, models.ErrOrderFinalized),
		errors.Is(err, models.ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return err
}
