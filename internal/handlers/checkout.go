package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/hairnova/internal/middleware"
	"github.com/example/hairnova/internal/models"
	"github.com/example/hairnova/internal/pricing"
	"github.com/example/hairnova/internal/services"
	"github.com/example/hairnova/internal/utils"
)

const (
	savedAddressLimit = 10
	orderCodeAttempts = 5
)

var errEmptyCart = fiber.NewError(fiber.StatusBadRequest, "your cart is empty")

// CheckoutHandler turns the session cart into an order.
type CheckoutHandler struct {
	db       *gorm.DB
	sessions *session.Store
	telegram *services.TelegramService
}

// NewCheckoutHandler constructs CheckoutHandler.
func NewCheckoutHandler(db *gorm.DB, sessions *session.Store, telegram *services.TelegramService) *CheckoutHandler {
	return &CheckoutHandler{db: db, sessions: sessions, telegram: telegram}
}

// Summary returns the cart totals and, for a signed-in user, contact details to pre-fill.
func (h *CheckoutHandler) Summary(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return err
	}
	cart := services.NewCart(sess)
	summary, err := hydrateCart(h.db, cart)
	if err != nil {
		return err
	}
	if err := sess.Save(); err != nil {
		return err
	}
	if len(summary.Items) == 0 {
		return errEmptyCart
	}

	data := fiber.Map{
		"items":    summary.Items,
		"count":    summary.Count,
		"subtotal": summary.Subtotal,
		"discount": decimal.Zero,
		"total":    summary.Subtotal,
		"payment_methods": []fiber.Map{
			{"code": models.PaymentCOD, "name": models.PaymentCOD.DisplayName()},
			{"code": models.PaymentBank, "name": models.PaymentBank.DisplayName()},
			{"code": models.PaymentMomo, "name": models.PaymentMomo.DisplayName()},
			{"code": models.PaymentVNPay, "name": models.PaymentVNPay.DisplayName()},
		},
	}

	if userID, ok := middleware.GetCurrentUserID(c); ok {
		var user models.User
		if err := h.db.First(&user, "id = ?", userID).Error; err == nil {
			data["customer"] = fiber.Map{
				"full_name": user.FullName,
				"email":     user.Email,
				"phone":     user.Phone,
			}
		}
	}

	return c.JSON(fiber.Map{"success": true, "data": data})
}

type savedAddress struct {
	CustomerName  string `json:"full_name"`
	CustomerPhone string `json:"phone"`
	Address       string `json:"address"`
	Province      string `json:"province"`
	Ward          string `json:"ward"`
}

// Addresses lists distinct shipping addresses from the user's past orders.
func (h *CheckoutHandler) Addresses(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var rows []savedAddress
	if err := h.db.Model(&models.Order{}).
		Select("customer_name, customer_phone, address, province, ward").
		Where("user_id = ? AND address <> ''", userID).
		Order("created_at desc").
		Limit(savedAddressLimit * 5).
		Scan(&rows).Error; err != nil {
		return err
	}

	seen := make(map[string]struct{})
	addresses := make([]savedAddress, 0, savedAddressLimit)
	for _, r := range rows {
		key := strings.ToLower(r.Address + "|" + r.Ward + "|" + r.Province)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		addresses = append(addresses, r)
		if len(addresses) == savedAddressLimit {
			break
		}
	}

	return c.JSON(fiber.Map{"success": true, "data": addresses})
}

type placeOrderRequest struct {
	FullName      string `json:"full_name" validate:"required,max=255"`
	Phone         string `json:"phone" validate:"required,max=32"`
	Email         string `json:"email" validate:"required,email"`
	Province      string `json:"province" validate:"required,max=128"`
	Ward          string `json:"ward" validate:"required,max=128"`
	Address       string `json:"address" validate:"required,max=512"`
	VoucherCode   string `json:"voucher_code" validate:"max=64"`
	PaymentMethod string `json:"payment_method"`
	Note          string `json:"note" validate:"max=2000"`

	ShipOther     bool   `json:"ship_other"`
	OtherName     string `json:"other_name" validate:"required_if=ShipOther true,max=255"`
	OtherPhone    string `json:"other_phone" validate:"required_if=ShipOther true,max=32"`
	OtherProvince string `json:"other_province" validate:"required_if=ShipOther true,max=128"`
	OtherWard     string `json:"other_ward" validate:"required_if=ShipOther true,max=128"`
	OtherAddress  string `json:"other_address" validate:"required_if=ShipOther true,max=512"`
}

func (r placeOrderRequest) paymentMethod() (models.PaymentMethod, error) {
	if r.PaymentMethod == "" {
		return models.PaymentCOD, nil
	}
	m := models.PaymentMethod(strings.ToLower(r.PaymentMethod))
	if !m.Valid() {
		return "", fiber.NewError(fiber.StatusBadRequest, "unsupported payment method")
	}
	return m, nil
}

// voucherDiscount is always zero; there is no voucher catalogue and the code is only recorded.
func voucherDiscount(string, decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}

// PlaceOrder creates the order, takes the items out of stock and empties the cart.
func (h *CheckoutHandler) PlaceOrder(c *fiber.Ctx) error {
	var req placeOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	method, err := req.paymentMethod()
	if err != nil {
		return err
	}

	sess, err := h.sessions.Get(c)
	if err != nil {
		return err
	}
	cart := services.NewCart(sess)
	lines := cart.Items()
	if len(lines) == 0 {
		return errEmptyCart
	}

	order := models.Order{
		CustomerName:  strings.TrimSpace(req.FullName),
		CustomerPhone: strings.TrimSpace(req.Phone),
		CustomerEmail: normalizeEmail(req.Email),
		Address:       strings.TrimSpace(req.Address),
		Province:      strings.TrimSpace(req.Province),
		Ward:          strings.TrimSpace(req.Ward),
		PaymentMethod: method,
		Status:        models.StatusPending,
		Note:          strings.TrimSpace(req.Note),
		VoucherCode:   strings.ToUpper(strings.TrimSpace(req.VoucherCode)),
	}
	if req.ShipOther {
		order.ShipToOther = true
		order.OtherName = strings.TrimSpace(req.OtherName)
		order.OtherPhone = strings.TrimSpace(req.OtherPhone)
		order.OtherAddress = strings.TrimSpace(req.OtherAddress)
		order.OtherProvince = strings.TrimSpace(req.OtherProvince)
		order.OtherWard = strings.TrimSpace(req.OtherWard)
	}
	if userID, ok := middleware.GetCurrentUserID(c); ok {
		order.UserID = &userID
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		items, touched, err := reserveStock(tx, lines)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "none of the cart items are available")
		}

		order.Items = items
		order.Subtotal = decimal.Zero
		for _, item := range items {
			order.Subtotal = order.Subtotal.Add(item.Subtotal)
		}
		order.Discount = voucherDiscount(order.VoucherCode, order.Subtotal)
		order.Total = decimal.Max(order.Subtotal.Sub(order.Discount), decimal.Zero)

		if order.OrderCode, err = uniqueOrderCode(tx); err != nil {
			return err
		}
		for _, p := range touched {
			if err := saveStock(tx, p); err != nil {
				return err
			}
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		return err
	}

	cart.Clear()
	if err := sess.Save(); err != nil {
		return err
	}

	snapshot := order
	go h.telegram.NotifyNewOrder(&snapshot)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "order placed",
		"data":    newOrderResponse(order),
	})
}

// reserveStock prices the cart lines and decrements stock on the loaded products.
// Lines for products that no longer exist or were deactivated are skipped. The returned products
// still need saving.
func reserveStock(tx *gorm.DB, lines []services.CartLine) ([]models.OrderItem, []*models.Product, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}

	var products []models.Product
	if err := forUpdate(tx).Where("id IN ? AND is_active = ?", ids, true).Order("id").Find(&products).Error; err != nil {
		return nil, nil, err
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	var items []models.OrderItem
	touched := make(map[uuid.UUID]*models.Product)
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok || l.Quantity <= 0 {
			continue
		}

		capacity := l.Capacity
		if !p.HasVariants() {
			capacity = ""
		}
		price := p.UnitPrice(capacity)

		if err := p.AdjustStock(capacity, -l.Quantity); err != nil {
			switch {
			case errors.Is(err, pricing.ErrInsufficientStock):
				return nil, nil, fiber.NewError(fiber.StatusConflict, "not enough stock for "+p.Name)
			case errors.Is(err, pricing.ErrUnknownCapacity):
				return nil, nil, fiber.NewError(fiber.StatusBadRequest, p.Name+" is no longer sold in "+capacity)
			}
			return nil, nil, err
		}
		touched[p.ID] = p

		items = append(items, models.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Capacity:    capacity,
			Quantity:    l.Quantity,
			Price:       price,
			Subtotal:    price.Mul(decimal.NewFromInt(int64(l.Quantity))),
		})
	}

	list := make([]*models.Product, 0, len(touched))
	for _, p := range touched {
		list = append(list, p)
	}
	return items, list, nil
}

func uniqueOrderCode(tx *gorm.DB) (string, error) {
	for i := 0; i < orderCodeAttempts; i++ {
		code, err := utils.GenerateOrderCode(time.Now())
		if err != nil {
			return "", err
		}
		var count int64
		if err := tx.Model(&models.Order{}).Where("order_code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a unique order code")
}
