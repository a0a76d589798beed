package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/hairnova/internal/models"
)

const telegramAPI = "https://api.telegram.org"

// TelegramService posts order notices to the staff chat.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiBase     string
	client      *http.Client
	log         *zap.Logger
}

// NewTelegramService creates a TelegramService. Without a token or chat it does nothing.
func NewTelegramService(botToken, adminChatID string, log *zap.Logger) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiBase:     telegramAPI,
		client:      &http.Client{Timeout: 10 * time.Second},
		log:         log.Named("telegram"),
	}
}

// Enabled reports whether messages will actually be sent.
func (s *TelegramService) Enabled() bool {
	return s.botToken != "" && s.adminChatID != ""
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendToAdmin sends an HTML formatted message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if !s.Enabled() {
		return nil
	}

	body, err := json.Marshal(telegramMessage{ChatID: s.adminChatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

// FormatPrice renders an amount with thousand separators, e.g. 1,250,000 ₫.
func FormatPrice(amount decimal.Decimal) string {
	str := amount.Round(0).Abs().String()

	var b strings.Builder
	if amount.Round(0).IsNegative() {
		b.WriteByte('-')
	}
	for i, digit := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	return b.String() + " ₫"
}

func orderMessage(order *models.Order) string {
	var items strings.Builder
	for i, item := range order.Items {
		name := html.EscapeString(item.ProductName)
		if item.Capacity != "" {
			name += " (" + html.EscapeString(item.Capacity) + ")"
		}
		fmt.Fprintf(&items, "%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1, name, item.Quantity, FormatPrice(item.Price), FormatPrice(item.Subtotal))
	}

	return strings.TrimSpace(fmt.Sprintf(`<b>🛒 New order %s</b>
<b>Customer:</b> %s
<b>Phone:</b> %s
<b>Ship to:</b> %s, %s, %s
<b>Items:</b>
%s
<b>Total:</b> %s
<b>Payment:</b> %s`,
		order.OrderCode,
		html.EscapeString(order.CustomerName),
		html.EscapeString(order.CustomerPhone),
		html.EscapeString(order.Address), html.EscapeString(order.Ward), html.EscapeString(order.Province),
		items.String(),
		FormatPrice(order.Total),
		order.PaymentMethod.DisplayName(),
	))
}

// NotifyNewOrder announces a placed order. Errors are logged, not returned, so it
// can run in its own goroutine.
func (s *TelegramService) NotifyNewOrder(order *models.Order) {
	if !s.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.SendToAdmin(ctx, orderMessage(order)); err != nil {
		s.log.Warn("new order notification failed", zap.String("order_code", order.OrderCode), zap.Error(err))
	}
}

// NotifyStatusChange announces a staff status update.
func (s *TelegramService) NotifyStatusChange(order *models.Order, from models.OrderStatus) {
	if !s.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	text := fmt.Sprintf("<b>📦 Order %s</b>\n%s → <b>%s</b>", order.OrderCode, from.DisplayName(), order.Status.DisplayName())
	if err := s.SendToAdmin(ctx, text); err != nil {
		s.log.Warn("status notification failed", zap.String("order_code", order.OrderCode), zap.Error(err))
	}
}
