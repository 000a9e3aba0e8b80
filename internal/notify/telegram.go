// Package notify posts operator alerts to a Telegram channel. Delivery
// is best-effort: a failure must never fail the payment operation that
// triggered it, so callers log returned errors and move on.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"checkout-service/internal/models"
	"checkout-service/internal/util"
)

const defaultAPIBase = "https://api.telegram.org"

type Telegram struct {
	apiBase    string
	botToken   string
	chatID     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTelegram creates a new Telegram notification sink
func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		apiBase:  defaultAPIBase,
		botToken: botToken,
		chatID:   chatID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: util.GetLogger(),
	}
}

// NewTelegramWithBase is NewTelegram with an explicit API host.
func NewTelegramWithBase(apiBase, botToken, chatID string) *Telegram {
	t := NewTelegram(botToken, chatID)
	t.apiBase = apiBase
	return t
}

// PaymentDetails is the payload of a payment-update alert.
type PaymentDetails struct {
	Status          string
	TransactionID   string
	Amount          string
	ResponseMessage string
}

// PaymentUpdate alerts the operator channel about a payment status
// transition.
func (t *Telegram) PaymentUpdate(ctx context.Context, orderID string, d PaymentDetails) error {
	var b strings.Builder
	b.WriteString("<b>🔔 Payment Update Notification</b>\n\n")
	b.WriteString("<b>ORDER DETAILS:</b>\n")
	fmt.Fprintf(&b, "🆔 Order ID: %s\n", orderID)
	fmt.Fprintf(&b, "📊 Status: %s\n", d.Status)
	fmt.Fprintf(&b, "💳 Transaction ID: %s\n", orEmpty(d.TransactionID))
	fmt.Fprintf(&b, "💰 Amount: US$ %s", orEmpty(d.Amount))
	if d.ResponseMessage != "" {
		fmt.Fprintf(&b, "\n\n<b>NOTE:</b> %s", d.ResponseMessage)
	}

	return t.send(ctx, b.String())
}

// NewOrderDetails is the payload of a new-order alert.
type NewOrderDetails struct {
	Item            string
	Amount          string
	Currency        string
	PaymentProvider string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	Location        string
}

// NewOrderFromOrder flattens a ledger order into an alert payload.
func NewOrderFromOrder(order *models.Order) NewOrderDetails {
	c := order.CustomerDetails
	return NewOrderDetails{
		Item:            order.OrderDetails.Item,
		Amount:          order.OrderDetails.Amount,
		Currency:        order.OrderDetails.Currency,
		PaymentProvider: order.PaymentProvider,
		CustomerName:    c.FullName(),
		CustomerEmail:   c.EmailID,
		CustomerPhone:   c.MobileNumber,
		Location:        fmt.Sprintf("%s, %s, %s", c.City, c.State, c.Country),
	}
}

// NewOrder alerts the operator channel about a fresh billing
// submission.
func (t *Telegram) NewOrder(ctx context.Context, orderID string, d NewOrderDetails) error {
	var b strings.Builder
	b.WriteString("<b>🔔 New Payment Notification</b>\n\n")
	b.WriteString("<b>ORDER DETAILS:</b>\n")
	fmt.Fprintf(&b, "🆔 Order ID: %s\n", orderID)
	fmt.Fprintf(&b, "📦 Item: %s\n", d.Item)
	fmt.Fprintf(&b, "💰 Amount: %s %s\n", d.Currency, d.Amount)
	fmt.Fprintf(&b, "💳 Payment Method: %s\n", d.PaymentProvider)
	b.WriteString("📊 Status: PAYMENT INITIATED\n\n")
	b.WriteString("<b>CUSTOMER DETAILS:</b>\n")
	fmt.Fprintf(&b, "👤 Name: %s\n", d.CustomerName)
	fmt.Fprintf(&b, "📧 Email: %s\n", d.CustomerEmail)
	fmt.Fprintf(&b, "📞 Mobile: %s\n", d.CustomerPhone)
	fmt.Fprintf(&b, "📍 Location: %s", d.Location)

	return t.send(ctx, b.String())
}

func (t *Telegram) send(ctx context.Context, message string) error {
	if t.botToken == "" || t.chatID == "" {
		t.logger.Info("Telegram notification skipped: missing configuration")
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "HTML",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		util.NotificationFailuresTotal.Inc()
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		util.NotificationFailuresTotal.Inc()
		return fmt.Errorf("telegram API error: %s", resp.Status)
	}

	util.NotificationsSentTotal.Inc()
	return nil
}

func orEmpty(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
