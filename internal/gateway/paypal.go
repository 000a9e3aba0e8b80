// Package gateway is the PayPal REST v2 client used by the
// reconciliation endpoints: client-credentials token exchange, order
// creation with a fixed CAPTURE intent, order lookup, and capture.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"checkout-service/internal/apperr"
	"checkout-service/internal/util"
)

type Client struct {
	apiBase      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewClient creates a new PayPal gateway client
func NewClient(apiBase, clientID, clientSecret string) *Client {
	return &Client{
		apiBase:      apiBase,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: util.GetLogger(),
	}
}

// Link is a HATEOAS link returned by PayPal; the "approve" link is
// what the storefront redirects the buyer to.
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount *Money `json:"amount"`
}

type Payments struct {
	Captures []Capture `json:"captures"`
}

type PurchaseUnit struct {
	Amount   *Money    `json:"amount"`
	Payments *Payments `json:"payments"`
}

// ProviderOrder is a PayPal checkout order document. Raw preserves the
// exact response body so the ledger can store it untouched.
type ProviderOrder struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Links         []Link          `json:"links"`
	PurchaseUnits []PurchaseUnit  `json:"purchase_units"`
	Raw           json.RawMessage `json:"-"`
}

// FirstCapture returns the first capture on the order, or nil.
func (o *ProviderOrder) FirstCapture() *Capture {
	for _, pu := range o.PurchaseUnits {
		if pu.Payments != nil && len(pu.Payments.Captures) > 0 {
			return &pu.Payments.Captures[0]
		}
	}
	return nil
}

// AmountValue returns the order's amount: the captured amount when a
// capture exists, the purchase-unit amount otherwise.
func (o *ProviderOrder) AmountValue() string {
	if c := o.FirstCapture(); c != nil && c.Amount != nil {
		return c.Amount.Value
	}
	for _, pu := range o.PurchaseUnits {
		if pu.Amount != nil {
			return pu.Amount.Value
		}
	}
	return ""
}

type errorDetail struct {
	Issue       string `json:"issue"`
	Description string `json:"description"`
}

type errorResponse struct {
	Name    string        `json:"name"`
	Message string        `json:"message"`
	Details []errorDetail `json:"details"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// AccessToken exchanges the configured client id and secret for a
// bearer token via the client-credentials grant.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return "", apperr.Configuration("PayPal credentials not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	util.GatewayRequestLatency.WithLabelValues("token").Observe(time.Since(start).Seconds())
	if err != nil {
		util.GatewayErrorsTotal.WithLabelValues("token").Inc()
		return "", apperr.Wrap(apperr.KindGateway, "failed to obtain PayPal access token", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Wrap(apperr.KindGateway, "failed to read token response", err)
	}

	if resp.StatusCode != http.StatusOK {
		util.GatewayErrorsTotal.WithLabelValues("token").Inc()
		return "", apperr.Gateway("PayPal token request failed: %s", gatewayMessage(body, "token request rejected"))
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", apperr.Wrap(apperr.KindGateway, "malformed token response", err)
	}
	if token.AccessToken == "" {
		return "", apperr.Gateway("PayPal token response missing access_token")
	}
	return token.AccessToken, nil
}

// CreateOrderParams are the inputs to order creation. Amount must
// already be a two-decimal string.
type CreateOrderParams struct {
	Amount    string
	Currency  string
	OrderID   string
	ReturnURL string
	CancelURL string
	BrandName string
}

// CreateOrder posts a checkout order with CAPTURE intent.
func (c *Client) CreateOrder(ctx context.Context, p CreateOrderParams) (*ProviderOrder, error) {
	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"amount": map[string]string{
					"currency_code": p.Currency,
					"value":         p.Amount,
				},
				"description": fmt.Sprintf("Order %s", p.OrderID),
				"custom_id":   p.OrderID,
			},
		},
		"application_context": map[string]string{
			"return_url":          p.ReturnURL,
			"cancel_url":          p.CancelURL,
			"brand_name":          p.BrandName,
			"landing_page":        "NO_PREFERENCE",
			"user_action":         "PAY_NOW",
			"shipping_preference": "NO_SHIPPING",
		},
	}

	order, err := c.doOrderRequest(ctx, "create_order", http.MethodPost, "/v2/checkout/orders", payload, "Failed to create PayPal order")
	if err != nil {
		return nil, err
	}

	c.logger.Info("PayPal order created",
		zap.String("order_id", p.OrderID),
		zap.String("provider_order_id", order.ID),
		zap.String("amount", p.Amount),
		zap.String("currency", p.Currency))
	return order, nil
}

// GetOrder looks up the current provider-side state of an order. Used
// before capture so an already completed order is never re-captured.
func (c *Client) GetOrder(ctx context.Context, providerOrderID string) (*ProviderOrder, error) {
	path := fmt.Sprintf("/v2/checkout/orders/%s", providerOrderID)
	return c.doOrderRequest(ctx, "get_order", http.MethodGet, path, nil, "Failed to verify PayPal order status")
}

// CaptureOrder executes the capture. On a provider error the first
// structured detail is surfaced when present.
func (c *Client) CaptureOrder(ctx context.Context, providerOrderID string) (*ProviderOrder, error) {
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", providerOrderID)
	return c.doOrderRequest(ctx, "capture_order", http.MethodPost, path, struct{}{}, "Failed to capture PayPal payment")
}

func (c *Client) doOrderRequest(ctx context.Context, op, method, path string, payload interface{}, fallbackMsg string) (*ProviderOrder, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	util.GatewayRequestLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		util.GatewayErrorsTotal.WithLabelValues(op).Inc()
		return nil, apperr.Wrap(apperr.KindGateway, fallbackMsg, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindGateway, fallbackMsg, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		util.GatewayErrorsTotal.WithLabelValues(op).Inc()
		c.logger.Error("PayPal request failed",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", raw))
		return nil, apperr.Gateway("%s", gatewayMessage(raw, fallbackMsg))
	}

	var order ProviderOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, apperr.Wrap(apperr.KindGateway, "malformed PayPal response", err)
	}
	order.Raw = raw
	return &order, nil
}

// gatewayMessage extracts the most specific error text the provider
// supplied: detail issue+description first, then the top-level message,
// then the caller's fallback.
func gatewayMessage(body []byte, fallback string) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil {
		if len(e.Details) > 0 {
			d := e.Details[0]
			return fmt.Sprintf("%s: %s", d.Issue, d.Description)
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return fallback
}
