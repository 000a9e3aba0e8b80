package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-service/internal/apperr"
)

func tokenHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer","expires_in":32400}`))
	}
}

func TestAccessTokenMissingCredentials(t *testing.T) {
	client := NewClient("http://paypal.invalid", "", "")

	_, err := client.AccessToken(context.Background())
	require.Error(t, err)

	kind, ok := apperr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindConfiguration, kind)
}

func TestCreateOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", tokenHandler(t))
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var payload struct {
			Intent        string `json:"intent"`
			PurchaseUnits []struct {
				Amount struct {
					CurrencyCode string `json:"currency_code"`
					Value        string `json:"value"`
				} `json:"amount"`
				CustomID string `json:"custom_id"`
			} `json:"purchase_units"`
			ApplicationContext struct {
				ReturnURL          string `json:"return_url"`
				UserAction         string `json:"user_action"`
				ShippingPreference string `json:"shipping_preference"`
			} `json:"application_context"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		assert.Equal(t, "CAPTURE", payload.Intent)
		require.Len(t, payload.PurchaseUnits, 1)
		assert.Equal(t, "49.99", payload.PurchaseUnits[0].Amount.Value)
		assert.Equal(t, "USD", payload.PurchaseUnits[0].Amount.CurrencyCode)
		assert.Equal(t, "QTT-1", payload.PurchaseUnits[0].CustomID)
		assert.Equal(t, "PAY_NOW", payload.ApplicationContext.UserAction)
		assert.Equal(t, "NO_SHIPPING", payload.ApplicationContext.ShippingPreference)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"PP-1","status":"CREATED","links":[{"href":"https://paypal.test/approve","rel":"approve","method":"GET"}]}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, "client-id", "client-secret")

	order, err := client.CreateOrder(context.Background(), CreateOrderParams{
		Amount:    "49.99",
		Currency:  "USD",
		OrderID:   "QTT-1",
		ReturnURL: "http://localhost:3000/paypal-response?orderId=QTT-1",
		CancelURL: "http://localhost:3000/paypal-response?orderId=QTT-1&status=CANCELLED",
		BrandName: "Quant Trader Tools",
	})
	require.NoError(t, err)

	assert.Equal(t, "PP-1", order.ID)
	assert.Equal(t, "CREATED", order.Status)
	require.Len(t, order.Links, 1)
	assert.Equal(t, "approve", order.Links[0].Rel)
	assert.NotEmpty(t, order.Raw)
}

func TestCreateOrderGatewayError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", tokenHandler(t))
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","message":"The requested action could not be performed."}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, "client-id", "client-secret")

	_, err := client.CreateOrder(context.Background(), CreateOrderParams{
		Amount: "49.99", Currency: "USD", OrderID: "QTT-1",
	})
	require.Error(t, err)

	kind, _ := apperr.KindOf(err)
	assert.Equal(t, apperr.KindGateway, kind)
	assert.Contains(t, err.Error(), "could not be performed")
}

func TestGetOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", tokenHandler(t))
	mux.HandleFunc("/v2/checkout/orders/PP-2", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"PP-2","status":"APPROVED","purchase_units":[{"amount":{"currency_code":"USD","value":"49.99"}}]}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, "client-id", "client-secret")

	order, err := client.GetOrder(context.Background(), "PP-2")
	require.NoError(t, err)

	assert.Equal(t, "APPROVED", order.Status)
	assert.Equal(t, "49.99", order.AmountValue())
	assert.Nil(t, order.FirstCapture())
}

func TestCaptureOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", tokenHandler(t))
	mux.HandleFunc("/v2/checkout/orders/PP-3/capture", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id":"PP-3","status":"COMPLETED",
			"purchase_units":[{"payments":{"captures":[{"id":"CAP-9","status":"COMPLETED","amount":{"currency_code":"USD","value":"49.99"}}]}}]
		}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, "client-id", "client-secret")

	order, err := client.CaptureOrder(context.Background(), "PP-3")
	require.NoError(t, err)

	assert.Equal(t, "COMPLETED", order.Status)
	capture := order.FirstCapture()
	require.NotNil(t, capture)
	assert.Equal(t, "CAP-9", capture.ID)
	assert.Equal(t, "49.99", order.AmountValue())
}

func TestCaptureOrderExtractsErrorDetail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", tokenHandler(t))
	mux.HandleFunc("/v2/checkout/orders/PP-4/capture", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{
			"name":"UNPROCESSABLE_ENTITY",
			"message":"The requested action could not be performed.",
			"details":[{"issue":"ORDER_NOT_APPROVED","description":"Payer has not yet approved the Order for payment."}]
		}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, "client-id", "client-secret")

	_, err := client.CaptureOrder(context.Background(), "PP-4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORDER_NOT_APPROVED")
	assert.Contains(t, err.Error(), "not yet approved")
}

func TestGatewayMessageFallback(t *testing.T) {
	assert.Equal(t, "fallback", gatewayMessage([]byte("not json"), "fallback"))
	assert.Equal(t, "fallback", gatewayMessage([]byte(`{}`), "fallback"))
	assert.Equal(t, "top level", gatewayMessage([]byte(`{"message":"top level"}`), "fallback"))
}
