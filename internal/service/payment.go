package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"checkout-service/internal/apperr"
	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/util"
)

// CreateOrderRequest is the create-order request body. BillingDetails
// only needs to be present; its content was validated and persisted by
// save-billing-details.
type CreateOrderRequest struct {
	Amount         json.Number            `json:"amount" binding:"required"`
	Currency       string                 `json:"currency" binding:"required"`
	OrderID        string                 `json:"orderID" binding:"required"`
	BillingDetails map[string]interface{} `json:"billingDetails" binding:"required"`
}

// CreateOrderResult carries the provider order id and the approval
// links the storefront redirects through.
type CreateOrderResult struct {
	OrderID string         `json:"orderID"`
	Links   []gateway.Link `json:"links"`
}

// CreateProviderOrder creates the provider checkout order and advances
// the ledger row to INITIATED with the provider's order id.
func (s *CheckoutService) CreateProviderOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreateProviderOrder")
	defer span.End()

	if req.Amount == "" || req.Currency == "" || req.OrderID == "" || req.BillingDetails == nil {
		return nil, apperr.Validation("Missing required fields")
	}

	amount, err := formatAmount(req.Amount)
	if err != nil {
		return nil, apperr.Validation("Invalid amount: %s", req.Amount)
	}

	if _, err := parseBaseURL(s.cfg.BaseURL); err != nil {
		return nil, apperr.Configuration("Invalid base URL configuration")
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderParams{
		Amount:    amount,
		Currency:  req.Currency,
		OrderID:   req.OrderID,
		ReturnURL: fmt.Sprintf("%s/paypal-response?orderId=%s", s.cfg.BaseURL, req.OrderID),
		CancelURL: fmt.Sprintf("%s/paypal-response?orderId=%s&status=CANCELLED", s.cfg.BaseURL, req.OrderID),
		BrandName: s.cfg.BrandName,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.MarkInitiated(ctx, req.OrderID, order.ID); err != nil {
		return nil, err
	}

	util.ProviderOrdersCreatedTotal.Inc()
	s.logger.Info("Provider order created",
		zap.String("order_id", req.OrderID),
		zap.String("provider_order_id", order.ID))

	return &CreateOrderResult{OrderID: order.ID, Links: order.Links}, nil
}

// CaptureResult is the capture-payment response payload.
type CaptureResult struct {
	Status             models.PaymentStatus `json:"status"`
	TransactionDetails json.RawMessage      `json:"transactionDetails"`
}

// CapturePayment finalizes the fund transfer for an order. The
// provider's current state is checked first: an already completed
// order short-circuits to success without re-capturing, anything other
// than APPROVED is rejected naming the state without touching the
// ledger.
func (s *CheckoutService) CapturePayment(ctx context.Context, orderID string) (*CaptureResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CapturePayment")
	defer span.End()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	locked, err := s.cache.AcquireCaptureLock(ctx, orderID)
	if err != nil {
		// The lock is advisory; a cache outage must not block payments.
		s.logger.Warn("Capture lock unavailable, proceeding unlocked",
			zap.String("order_id", orderID),
			zap.Error(err))
	} else if !locked {
		util.CapturesTotal.WithLabelValues("in_progress").Inc()
		return nil, apperr.Gateway("Capture already in progress for order %s", orderID)
	}
	if locked {
		defer func() {
			if err := s.cache.ReleaseCaptureLock(ctx, orderID); err != nil {
				s.logger.Warn("Failed to release capture lock",
					zap.String("order_id", orderID),
					zap.Error(err))
			}
		}()
	}

	providerOrder, err := s.gateway.GetOrder(ctx, order.PaymentTransactionID)
	if err != nil {
		util.CapturesTotal.WithLabelValues("gateway_error").Inc()
		return nil, err
	}

	if providerOrder.Status == string(models.StatusCompleted) {
		return s.recordCompletedOrder(ctx, order, providerOrder)
	}

	if providerOrder.Status != string(models.StatusApproved) {
		util.CapturesTotal.WithLabelValues("illegal_state").Inc()
		return nil, apperr.Gateway("Order is in %s state. Cannot capture payment.", providerOrder.Status)
	}

	capture, err := s.gateway.CaptureOrder(ctx, order.PaymentTransactionID)
	if err != nil {
		util.CapturesTotal.WithLabelValues("gateway_error").Inc()
		return nil, err
	}

	status := models.StatusFailed
	message := "Payment failed"
	if capture.Status == string(models.StatusCompleted) {
		status = models.StatusCompleted
		message = "Payment successful"
	}

	if !models.CanTransition(order.PaymentStatus, status) {
		util.CapturesTotal.WithLabelValues("illegal_transition").Inc()
		return nil, apperr.Gateway("Cannot move order %s from %s to %s", orderID, order.PaymentStatus, status)
	}

	swapped, err := s.store.RecordPaymentResult(ctx, orderID, order.PaymentStatus, status, capture.Raw)
	if err != nil {
		return nil, err
	}
	if !swapped {
		// A concurrent caller moved the order first; its write is the
		// last provider-confirmed state, so return what it stored.
		return s.currentLedgerState(ctx, orderID)
	}

	util.CapturesTotal.WithLabelValues(resultLabel(status)).Inc()

	var txID, amount string
	if c := capture.FirstCapture(); c != nil {
		txID = c.ID
	}
	amount = capture.AmountValue()

	if order.PaymentStatus != status {
		s.emitStatusChange(ctx, orderID, order.PaymentStatus, status, txID, amount, message)
	}

	s.logger.Info("Payment capture recorded",
		zap.String("order_id", orderID),
		zap.String("status", string(status)),
		zap.String("transaction_id", txID))

	return &CaptureResult{Status: status, TransactionDetails: capture.Raw}, nil
}

// recordCompletedOrder is the idempotent short-circuit: the provider
// already reports COMPLETED, so persist that state and succeed without
// re-invoking capture.
func (s *CheckoutService) recordCompletedOrder(ctx context.Context, order *models.Order, providerOrder *gateway.ProviderOrder) (*CaptureResult, error) {
	util.CaptureIdempotentHits.Inc()

	swapped, err := s.store.RecordPaymentResult(ctx, order.OrderID, order.PaymentStatus, models.StatusCompleted, providerOrder.Raw)
	if err != nil {
		return nil, err
	}

	if swapped && order.PaymentStatus != models.StatusCompleted {
		var txID string
		if c := providerOrder.FirstCapture(); c != nil {
			txID = c.ID
		}
		s.emitStatusChange(ctx, order.OrderID, order.PaymentStatus, models.StatusCompleted,
			txID, providerOrder.AmountValue(), "Payment already completed")
	}

	util.CapturesTotal.WithLabelValues("idempotent").Inc()
	return &CaptureResult{Status: models.StatusCompleted, TransactionDetails: providerOrder.Raw}, nil
}

func (s *CheckoutService) currentLedgerState(ctx context.Context, orderID string) (*CaptureResult, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &CaptureResult{Status: order.PaymentStatus, TransactionDetails: order.TransactionDetails}, nil
}

// CheckStatus returns the shaped status document for an order, served
// from the cache when a fresh entry exists. Legacy status spellings
// are normalized for the response only, never written back.
func (s *CheckoutService) CheckStatus(ctx context.Context, orderID string) (*models.StatusSnapshot, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CheckStatus")
	defer span.End()

	if orderID == "" {
		return nil, apperr.Validation("Order ID is required")
	}

	util.StatusChecksTotal.Inc()

	snap, hit, err := s.cache.GetStatus(ctx, orderID)
	if err != nil {
		s.logger.Warn("Status cache read failed",
			zap.String("order_id", orderID),
			zap.Error(err))
	}
	if hit {
		util.StatusCacheHits.Inc()
		return snap, nil
	}
	util.StatusCacheMisses.Inc()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	timestamp := order.UpdatedAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	snap = &models.StatusSnapshot{
		Status:          string(models.NormalizeStatus(string(order.PaymentStatus))),
		OrderID:         orderID,
		Currency:        withDefault(order.OrderDetails.Currency, "USD"),
		Amount:          withDefault(order.OrderDetails.Amount, "0.00"),
		Item:            order.OrderDetails.Item,
		PaymentProvider: withDefault(order.PaymentProvider, models.ProviderPayPal),
		CustomerName:    order.CustomerDetails.FullName(),
		CustomerEmail:   order.CustomerDetails.EmailID,
		Timestamp:       timestamp.UTC().Format(time.RFC3339),
	}

	if err := s.cache.SetStatus(ctx, orderID, snap); err != nil {
		s.logger.Warn("Status cache write failed",
			zap.String("order_id", orderID),
			zap.Error(err))
	}

	return snap, nil
}

func resultLabel(status models.PaymentStatus) string {
	if status == models.StatusCompleted {
		return "success"
	}
	return "failed"
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL missing scheme or host: %q", raw)
	}
	return u, nil
}
