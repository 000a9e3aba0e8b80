// Package service implements the checkout operations: billing
// submission, provider order creation, idempotent capture, status
// polling, and discount validation. The ledger is authoritative;
// payment status only ever advances to a provider-confirmed state.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"checkout-service/config"
	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/notify"
	"checkout-service/internal/util"
)

// OrderStore is the order ledger plus the discount-code collection.
type OrderStore interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	UpsertBilling(ctx context.Context, order *models.Order) error
	MarkInitiated(ctx context.Context, orderID, providerOrderID string) error
	RecordPaymentResult(ctx context.Context, orderID string, from, to models.PaymentStatus, raw json.RawMessage) (bool, error)
	FindDiscountCode(ctx context.Context, code string) (*models.DiscountMatch, error)
}

// StatusCache memoizes shaped check-status responses and owns the
// per-order capture lock.
type StatusCache interface {
	GetStatus(ctx context.Context, orderID string) (*models.StatusSnapshot, bool, error)
	SetStatus(ctx context.Context, orderID string, snap *models.StatusSnapshot) error
	AcquireCaptureLock(ctx context.Context, orderID string) (bool, error)
	ReleaseCaptureLock(ctx context.Context, orderID string) error
}

// PaymentGateway is the provider-side order lifecycle.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, p gateway.CreateOrderParams) (*gateway.ProviderOrder, error)
	GetOrder(ctx context.Context, providerOrderID string) (*gateway.ProviderOrder, error)
	CaptureOrder(ctx context.Context, providerOrderID string) (*gateway.ProviderOrder, error)
}

// EventSink receives checkout domain events for the notification
// worker.
type EventSink interface {
	PublishOrderBilled(ctx context.Context, event *models.OrderBilledEvent) error
	PublishPaymentStatusChanged(ctx context.Context, event *models.PaymentStatusChangedEvent) error
}

// Notifier is the direct operator-alert fallback used when publishing
// an event fails.
type Notifier interface {
	NewOrder(ctx context.Context, orderID string, d notify.NewOrderDetails) error
	PaymentUpdate(ctx context.Context, orderID string, d notify.PaymentDetails) error
}

// CheckoutService orchestrates the store, cache, gateway and
// notification sink for the five checkout endpoints.
type CheckoutService struct {
	store    OrderStore
	cache    StatusCache
	gateway  PaymentGateway
	events   EventSink
	notifier Notifier
	cfg      config.CheckoutConfig
	logger   *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	store OrderStore,
	cache StatusCache,
	gw PaymentGateway,
	events EventSink,
	notifier Notifier,
	cfg config.CheckoutConfig,
) *CheckoutService {
	return &CheckoutService{
		store:    store,
		cache:    cache,
		gateway:  gw,
		events:   events,
		notifier: notifier,
		cfg:      cfg,
		logger:   util.GetLogger(),
	}
}

// emitStatusChange publishes a status-transition event; when the
// broker is unavailable it falls back to a direct alert so the
// operator channel still hears about the transition. Both paths are
// best-effort.
func (s *CheckoutService) emitStatusChange(ctx context.Context, orderID string, from, to models.PaymentStatus, txID, amount, message string) {
	event := &models.PaymentStatusChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentStatusChanged,
			Timestamp: time.Now(),
		},
		OrderID:         orderID,
		PreviousStatus:  string(from),
		NewStatus:       string(to),
		TransactionID:   txID,
		Amount:          amount,
		ResponseMessage: message,
	}

	if err := s.events.PublishPaymentStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish PaymentStatusChanged event, sending alert directly",
			zap.String("order_id", orderID),
			zap.Error(err))
		if err := s.notifier.PaymentUpdate(ctx, orderID, notify.PaymentDetails{
			Status:          string(to),
			TransactionID:   txID,
			Amount:          amount,
			ResponseMessage: message,
		}); err != nil {
			s.logger.Error("Payment-update notification failed",
				zap.String("order_id", orderID),
				zap.Error(err))
		}
	}
}
