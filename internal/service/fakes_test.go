package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"checkout-service/config"
	"checkout-service/internal/apperr"
	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/notify"
)

type fakeStore struct {
	orders    map[string]*models.Order
	discounts []models.DiscountCodes
	upserts   int
	reads     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: make(map[string]*models.Order)}
}

func (f *fakeStore) GetOrder(_ context.Context, orderID string) (*models.Order, error) {
	f.reads++
	order, ok := f.orders[orderID]
	if !ok {
		return nil, apperr.NotFound("Order not found")
	}
	copied := *order
	return &copied, nil
}

func (f *fakeStore) UpsertBilling(_ context.Context, order *models.Order) error {
	f.upserts++
	copied := *order
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = time.Now()
	f.orders[order.OrderID] = &copied
	return nil
}

func (f *fakeStore) MarkInitiated(_ context.Context, orderID, providerOrderID string) error {
	order, ok := f.orders[orderID]
	if !ok {
		return apperr.Store("order not in ledger: "+orderID, fmt.Errorf("no rows"))
	}
	order.PaymentTransactionID = providerOrderID
	order.PaymentStatus = models.StatusInitiated
	order.PaymentProvider = models.ProviderPayPal
	order.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) RecordPaymentResult(_ context.Context, orderID string, from, to models.PaymentStatus, raw json.RawMessage) (bool, error) {
	order, ok := f.orders[orderID]
	if !ok || order.PaymentStatus != from {
		return false, nil
	}
	order.PaymentStatus = to
	order.TransactionDetails = raw
	order.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeStore) FindDiscountCode(_ context.Context, code string) (*models.DiscountMatch, error) {
	for _, doc := range f.discounts {
		if value, ok := doc.INR[code]; ok {
			return &models.DiscountMatch{Value: value, Product: doc.ProductID, Currency: "INR"}, nil
		}
		if value, ok := doc.USD[code]; ok {
			return &models.DiscountMatch{Value: value, Product: doc.ProductID, Currency: "USD"}, nil
		}
	}
	return nil, nil
}

type fakeCache struct {
	entries    map[string]*models.StatusSnapshot
	lockDenied bool
	locks      int
	releases   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*models.StatusSnapshot)}
}

func (f *fakeCache) GetStatus(_ context.Context, orderID string) (*models.StatusSnapshot, bool, error) {
	snap, ok := f.entries[orderID]
	return snap, ok, nil
}

func (f *fakeCache) SetStatus(_ context.Context, orderID string, snap *models.StatusSnapshot) error {
	f.entries[orderID] = snap
	return nil
}

func (f *fakeCache) AcquireCaptureLock(_ context.Context, _ string) (bool, error) {
	if f.lockDenied {
		return false, nil
	}
	f.locks++
	return true, nil
}

func (f *fakeCache) ReleaseCaptureLock(_ context.Context, _ string) error {
	f.releases++
	return nil
}

type fakeGateway struct {
	createResult *gateway.ProviderOrder
	createErr    error
	orderStatus  *gateway.ProviderOrder
	statusErr    error
	captureResp  *gateway.ProviderOrder
	captureErr   error

	createCalls  int
	statusCalls  int
	captureCalls int
}

func (f *fakeGateway) CreateOrder(_ context.Context, _ gateway.CreateOrderParams) (*gateway.ProviderOrder, error) {
	f.createCalls++
	return f.createResult, f.createErr
}

func (f *fakeGateway) GetOrder(_ context.Context, _ string) (*gateway.ProviderOrder, error) {
	f.statusCalls++
	return f.orderStatus, f.statusErr
}

func (f *fakeGateway) CaptureOrder(_ context.Context, _ string) (*gateway.ProviderOrder, error) {
	f.captureCalls++
	return f.captureResp, f.captureErr
}

type fakeEvents struct {
	billed        []*models.OrderBilledEvent
	statusChanged []*models.PaymentStatusChangedEvent
	publishErr    error
}

func (f *fakeEvents) PublishOrderBilled(_ context.Context, event *models.OrderBilledEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.billed = append(f.billed, event)
	return nil
}

func (f *fakeEvents) PublishPaymentStatusChanged(_ context.Context, event *models.PaymentStatusChangedEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.statusChanged = append(f.statusChanged, event)
	return nil
}

type fakeNotifier struct {
	newOrders      []string
	paymentUpdates []notify.PaymentDetails
}

func (f *fakeNotifier) NewOrder(_ context.Context, orderID string, _ notify.NewOrderDetails) error {
	f.newOrders = append(f.newOrders, orderID)
	return nil
}

func (f *fakeNotifier) PaymentUpdate(_ context.Context, _ string, d notify.PaymentDetails) error {
	f.paymentUpdates = append(f.paymentUpdates, d)
	return nil
}

type testEnv struct {
	svc      *CheckoutService
	store    *fakeStore
	cache    *fakeCache
	gateway  *fakeGateway
	events   *fakeEvents
	notifier *fakeNotifier
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:    newFakeStore(),
		cache:    newFakeCache(),
		gateway:  &fakeGateway{},
		events:   &fakeEvents{},
		notifier: &fakeNotifier{},
	}
	env.svc = NewCheckoutService(env.store, env.cache, env.gateway, env.events, env.notifier, config.CheckoutConfig{
		BaseURL:        "http://localhost:3000",
		BrandName:      "Quant Trader Tools",
		StatusCacheTTL: 5 * time.Second,
		CaptureLockTTL: 10 * time.Second,
	})
	return env
}

func providerOrder(id, status string, captureID, amount string) *gateway.ProviderOrder {
	order := &gateway.ProviderOrder{
		ID:     id,
		Status: status,
	}
	if captureID != "" {
		order.PurchaseUnits = []gateway.PurchaseUnit{{
			Amount: &gateway.Money{CurrencyCode: "USD", Value: amount},
			Payments: &gateway.Payments{Captures: []gateway.Capture{{
				ID:     captureID,
				Status: status,
				Amount: &gateway.Money{CurrencyCode: "USD", Value: amount},
			}}},
		}}
	}
	order.Raw = mustMarshal(order)
	return order
}

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func billedOrder(orderID string, status models.PaymentStatus, providerOrderID string) *models.Order {
	return &models.Order{
		OrderID: orderID,
		CustomerDetails: models.CustomerDetails{
			FirstName:    "Ravi",
			LastName:     "Sharma",
			EmailID:      "ravi@example.com",
			MobileNumber: "+911234567890",
			City:         "Pune",
			State:        "MH",
			Country:      "India",
		},
		OrderDetails: models.OrderDetails{
			Amount:   "49.99",
			Currency: "USD",
			Item:     "Signal Copier",
		},
		PaymentProvider:      models.ProviderPayPal,
		PaymentStatus:        status,
		PaymentTransactionID: providerOrderID,
	}
}
