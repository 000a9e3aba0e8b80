package models

import "time"

// Event types
const (
	EventTypeOrderBilled          = "ORDER_BILLED"
	EventTypePaymentStatusChanged = "PAYMENT_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderBilledEvent published when billing details are first saved for
// an order (status PENDING).
type OrderBilledEvent struct {
	BaseEvent
	OrderID         string `json:"order_id"`
	Item            string `json:"item"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	PaymentProvider string `json:"payment_provider"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
	Location        string `json:"location"`
}

// PaymentStatusChangedEvent published when a reconciliation endpoint
// observed a provider-confirmed status different from the stored one.
type PaymentStatusChangedEvent struct {
	BaseEvent
	OrderID         string `json:"order_id"`
	PreviousStatus  string `json:"previous_status"`
	NewStatus       string `json:"new_status"`
	TransactionID   string `json:"transaction_id,omitempty"`
	Amount          string `json:"amount,omitempty"`
	ResponseMessage string `json:"response_message,omitempty"`
}
