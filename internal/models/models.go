package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PaymentStatus is the ledger-side status of an order. It always
// reflects the last provider-confirmed state and is never advanced
// before the provider reports it.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "PENDING"
	StatusInitiated PaymentStatus = "INITIATED"
	StatusApproved  PaymentStatus = "APPROVED"
	StatusCompleted PaymentStatus = "COMPLETED"
	StatusFailed    PaymentStatus = "FAILED"
	StatusCancelled PaymentStatus = "CANCELLED"
)

// CanTransition reports whether moving from one payment status to
// another is legal. Re-asserting COMPLETED is allowed so duplicate
// capture calls stay idempotent; backward moves are rejected.
func CanTransition(from, to PaymentStatus) bool {
	if from == to {
		return to == StatusCompleted
	}
	switch from {
	case StatusPending:
		// Completed/failed directly from PENDING covers a billing
		// re-submission that reset the status after initiation.
		return to == StatusInitiated || to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	case StatusInitiated, StatusApproved:
		return to == StatusApproved || to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	case StatusFailed:
		return to == StatusCompleted
	default:
		return false
	}
}

// NormalizeStatus folds legacy spellings left by earlier ledger writers
// into COMPLETED. The normalization applies to responses only and is
// never written back.
func NormalizeStatus(raw string) PaymentStatus {
	switch raw {
	case "", string(StatusPending):
		return StatusPending
	case "completed", "CAPTURED", string(StatusCompleted):
		return StatusCompleted
	default:
		return PaymentStatus(raw)
	}
}

// Payment providers accepted at checkout.
const (
	ProviderPayPal = "PayPal"
	ProviderUPI    = "UPI"
	ProviderWise   = "Wise"
)

// CustomerDetails is the billing document nested on an order. Set once
// at billing submission, never mutated afterwards.
type CustomerDetails struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	EmailID      string `json:"emailID"`
	MobileNumber string `json:"mobileNumber"`
	City         string `json:"city"`
	State        string `json:"state"`
	Country      string `json:"country"`
	Address      string `json:"address,omitempty"`
	PinCode      string `json:"pinCode,omitempty"`
}

// FullName joins first and last names, trimming when either is empty.
func (c CustomerDetails) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// OrderDetails describes what was purchased. Amount is a decimal
// string already rounded to two places.
type OrderDetails struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Item     string `json:"item"`
}

// Order is one row of the order ledger, one document per purchase
// attempt keyed by the client-generated order id.
type Order struct {
	OrderID              string          `db:"order_id" json:"orderID"`
	CustomerDetails      CustomerDetails `db:"customer_details" json:"customerDetails"`
	OrderDetails         OrderDetails    `db:"order_details" json:"orderDetails"`
	PaymentProvider      string          `db:"payment_provider" json:"paymentProvider"`
	PaymentStatus        PaymentStatus   `db:"payment_status" json:"paymentStatus"`
	PaymentTransactionID string          `db:"payment_transaction_id" json:"paymentTransactionID"`
	TransactionDetails   json.RawMessage `db:"transaction_details" json:"transactionDetails,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updatedAt"`
	LastPaymentUpdate    *time.Time      `db:"last_payment_update" json:"lastPaymentUpdate,omitempty"`
}

// StatusSnapshot is the shaped check-status response document. It is
// what gets cached, so a cache hit returns the prior response verbatim.
type StatusSnapshot struct {
	Status          string `json:"status"`
	OrderID         string `json:"orderId"`
	Currency        string `json:"currency"`
	Amount          string `json:"amount"`
	Item            string `json:"item"`
	PaymentProvider string `json:"paymentProvider"`
	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail"`
	Timestamp       string `json:"timestamp"`
}

// DiscountCodes is one discount document per product: a currency →
// code → value map for each supported currency.
type DiscountCodes struct {
	ProductID string      `db:"product_id"`
	INR       CurrencyMap `db:"inr"`
	USD       CurrencyMap `db:"usd"`
}

// CurrencyMap maps a discount code to its value within one currency.
type CurrencyMap map[string]float64

// DiscountMatch is the result of resolving a code across products.
type DiscountMatch struct {
	Value    float64 `json:"value"`
	Product  string  `json:"product"`
	Currency string  `json:"currency"`
}

// JSONB plumbing so sqlx can round-trip the nested documents.

func (c CustomerDetails) Value() (driver.Value, error) { return json.Marshal(c) }

func (c *CustomerDetails) Scan(src interface{}) error { return scanJSON(src, c) }

func (o OrderDetails) Value() (driver.Value, error) { return json.Marshal(o) }

func (o *OrderDetails) Scan(src interface{}) error { return scanJSON(src, o) }

func (m CurrencyMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(CurrencyMap{})
	}
	return json.Marshal(m)
}

func (m *CurrencyMap) Scan(src interface{}) error { return scanJSON(src, m) }

func scanJSON(src, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}
