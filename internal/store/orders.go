package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"checkout-service/internal/apperr"
	"checkout-service/internal/models"
)

// GetOrder retrieves an order by its client-generated id.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("Order not found")
	}
	if err != nil {
		return nil, apperr.Store("failed to read order", err)
	}
	return &order, nil
}

// UpsertBilling merge-writes the billing-submission document. An
// existing row keeps its provider transaction id unless the provider
// is UPI or Wise, which reset it to empty the way a fresh submission
// does.
func (s *Store) UpsertBilling(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (order_id, customer_details, order_details, payment_provider,
			payment_status, payment_transaction_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (order_id) DO UPDATE SET
			customer_details = EXCLUDED.customer_details,
			order_details = EXCLUDED.order_details,
			payment_provider = EXCLUDED.payment_provider,
			payment_status = EXCLUDED.payment_status,
			payment_transaction_id = CASE
				WHEN EXCLUDED.payment_provider IN ('UPI', 'Wise') THEN ''
				ELSE orders.payment_transaction_id
			END,
			updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query,
		order.OrderID, order.CustomerDetails, order.OrderDetails,
		order.PaymentProvider, order.PaymentStatus, order.PaymentTransactionID)
	if err != nil {
		return apperr.Store("failed to save billing details", err)
	}
	return nil
}

// MarkInitiated records the provider checkout order id against an
// existing ledger row and advances it to INITIATED.
func (s *Store) MarkInitiated(ctx context.Context, orderID, providerOrderID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_transaction_id = $2,
			payment_status = $3,
			payment_provider = $4,
			updated_at = NOW(),
			last_payment_update = NOW()
		WHERE order_id = $1`,
		orderID, providerOrderID, models.StatusInitiated, models.ProviderPayPal)
	if err != nil {
		return apperr.Store("failed to record provider order", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return apperr.Store("failed to record provider order", err)
	}
	if rows == 0 {
		return apperr.Store("order not in ledger: "+orderID, sql.ErrNoRows)
	}
	return nil
}

// RecordPaymentResult writes a provider-confirmed status plus the full
// raw provider response, compare-and-swapping on the previously read
// status. Returns false without writing when a concurrent caller moved
// the order first.
func (s *Store) RecordPaymentResult(ctx context.Context, orderID string, from, to models.PaymentStatus, raw json.RawMessage) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $3,
			transaction_details = $4,
			payment_provider = $5,
			updated_at = NOW(),
			last_payment_update = NOW()
		WHERE order_id = $1 AND payment_status = $2`,
		orderID, from, to, []byte(raw), models.ProviderPayPal)
	if err != nil {
		return false, apperr.Store("failed to record payment result", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Store("failed to record payment result", err)
	}
	return rows > 0, nil
}
