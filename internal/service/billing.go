package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"checkout-service/internal/apperr"
	"checkout-service/internal/models"
	"checkout-service/internal/notify"
	"checkout-service/internal/util"
)

// BillingInput is the billing form as submitted by the storefront.
type BillingInput struct {
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	EmailID     string      `json:"emailID"`
	PhoneNumber string      `json:"phoneNumber"`
	City        string      `json:"city"`
	State       string      `json:"state"`
	Country     string      `json:"country"`
	Address     string      `json:"address"`
	PinCode     string      `json:"pinCode"`
	Amount      json.Number `json:"amount"`
	Currency    string      `json:"currency"`
	Item        string      `json:"item"`
}

// SaveBillingRequest is the save-billing-details request body.
type SaveBillingRequest struct {
	OrderID         string        `json:"orderID" binding:"required"`
	BillingDetails  *BillingInput `json:"billingDetails" binding:"required"`
	PaymentProvider string        `json:"paymentProvider" binding:"required"`
}

// requiredBillingFields are the billing fields an order cannot be
// created without.
var requiredBillingFields = []string{
	"firstName", "lastName", "emailID", "phoneNumber", "city", "state", "country",
}

func missingBillingFields(b *BillingInput) []string {
	values := map[string]string{
		"firstName":   b.FirstName,
		"lastName":    b.LastName,
		"emailID":     b.EmailID,
		"phoneNumber": b.PhoneNumber,
		"city":        b.City,
		"state":       b.State,
		"country":     b.Country,
	}

	var missing []string
	for _, field := range requiredBillingFields {
		if values[field] == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// SaveBillingDetails merge-writes the billing-submission document with
// status PENDING and fires a new-order alert. Nothing is written when
// validation fails.
func (s *CheckoutService) SaveBillingDetails(ctx context.Context, req *SaveBillingRequest) error {
	ctx, span := util.StartSpan(ctx, "CheckoutService.SaveBillingDetails")
	defer span.End()

	if req.OrderID == "" || req.BillingDetails == nil || req.PaymentProvider == "" {
		return apperr.Validation("Missing required fields: orderID, billingDetails, or paymentProvider")
	}

	if missing := missingBillingFields(req.BillingDetails); len(missing) > 0 {
		return apperr.Validation("Missing required billing fields: %s", strings.Join(missing, ", "))
	}

	amount, err := formatAmount(req.BillingDetails.Amount)
	if err != nil {
		return apperr.Validation("Invalid amount: %s", req.BillingDetails.Amount)
	}

	order := &models.Order{
		OrderID: req.OrderID,
		CustomerDetails: models.CustomerDetails{
			FirstName:    req.BillingDetails.FirstName,
			LastName:     req.BillingDetails.LastName,
			EmailID:      req.BillingDetails.EmailID,
			MobileNumber: req.BillingDetails.PhoneNumber,
			City:         req.BillingDetails.City,
			State:        req.BillingDetails.State,
			Country:      req.BillingDetails.Country,
			Address:      req.BillingDetails.Address,
			PinCode:      req.BillingDetails.PinCode,
		},
		OrderDetails: models.OrderDetails{
			Amount:   amount,
			Currency: req.BillingDetails.Currency,
			Item:     req.BillingDetails.Item,
		},
		PaymentProvider: req.PaymentProvider,
		PaymentStatus:   models.StatusPending,
	}

	if err := s.store.UpsertBilling(ctx, order); err != nil {
		return err
	}

	util.OrdersBilledTotal.Inc()
	s.logger.Info("Billing details saved",
		zap.String("order_id", req.OrderID),
		zap.String("provider", req.PaymentProvider),
		zap.String("amount", amount),
		zap.String("currency", req.BillingDetails.Currency))

	event := &models.OrderBilledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderBilled,
			Timestamp: time.Now(),
		},
		OrderID:         req.OrderID,
		Item:            order.OrderDetails.Item,
		Amount:          amount,
		Currency:        order.OrderDetails.Currency,
		PaymentProvider: req.PaymentProvider,
		CustomerName:    order.CustomerDetails.FullName(),
		CustomerEmail:   order.CustomerDetails.EmailID,
		CustomerPhone:   order.CustomerDetails.MobileNumber,
		Location: fmt.Sprintf("%s, %s, %s",
			order.CustomerDetails.City, order.CustomerDetails.State, order.CustomerDetails.Country),
	}

	if err := s.events.PublishOrderBilled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderBilled event, sending alert directly",
			zap.String("order_id", req.OrderID),
			zap.Error(err))
		if err := s.notifier.NewOrder(ctx, req.OrderID, notify.NewOrderFromOrder(order)); err != nil {
			s.logger.Error("New-order notification failed",
				zap.String("order_id", req.OrderID),
				zap.Error(err))
		}
	}

	return nil
}

// ValidateDiscountCode resolves a discount code across every product's
// currency maps.
func (s *CheckoutService) ValidateDiscountCode(ctx context.Context, code string) (*models.DiscountMatch, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.ValidateDiscountCode")
	defer span.End()

	if code == "" {
		return nil, apperr.Validation("Discount code is required")
	}

	match, err := s.store.FindDiscountCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if match == nil {
		util.DiscountLookupsTotal.WithLabelValues("invalid").Inc()
		return nil, apperr.NotFound("Invalid discount code")
	}

	util.DiscountLookupsTotal.WithLabelValues("valid").Inc()
	return match, nil
}

// formatAmount parses a decimal amount and renders it with exactly two
// places, the form the ledger and the provider both expect.
func formatAmount(amount json.Number) (string, error) {
	value, err := strconv.ParseFloat(amount.String(), 64)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return strconv.FormatFloat(value, 'f', 2, 64), nil
}
