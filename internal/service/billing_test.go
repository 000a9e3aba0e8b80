package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-service/internal/apperr"
	"checkout-service/internal/models"
)

func billingInput() *BillingInput {
	return &BillingInput{
		FirstName:   "Ravi",
		LastName:    "Sharma",
		EmailID:     "ravi@example.com",
		PhoneNumber: "+911234567890",
		City:        "Pune",
		State:       "MH",
		Country:     "India",
		Amount:      "49.9",
		Currency:    "USD",
		Item:        "Signal Copier",
	}
}

func TestSaveBillingDetails(t *testing.T) {
	env := newTestEnv()

	err := env.svc.SaveBillingDetails(context.Background(), &SaveBillingRequest{
		OrderID:         "QTT-10",
		BillingDetails:  billingInput(),
		PaymentProvider: models.ProviderPayPal,
	})
	require.NoError(t, err)

	stored := env.store.orders["QTT-10"]
	require.NotNil(t, stored)
	assert.Equal(t, models.StatusPending, stored.PaymentStatus)
	assert.Equal(t, "49.90", stored.OrderDetails.Amount)
	assert.Equal(t, "India", stored.CustomerDetails.Country)

	require.Len(t, env.events.billed, 1)
	assert.Equal(t, "QTT-10", env.events.billed[0].OrderID)
	assert.Equal(t, "Ravi Sharma", env.events.billed[0].CustomerName)
}

func TestSaveBillingDetailsMissingCountry(t *testing.T) {
	env := newTestEnv()
	billing := billingInput()
	billing.Country = ""

	err := env.svc.SaveBillingDetails(context.Background(), &SaveBillingRequest{
		OrderID:         "QTT-11",
		BillingDetails:  billing,
		PaymentProvider: models.ProviderPayPal,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "country")

	kind, _ := apperr.KindOf(err)
	assert.Equal(t, apperr.KindValidation, kind)

	// nothing was written
	assert.Zero(t, env.store.upserts)
	assert.Empty(t, env.events.billed)
}

func TestSaveBillingDetailsInvalidAmount(t *testing.T) {
	env := newTestEnv()
	billing := billingInput()
	billing.Amount = "not-a-number"

	err := env.svc.SaveBillingDetails(context.Background(), &SaveBillingRequest{
		OrderID:         "QTT-12",
		BillingDetails:  billing,
		PaymentProvider: models.ProviderUPI,
	})
	require.Error(t, err)

	kind, _ := apperr.KindOf(err)
	assert.Equal(t, apperr.KindValidation, kind)
	assert.Zero(t, env.store.upserts)
}

func TestSaveBillingDetailsNotifiesDirectlyWhenPublishFails(t *testing.T) {
	env := newTestEnv()
	env.events.publishErr = errors.New("broker down")

	err := env.svc.SaveBillingDetails(context.Background(), &SaveBillingRequest{
		OrderID:         "QTT-13",
		BillingDetails:  billingInput(),
		PaymentProvider: models.ProviderWise,
	})
	require.NoError(t, err)

	require.Len(t, env.notifier.newOrders, 1)
	assert.Equal(t, "QTT-13", env.notifier.newOrders[0])
}

func TestValidateDiscountCode(t *testing.T) {
	env := newTestEnv()
	env.store.discounts = []models.DiscountCodes{
		{
			ProductID: "signal-copier",
			INR:       models.CurrencyMap{"DIWALI50": 50},
			USD:       models.CurrencyMap{"LAUNCH20": 20},
		},
	}

	match, err := env.svc.ValidateDiscountCode(context.Background(), "LAUNCH20")
	require.NoError(t, err)
	assert.Equal(t, 20.0, match.Value)
	assert.Equal(t, "signal-copier", match.Product)
	assert.Equal(t, "USD", match.Currency)

	match, err = env.svc.ValidateDiscountCode(context.Background(), "DIWALI50")
	require.NoError(t, err)
	assert.Equal(t, "INR", match.Currency)
}

func TestValidateDiscountCodeNotFound(t *testing.T) {
	env := newTestEnv()
	env.store.discounts = []models.DiscountCodes{
		{ProductID: "signal-copier", USD: models.CurrencyMap{"LAUNCH20": 20}},
	}

	_, err := env.svc.ValidateDiscountCode(context.Background(), "NOPE")
	require.Error(t, err)

	kind, _ := apperr.KindOf(err)
	assert.Equal(t, apperr.KindNotFound, kind)
}

func TestValidateDiscountCodeMissing(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.ValidateDiscountCode(context.Background(), "")
	require.Error(t, err)

	kind, _ := apperr.KindOf(err)
	assert.Equal(t, apperr.KindValidation, kind)
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"49.9", "49.90"},
		{"100", "100.00"},
		{"0.5", "0.50"},
		{"1234.567", "1234.57"},
	}

	for _, tc := range cases {
		got, err := formatAmount(json.Number(tc.in))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := formatAmount(json.Number("abc"))
	assert.Error(t, err)
}
