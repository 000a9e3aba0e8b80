package store

import (
	"context"

	"checkout-service/internal/apperr"
	"checkout-service/internal/models"
)

// FindDiscountCode resolves a code by scanning every product's INR map
// and then its USD map, in product order. Returns nil when the code is
// not present anywhere.
func (s *Store) FindDiscountCode(ctx context.Context, code string) (*models.DiscountMatch, error) {
	var docs []models.DiscountCodes
	err := s.db.SelectContext(ctx, &docs,
		"SELECT product_id, inr, usd FROM discount_codes ORDER BY product_id")
	if err != nil {
		return nil, apperr.Store("failed to read discount codes", err)
	}

	for _, doc := range docs {
		if value, ok := doc.INR[code]; ok {
			return &models.DiscountMatch{Value: value, Product: doc.ProductID, Currency: "INR"}, nil
		}
		if value, ok := doc.USD[code]; ok {
			return &models.DiscountMatch{Value: value, Product: doc.ProductID, Currency: "USD"}, nil
		}
	}

	return nil, nil
}
