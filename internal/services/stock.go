package services

import "storefront/internal/models"

// ValidateStock is a point-in-time check: it holds nothing, so callers that
// commit stock must do so with a conditional write.
func ValidateStock(requested int, product *models.Product) error {
	if requested > product.Stock {
		return &InsufficientStockError{
			ProductID: product.ID,
			Requested: requested,
			Available: product.Stock,
		}
	}
	return nil
}
