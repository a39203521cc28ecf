package handlers

import (
	"fmt"
	"math"
)

type priceUpdateInput struct {
	Price         *float64
	OldPrice      *float64
	ClearOldPrice bool
}

type priceUpdateResult struct {
	Price       float64
	OldPrice    *float64
	Discount    int
	SetOldPrice bool
}

// discountPercent derives the advertised discount from the crossed-out price.
func discountPercent(price float64, oldPrice *float64) int {
	if oldPrice == nil || *oldPrice <= 0 || price >= *oldPrice {
		return 0
	}
	return int(math.Round((*oldPrice - price) / *oldPrice * 100))
}

func validatePricing(price float64, oldPrice *float64) error {
	if price <= 0 {
		return fmt.Errorf("price must be greater than 0")
	}
	if oldPrice == nil {
		return nil
	}
	if *oldPrice <= price {
		return fmt.Errorf("oldPrice must be greater than price")
	}
	return nil
}

func resolvePriceUpdate(existingPrice float64, existingOldPrice *float64, input priceUpdateInput) (priceUpdateResult, error) {
	result := priceUpdateResult{
		Price:    existingPrice,
		OldPrice: existingOldPrice,
	}

	if input.Price != nil {
		result.Price = *input.Price
	}

	if input.ClearOldPrice {
		result.OldPrice = nil
		result.SetOldPrice = true
	} else if input.OldPrice != nil {
		old := *input.OldPrice
		result.OldPrice = &old
		result.SetOldPrice = true
	}

	if err := validatePricing(result.Price, result.OldPrice); err != nil {
		return priceUpdateResult{}, err
	}

	result.Discount = discountPercent(result.Price, result.OldPrice)
	return result, nil
}
