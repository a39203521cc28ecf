package services

import (
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

const (
	DefaultFreeShippingThreshold = 500000
	DefaultShippingFee           = 30000
)

// ShippingPolicy charges a flat fee unless the subtotal is strictly above the
// free-shipping threshold.
type ShippingPolicy struct {
	FreeThreshold decimal.Decimal
	FlatFee       decimal.Decimal
}

func NewShippingPolicy(threshold, fee float64) ShippingPolicy {
	return ShippingPolicy{
		FreeThreshold: decimal.NewFromFloat(threshold),
		FlatFee:       decimal.NewFromFloat(fee),
	}
}

func DefaultShippingPolicy() ShippingPolicy {
	return NewShippingPolicy(DefaultFreeShippingThreshold, DefaultShippingFee)
}

type Quote struct {
	Subtotal    float64
	ShippingFee float64
	Total       float64
}

func (p ShippingPolicy) Quote(items []models.OrderItem) Quote {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(lineAmount(item.UnitPrice, item.Quantity))
	}

	fee := p.FlatFee
	if subtotal.GreaterThan(p.FreeThreshold) {
		fee = decimal.Zero
	}

	return Quote{
		Subtotal:    subtotal.InexactFloat64(),
		ShippingFee: fee.InexactFloat64(),
		Total:       subtotal.Add(fee).InexactFloat64(),
	}
}

func lineAmount(unitPrice float64, quantity int) decimal.Decimal {
	return decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(quantity)))
}
