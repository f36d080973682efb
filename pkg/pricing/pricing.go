// Package pricing computes order subtotals, shipping costs and totals.
//
// Every surface that shows or stores an order amount (the orders API, the
// quote endpoint, push notification summaries and the order watcher) prices
// through this package so the numbers never disagree.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Shipping rates in the store currency.
var (
	ExpressRate           = decimal.NewFromInt(10)
	StandardRate          = decimal.NewFromInt(5)
	FreeShippingThreshold = decimal.NewFromInt(100)
)

// Item is the priced part of a line item.
type Item struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// Totals is the result of pricing a set of line items.
type Totals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shippingCost"`
	Total        decimal.Decimal `json:"total"`
}

// IsExpress reports whether the shipping type asks for express delivery.
// A nil shipping type is never express.
func IsExpress(shippingType *string) bool {
	if shippingType == nil {
		return false
	}
	return strings.Contains(strings.ToLower(*shippingType), "express")
}

// Subtotal returns the sum of quantity * unit price across all items.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}

// ShippingCost returns the shipping cost for a subtotal. Express always
// costs ExpressRate, even above the free shipping threshold.
func ShippingCost(subtotal decimal.Decimal, shippingType *string) decimal.Decimal {
	switch {
	case IsExpress(shippingType):
		return ExpressRate
	case subtotal.GreaterThanOrEqual(FreeShippingThreshold):
		return decimal.Zero
	default:
		return StandardRate
	}
}

// Calculate prices the items. Quantities and prices are not validated here;
// callers reject negative values before they get this far.
func Calculate(items []Item, shippingType *string) Totals {
	subtotal := Subtotal(items)
	shipping := ShippingCost(subtotal, shippingType)

	return Totals{
		Subtotal:     subtotal.Round(2),
		ShippingCost: shipping.Round(2),
		Total:        subtotal.Add(shipping).Round(2),
	}
}

// FormatEUR renders an amount as "€X.XX".
func FormatEUR(amount decimal.Decimal) string {
	return "€" + amount.StringFixed(2)
}
