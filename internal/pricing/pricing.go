// Package pricing is the single home of the checkout money math.
// The same numbers appear on the cart page, the checkout summary and the
// stored order, so everything funnels through Quote.
package pricing

import "math"

const (
	DeliveryFee       = 100.0
	TaxRate           = 0.12
	DiscountThreshold = 1000.0 // every ₱1000 of subtotal
	DiscountRate      = 0.20
)

// Quote is a full price breakdown for a given subtotal.
type Quote struct {
	Subtotal          float64 `json:"subtotal"`
	Discount          float64 `json:"discount"`
	SubtotalAfterDisc float64 `json:"subtotal_after_discount"`
	Tax               float64 `json:"tax"`
	DeliveryFee       float64 `json:"delivery_fee"`
	Total             float64 `json:"total"`
}

// Discount is a tiered flat rate: 20% of each full ₱1000 of subtotal.
// A ₱1999 cart earns the same ₱200 as a ₱1000 cart.
func Discount(subtotal float64) float64 {
	if subtotal <= 0 {
		return 0
	}
	tiers := math.Floor(subtotal / DiscountThreshold)
	return round2(tiers * DiscountThreshold * DiscountRate)
}

// Tax is 12% of the discounted subtotal.
func Tax(subtotal float64) float64 {
	return round2((subtotal - Discount(subtotal)) * TaxRate)
}

// Total is the discounted subtotal plus tax plus the flat delivery fee.
func Total(subtotal float64) float64 {
	after := subtotal - Discount(subtotal)
	return round2(after + Tax(subtotal) + DeliveryFee)
}

// QuoteFor computes the whole breakdown at once.
func QuoteFor(subtotal float64) Quote {
	discount := Discount(subtotal)
	after := round2(subtotal - discount)
	tax := round2(after * TaxRate)
	return Quote{
		Subtotal:          round2(subtotal),
		Discount:          discount,
		SubtotalAfterDisc: after,
		Tax:               tax,
		DeliveryFee:       DeliveryFee,
		Total:             round2(after + tax + DeliveryFee),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
