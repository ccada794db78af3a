package pricing

import "math"

// Policy holds the merchant's shipping and tax configuration.
// All monetary values are in cents.
type Policy struct {
	FlatFeeCents       int64   // shipping fee charged below the free threshold
	FreeThresholdCents int64   // items total at/above which shipping is free
	TaxRate            float64 // e.g. 0.15 for 15%
}

// Amounts is the authoritative price breakdown of a cart. These four fields
// are the only source of truth for an order's prices; caller-supplied values
// are never trusted.
type Amounts struct {
	ItemsCents    int64
	ShippingCents int64
	TaxCents      int64
	TotalCents    int64
}

type Item struct {
	UnitPriceCents int64
	Quantity       int
}

func (p Policy) ItemsPrice(items []Item) int64 {
	var total int64
	for _, item := range items {
		total += item.UnitPriceCents * int64(item.Quantity)
	}
	return total
}

func (p Policy) Shipping(itemsCents int64) int64 {
	if itemsCents >= p.FreeThresholdCents {
		return 0
	}
	return p.FlatFeeCents
}

// Tax rounds half-up to a whole cent.
func (p Policy) Tax(itemsCents int64) int64 {
	return int64(math.Floor(float64(itemsCents)*p.TaxRate + 0.5))
}

// Quote computes the full breakdown for a cart snapshot.
func (p Policy) Quote(items []Item) Amounts {
	itemsCents := p.ItemsPrice(items)
	shipping := p.Shipping(itemsCents)
	tax := p.Tax(itemsCents)
	return Amounts{
		ItemsCents:    itemsCents,
		ShippingCents: shipping,
		TaxCents:      tax,
		TotalCents:    itemsCents + shipping + tax,
	}
}

// Dollars converts cents to a 2-decimal dollar amount for API responses.
func Dollars(cents int64) float64 {
	return float64(cents) / 100
}

// Cents converts a dollar amount to whole cents, rounding half-up.
func Cents(dollars float64) int64 {
	return int64(math.Floor(dollars*100 + 0.5))
}
