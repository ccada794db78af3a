package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testPolicy = Policy{FlatFeeCents: 500, FreeThresholdCents: 10000, TaxRate: 0.10}

func TestQuote(t *testing.T) {
	items := []Item{
		{UnitPriceCents: 1000, Quantity: 2},
		{UnitPriceCents: 500, Quantity: 1},
	}

	amounts := testPolicy.Quote(items)

	assert.Equal(t, int64(2500), amounts.ItemsCents)
	assert.Equal(t, int64(500), amounts.ShippingCents)
	assert.Equal(t, int64(250), amounts.TaxCents)
	assert.Equal(t, int64(3250), amounts.TotalCents)
}

func TestQuoteTotalIsSumOfParts(t *testing.T) {
	carts := [][]Item{
		{{UnitPriceCents: 1, Quantity: 1}},
		{{UnitPriceCents: 999, Quantity: 3}, {UnitPriceCents: 12345, Quantity: 2}},
		{{UnitPriceCents: 10000, Quantity: 1}},
		{{UnitPriceCents: 333, Quantity: 7}},
	}
	for _, cart := range carts {
		amounts := testPolicy.Quote(cart)
		assert.Equal(t, amounts.ItemsCents+amounts.ShippingCents+amounts.TaxCents, amounts.TotalCents)
	}
}

func TestShippingFreeAtThreshold(t *testing.T) {
	assert.Equal(t, int64(500), testPolicy.Shipping(9999))
	assert.Equal(t, int64(0), testPolicy.Shipping(10000))
	assert.Equal(t, int64(0), testPolicy.Shipping(10001))
}

func TestTaxRoundsHalfUp(t *testing.T) {
	// 15% of $0.03 = 0.45 cents, rounds down; 15% of $0.10 = 1.5 cents, rounds up.
	p := Policy{TaxRate: 0.15}
	assert.Equal(t, int64(0), p.Tax(3))
	assert.Equal(t, int64(2), p.Tax(10))
	assert.Equal(t, int64(375), p.Tax(2500))
}

func TestDollarsCents(t *testing.T) {
	assert.Equal(t, 32.50, Dollars(3250))
	assert.Equal(t, int64(3250), Cents(32.50))
	assert.Equal(t, int64(1999), Cents(19.99))
}
