// Package pricing derives sale totals from cart lines, discount state and
// ancillary charges. Compute is a pure function.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/safar/go-pos-register/internal/models"
)

var hundred = decimal.NewFromInt(100)

type Totals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	ChargesTotal decimal.Decimal `json:"charges_total"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
}

func Compute(lines []models.CartLine, discount models.DiscountState, charges models.Charges) Totals {
	subtotal := Subtotal(lines)
	discountAmount := DiscountAmount(subtotal, len(lines), discount)
	chargesTotal := ChargesTotal(charges)

	return Totals{
		Subtotal:     subtotal,
		Discount:     discountAmount,
		ChargesTotal: chargesTotal,
		GrandTotal:   subtotal.Sub(discountAmount).Add(chargesTotal),
	}
}

func Subtotal(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal())
	}
	return total
}

// DiscountAmount applies the active coupon if there is one, otherwise the
// manual discount, and clamps the result to [0, subtotal].
func DiscountAmount(subtotal decimal.Decimal, distinctLines int, discount models.DiscountState) decimal.Decimal {
	var raw decimal.Decimal
	if discount.Coupon != nil {
		raw = couponDiscount(subtotal, distinctLines, *discount.Coupon)
	} else {
		raw = manualDiscount(subtotal, discount.Manual)
	}

	if raw.GreaterThan(subtotal) {
		raw = subtotal
	}
	if raw.IsNegative() {
		return decimal.Zero
	}
	return raw
}

func couponDiscount(subtotal decimal.Decimal, distinctLines int, c models.Coupon) decimal.Decimal {
	switch c.Kind {
	case models.CouponPercent:
		return subtotal.Mul(c.Amount).Div(hundred)
	case models.CouponFixedCart:
		return c.Amount
	case models.CouponFixedProduct:
		// per distinct line, not per unit
		return c.Amount.Mul(decimal.NewFromInt(int64(distinctLines)))
	default:
		return decimal.Zero
	}
}

func manualDiscount(subtotal decimal.Decimal, m models.ManualDiscount) decimal.Decimal {
	if m.Kind == models.DiscountPercent {
		return subtotal.Mul(m.Value).Div(hundred)
	}
	return m.Value
}

// ChargesTotal sums the three charge fields; negative values count as zero.
func ChargesTotal(c models.Charges) decimal.Decimal {
	return nonNegative(c.Alteration).Add(nonNegative(c.Courier)).Add(nonNegative(c.Other))
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
