// Package checkout turns the current sale into a backend order.
package checkout

import (
	"encoding/json"

	"github.com/safar/go-pos-register/internal/models"
	"github.com/safar/go-pos-register/internal/sale"
)

const (
	DiscountSourceNone   = "none"
	DiscountSourceManual = "manual"
	DiscountSourceCoupon = "coupon"
)

// Compose builds the order payload from a sale snapshot. The discount carries
// the amount the register displayed, not the raw coupon or manual input.
func Compose(snap sale.Snapshot, paymentMethod string) models.OrderDraft {
	items := make([]models.DraftItem, 0, len(snap.Lines))
	for _, line := range snap.Lines {
		item := models.DraftItem{
			ProductID:  line.Product.ID,
			Quantity:   line.Quantity,
			Components: line.Product.Components,
		}
		if line.Variation != nil {
			item.VariationID = line.Variation.ID
		}
		if item.Components == nil {
			item.Components = []json.RawMessage{}
		}
		items = append(items, item)
	}

	draft := models.OrderDraft{
		Items:         items,
		Notes:         snap.Notes,
		Measurements:  snap.Measurements,
		OrderType:     snap.OrderType,
		Charges:       snap.Charges,
		PaymentMethod: paymentMethod,
		Discount:      composeDiscount(snap),
	}
	if snap.Customer != nil {
		c := *snap.Customer
		draft.Customer = &c
	}
	if snap.Discount.Coupon != nil {
		draft.CouponCode = snap.Discount.Coupon.Code
	}
	return draft
}

func composeDiscount(snap sale.Snapshot) models.DraftDiscount {
	amount := snap.Totals.Discount
	if !amount.IsPositive() {
		return models.DraftDiscount{Source: DiscountSourceNone, Amount: amount}
	}

	if c := snap.Discount.Coupon; c != nil {
		return models.DraftDiscount{
			Source:     DiscountSourceCoupon,
			Type:       string(c.Kind),
			Amount:     amount,
			CouponID:   c.ID,
			CouponCode: c.Code,
		}
	}
	return models.DraftDiscount{
		Source: DiscountSourceManual,
		Type:   string(snap.Discount.Manual.Kind),
		Amount: amount,
	}
}

// componentLines counts draft lines that carry component metadata.
func componentLines(draft models.OrderDraft) int {
	n := 0
	for _, item := range draft.Items {
		if len(item.Components) > 0 {
			n++
		}
	}
	return n
}
