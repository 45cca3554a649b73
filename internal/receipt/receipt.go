// Package receipt builds printable slips from a canonical order. It refuses
// to build anything from an order that is missing what a slip must show.
package receipt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/safar/go-pos-register/internal/models"
)

var (
	ErrReceiptDataIncomplete = errors.New("order data is incomplete, receipt not printed")
	ErrUnknownVariant        = errors.New("unknown receipt variant")
)

type Variant string

const (
	VariantCustomer       Variant = "customer"
	VariantStore          Variant = "store"
	VariantAlterationSlip Variant = "alteration_slip"
)

func ParseVariant(s string) (Variant, error) {
	if s == "" {
		return VariantCustomer, nil
	}
	switch v := Variant(s); v {
	case VariantCustomer, VariantStore, VariantAlterationSlip:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

type Line struct {
	Name      string           `json:"name"`
	SKU       string           `json:"sku,omitempty"`
	Quantity  int              `json:"qty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Total     *decimal.Decimal `json:"total,omitempty"`
}

type Amount struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Slip is the content of one printed receipt. Sections that a variant does
// not print are left empty.
type Slip struct {
	Variant      Variant          `json:"variant"`
	Title        string           `json:"title"`
	OrderNumber  string           `json:"order_number"`
	CreatedAt    time.Time        `json:"created_at"`
	CustomerName string           `json:"customer_name,omitempty"`
	OrderType    string           `json:"order_type,omitempty"`
	PaymentLabel string           `json:"payment"`
	Lines        []Line           `json:"lines,omitempty"`
	Subtotal     *decimal.Decimal `json:"subtotal,omitempty"`
	Discount     *decimal.Decimal `json:"discount,omitempty"`
	Charges      []Amount         `json:"charges,omitempty"`
	GrandTotal   *decimal.Decimal `json:"grand_total,omitempty"`
	Notes        string           `json:"notes,omitempty"`
	Measurements string           `json:"measurements,omitempty"`
}

// Validate reports why order cannot be printed, if it cannot.
func Validate(order *models.Order) error {
	switch {
	case order == nil:
		return fmt.Errorf("%w: no order", ErrReceiptDataIncomplete)
	case order.Totals == nil:
		return fmt.Errorf("%w: order %d has no totals", ErrReceiptDataIncomplete, order.ID)
	case order.Items == nil:
		return fmt.Errorf("%w: order %d has no items", ErrReceiptDataIncomplete, order.ID)
	case strings.TrimSpace(order.OrderNumber) == "":
		return fmt.Errorf("%w: order %d has no order number", ErrReceiptDataIncomplete, order.ID)
	}
	return nil
}

func Build(order *models.Order, variant Variant) (*Slip, error) {
	if err := Validate(order); err != nil {
		return nil, err
	}
	variant, err := ParseVariant(string(variant))
	if err != nil {
		return nil, err
	}

	store := variant == VariantStore
	alteration := variant == VariantAlterationSlip

	slip := &Slip{
		Variant:      variant,
		Title:        title(variant),
		OrderNumber:  order.OrderNumber,
		CreatedAt:    order.CreatedAt,
		CustomerName: order.CustomerName,
		OrderType:    order.OrderType,
		PaymentLabel: PaymentLabel(order.PaymentMethod),
		Notes:        strings.TrimSpace(order.Notes),
	}

	if m := strings.TrimSpace(order.Measurements); m != "" && m != "-" && variant != VariantCustomer {
		slip.Measurements = order.Measurements
	}

	// the alteration slip goes to the tailor: no items, no money
	if alteration {
		return slip, nil
	}

	slip.Lines = make([]Line, 0, len(order.Items))
	for _, item := range order.Items {
		line := Line{Name: item.Name, SKU: item.SKU, Quantity: item.Quantity}
		if store {
			price, total := item.UnitPrice, item.Total
			line.UnitPrice, line.Total = &price, &total
		}
		slip.Lines = append(slip.Lines, line)
	}

	if store {
		subtotal := order.Totals.Subtotal
		slip.Subtotal = &subtotal
		if d := discountAmount(order); d.IsPositive() {
			slip.Discount = &d
		}
	}

	if c := order.Charges; c != nil {
		for _, a := range []Amount{
			{Label: "Alteration", Amount: c.Alteration},
			{Label: "Courier", Amount: c.Courier},
			{Label: "Other", Amount: c.Other},
		} {
			if a.Amount.IsPositive() {
				slip.Charges = append(slip.Charges, a)
			}
		}
	}

	grand := order.Totals.GrandTotal
	slip.GrandTotal = &grand
	return slip, nil
}

func PaymentLabel(method string) string {
	switch method {
	case models.PaymentCash:
		return "Cash"
	case models.PaymentUPICard:
		return "UPI / Card"
	default:
		return "Not Recorded"
	}
}

func title(v Variant) string {
	switch v {
	case VariantAlterationSlip:
		return "Alteration Slip"
	case VariantStore:
		return "Sales Bill (Store Copy)"
	default:
		return "Sales Bill (Customer Copy)"
	}
}

func discountAmount(order *models.Order) decimal.Decimal {
	if order.DiscountDetails != nil {
		return order.DiscountDetails.Amount
	}
	return order.Totals.Discount
}
