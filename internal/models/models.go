package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64             `json:"id"`
	SKU           string            `json:"sku,omitempty"`
	Name          string            `json:"name"`
	Type          string            `json:"type,omitempty"`
	Price         decimal.Decimal   `json:"price"`
	StockPolicy   StockPolicy       `json:"stock_policy"`
	StockQuantity *int              `json:"stock_quantity,omitempty"`
	Variations    []Variation       `json:"variations,omitempty"`
	Components    []json.RawMessage `json:"fms_components,omitempty"`
	Categories    []Category        `json:"categories,omitempty"`
}

// HasComponents reports whether the product carries opaque component metadata
// that must be forwarded with every order line.
func (p Product) HasComponents() bool {
	return len(p.Components) > 0
}

// Variation returns the variation with the given id, if the product lists it.
func (p Product) Variation(id int64) (*Variation, bool) {
	for i := range p.Variations {
		if p.Variations[i].ID == id {
			return &p.Variations[i], true
		}
	}
	return nil, false
}

type Variation struct {
	ID            int64  `json:"id"`
	Attribute     string `json:"attribute"`
	Option        string `json:"option"`
	StockQuantity *int   `json:"stock_quantity,omitempty"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

type Customer struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// LineKey identifies a cart line for merging. VariationID is 0 when the line
// has no variation.
type LineKey struct {
	ProductID   int64
	VariationID int64
}

type CartLine struct {
	Product   Product    `json:"product"`
	Variation *Variation `json:"variation,omitempty"`
	Quantity  int        `json:"quantity"`
}

func (l CartLine) Key() LineKey {
	return KeyFor(l.Product, l.Variation)
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func KeyFor(product Product, variation *Variation) LineKey {
	key := LineKey{ProductID: product.ID}
	if variation != nil {
		key.VariationID = variation.ID
	}
	return key
}

type Charges struct {
	Alteration decimal.Decimal `json:"alteration"`
	Courier    decimal.Decimal `json:"courier"`
	Other      decimal.Decimal `json:"other"`
}

type DiscountKind string

const (
	DiscountFlat    DiscountKind = "flat"
	DiscountPercent DiscountKind = "percent"
)

type ManualDiscount struct {
	Value decimal.Decimal `json:"value"`
	Kind  DiscountKind    `json:"kind"`
}

type CouponKind string

const (
	CouponPercent      CouponKind = "percent"
	CouponFixedCart    CouponKind = "fixed_cart"
	CouponFixedProduct CouponKind = "fixed_product"
)

func (k CouponKind) Valid() bool {
	switch k {
	case CouponPercent, CouponFixedCart, CouponFixedProduct:
		return true
	}
	return false
}

type Coupon struct {
	ID            int64            `json:"id"`
	Code          string           `json:"code"`
	Kind          CouponKind       `json:"discount_type"`
	Amount        decimal.Decimal  `json:"amount"`
	Description   string           `json:"description,omitempty"`
	MinimumAmount *decimal.Decimal `json:"minimum_amount,omitempty"`
	UsageLimit    *int             `json:"usage_limit,omitempty"`
	UsageCount    int              `json:"usage_count"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
}

// DiscountState holds the manual discount fields and the applied coupon.
// An applied coupon takes precedence without erasing the manual value.
type DiscountState struct {
	Manual ManualDiscount `json:"manual"`
	Coupon *Coupon        `json:"coupon,omitempty"`
}

type OrderDraft struct {
	Items         []DraftItem   `json:"items"`
	Customer      *Customer     `json:"customer"`
	CouponCode    string        `json:"couponCode"`
	Notes         string        `json:"notes"`
	Measurements  string        `json:"measurements"`
	OrderType     string        `json:"orderType"`
	Charges       Charges       `json:"charges"`
	Discount      DraftDiscount `json:"discount"`
	PaymentMethod string        `json:"paymentMethod"`
}

type DraftItem struct {
	ProductID   int64             `json:"product_id"`
	VariationID int64             `json:"variation_id"`
	Quantity    int               `json:"qty"`
	Components  []json.RawMessage `json:"fms_components"`
}

type DraftDiscount struct {
	Source     string          `json:"source"`
	Type       string          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	CouponID   int64           `json:"coupon_id,omitempty"`
	CouponCode string          `json:"coupon_code,omitempty"`
}

// Order is the canonical representation read back from the backend. Pointer
// and slice fields stay nil when the server omitted them so that receipts can
// refuse incomplete data.
type Order struct {
	ID              int64            `json:"id"`
	OrderNumber     string           `json:"order_number"`
	Status          string           `json:"status"`
	Items           []OrderItem      `json:"items"`
	Totals          *OrderTotals     `json:"totals"`
	Charges         *Charges         `json:"charges"`
	DiscountDetails *DiscountDetails `json:"discount_details"`
	CustomerName    string           `json:"customer_name"`
	PaymentMethod   string           `json:"payment_method"`
	OrderType       string           `json:"order_type"`
	Notes           string           `json:"notes"`
	Measurements    string           `json:"measurements"`
	CreatedAt       time.Time        `json:"created_at"`
}

type OrderItem struct {
	ProductID   int64           `json:"product_id"`
	VariationID int64           `json:"variation_id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku,omitempty"`
	Quantity    int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

type OrderTotals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	ChargesTotal decimal.Decimal `json:"chargesTotal"`
	GrandTotal   decimal.Decimal `json:"grandTotal"`
}

type DiscountDetails struct {
	Type       string          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	CouponCode string          `json:"coupon_code,omitempty"`
}

const (
	PaymentCash    = "cash"
	PaymentUPICard = "upi_card"
)

const DefaultOrderType = "Normal Sale"

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusRefunded   = "refunded"
	OrderStatusCancelled  = "cancelled"
)

// SaleRecord is the register's local journal entry for a placed order.
type SaleRecord struct {
	ID             int64           `json:"id"`
	TerminalID     string          `json:"terminal_id"`
	OrderID        int64           `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
	ComponentItems int             `json:"component_items"`
	PaymentMethod  string          `json:"payment_method"`
	CreatedAt      time.Time       `json:"created_at"`
}
