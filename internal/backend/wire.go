package backend

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/safar/go-pos-register/internal/models"
)

type wireProduct struct {
	ID            int64             `json:"id"`
	SKU           string            `json:"sku"`
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Price         *decimal.Decimal  `json:"price"`
	ManageStock   bool              `json:"manage_stock"`
	StockQuantity *int              `json:"stock_quantity"`
	StockPolicy   string            `json:"stock_policy"`
	Variations    []wireVariation   `json:"variations"`
	Components    []json.RawMessage `json:"fms_components"`
	Categories    []models.Category `json:"categories"`
}

type wireVariation struct {
	ID            int64             `json:"id"`
	Attributes    map[string]string `json:"attributes"`
	Size          string            `json:"size"`
	StockQuantity *int              `json:"stock_quantity"`
}

func (w wireProduct) toModel() (models.Product, error) {
	return w.toModelWith(nil)
}

// toModelWith fixes the stock policy at ingestion: an explicit stock_policy
// wins, otherwise it is inferred from where quantities are present. Variations
// fetched separately replace the embedded ones before the policy is decided.
func (w wireProduct) toModelWith(fetched []models.Variation) (models.Product, error) {
	if w.ID <= 0 {
		return models.Product{}, fmt.Errorf("product without id")
	}
	if w.Price == nil {
		return models.Product{}, fmt.Errorf("product %d without price", w.ID)
	}
	if w.Price.IsNegative() {
		return models.Product{}, fmt.Errorf("product %d has negative price %s", w.ID, w.Price)
	}

	variations := make([]models.Variation, 0, len(w.Variations))
	for _, wv := range w.Variations {
		v, err := wv.toModel()
		if err != nil {
			return models.Product{}, fmt.Errorf("product %d: %w", w.ID, err)
		}
		variations = append(variations, v)
	}
	if len(fetched) > 0 {
		variations = fetched
	}

	policy := models.InferStockPolicy(w.ManageStock, w.StockQuantity, variations)
	if w.StockPolicy != "" {
		parsed, err := models.ParseStockPolicy(w.StockPolicy)
		if err != nil {
			return models.Product{}, fmt.Errorf("product %d: %w", w.ID, err)
		}
		policy = parsed
	}

	return models.Product{
		ID:            w.ID,
		SKU:           w.SKU,
		Name:          w.Name,
		Type:          w.Type,
		Price:         *w.Price,
		StockPolicy:   policy,
		StockQuantity: w.StockQuantity,
		Variations:    variations,
		Components:    w.Components,
		Categories:    w.Categories,
	}, nil
}

func (w wireVariation) toModel() (models.Variation, error) {
	if w.ID <= 0 {
		return models.Variation{}, fmt.Errorf("variation without id")
	}
	v := models.Variation{ID: w.ID, StockQuantity: w.StockQuantity}
	switch {
	case len(w.Attributes) > 0:
		// attributes arrive as a map; pick deterministically
		names := make([]string, 0, len(w.Attributes))
		for name := range w.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)
		v.Attribute = names[0]
		v.Option = w.Attributes[names[0]]
	case w.Size != "":
		v.Attribute = "Size"
		v.Option = w.Size
	}
	return v, nil
}

func productsFromWire(what string, wire []wireProduct) ([]models.Product, error) {
	products := make([]models.Product, 0, len(wire))
	for _, w := range wire {
		p, err := w.toModel()
		if err != nil {
			return nil, malformed(what, err)
		}
		products = append(products, p)
	}
	return products, nil
}

type wireCustomer struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Billing   *struct {
		Phone string `json:"phone"`
	} `json:"billing"`
}

func (w wireCustomer) toModel() (models.Customer, error) {
	if w.ID <= 0 {
		return models.Customer{}, fmt.Errorf("customer without id")
	}
	phone := w.Phone
	if phone == "" && w.Billing != nil {
		phone = w.Billing.Phone
	}
	return models.Customer{
		ID:        w.ID,
		FirstName: w.FirstName,
		LastName:  w.LastName,
		Name:      strings.TrimSpace(w.FirstName + " " + w.LastName),
		Phone:     phone,
		Email:     w.Email,
	}, nil
}

type wireCoupon struct {
	ID            int64            `json:"id"`
	Code          string           `json:"code"`
	DiscountType  string           `json:"discount_type"`
	Amount        *decimal.Decimal `json:"amount"`
	Description   string           `json:"description"`
	MinimumAmount *decimal.Decimal `json:"minimum_amount"`
	UsageLimit    *int             `json:"usage_limit"`
	UsageCount    int              `json:"usage_count"`
	DateExpires   *string          `json:"date_expires"`
	ExpiresAt     *string          `json:"expires_at"`
}

func (w wireCoupon) toModel() (models.Coupon, error) {
	if w.Code == "" {
		return models.Coupon{}, fmt.Errorf("coupon %d without code", w.ID)
	}
	kind := models.CouponKind(w.DiscountType)
	if !kind.Valid() {
		return models.Coupon{}, fmt.Errorf("coupon %s has unknown discount type %q", w.Code, w.DiscountType)
	}
	if w.Amount == nil {
		return models.Coupon{}, fmt.Errorf("coupon %s without amount", w.Code)
	}

	c := models.Coupon{
		ID:          w.ID,
		Code:        w.Code,
		Kind:        kind,
		Amount:      *w.Amount,
		Description: w.Description,
		UsageLimit:  w.UsageLimit,
		UsageCount:  w.UsageCount,
	}
	// a zero minimum is the backend's way of saying "none"
	if w.MinimumAmount != nil && w.MinimumAmount.IsPositive() {
		c.MinimumAmount = w.MinimumAmount
	}

	expires := w.ExpiresAt
	if expires == nil {
		expires = w.DateExpires
	}
	if expires != nil && *expires != "" {
		t, err := parseBackendTime(*expires)
		if err != nil {
			return models.Coupon{}, fmt.Errorf("coupon %s: %w", w.Code, err)
		}
		c.ExpiresAt = &t
	}
	return c, nil
}

type wireCreatedOrder struct {
	Woo *struct {
		OrderID  int64 `json:"order_id"`
		FMSItems int   `json:"fms_items"`
	} `json:"woo"`
}
