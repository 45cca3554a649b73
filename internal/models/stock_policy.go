package models

import "fmt"

// StockPolicy selects how remaining stock is computed for a product. It is
// decided once when the product is decoded and never re-inferred later.
type StockPolicy int

const (
	StockUnlimited StockPolicy = iota
	// StockPerVariation tracks stock on each variation independently.
	StockPerVariation
	// StockPerProduct shares one stock quantity across all variations, e.g.
	// fabric meters cut into any size.
	StockPerProduct
)

func (p StockPolicy) String() string {
	switch p {
	case StockUnlimited:
		return "unlimited"
	case StockPerVariation:
		return "per_variation"
	case StockPerProduct:
		return "per_product"
	default:
		return fmt.Sprintf("StockPolicy(%d)", int(p))
	}
}

func ParseStockPolicy(s string) (StockPolicy, error) {
	switch s {
	case "unlimited":
		return StockUnlimited, nil
	case "per_variation":
		return StockPerVariation, nil
	case "per_product":
		return StockPerProduct, nil
	default:
		return StockUnlimited, fmt.Errorf("unknown stock policy %q", s)
	}
}

func (p StockPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *StockPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseStockPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// InferStockPolicy picks a policy from the shape of a backend product when
// the backend did not name one. Variation-level quantities win over a
// product-level quantity; nothing tracked means unlimited.
func InferStockPolicy(manageStock bool, productQty *int, variations []Variation) StockPolicy {
	for _, v := range variations {
		if v.StockQuantity != nil {
			return StockPerVariation
		}
	}
	if manageStock && productQty != nil {
		return StockPerProduct
	}
	return StockUnlimited
}
