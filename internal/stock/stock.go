// Package stock computes how many more units of a product can be put in a
// cart under the product's stock policy.
package stock

import (
	"math"

	"github.com/safar/go-pos-register/internal/models"
)

// Unlimited is returned when the product does not track stock.
const Unlimited = math.MaxInt

// Remaining returns the purchasable quantity left for product (and variation)
// given the lines already in the cart. The result is never negative.
func Remaining(product models.Product, variation *models.Variation, lines []models.CartLine) int {
	switch product.StockPolicy {
	case models.StockPerVariation:
		if variation == nil || variation.StockQuantity == nil {
			return Unlimited
		}
		key := models.KeyFor(product, variation)
		return clamp(*variation.StockQuantity - quantityFor(lines, func(l models.CartLine) bool {
			return l.Key() == key
		}))

	case models.StockPerProduct:
		if product.StockQuantity == nil {
			return Unlimited
		}
		return clamp(*product.StockQuantity - quantityFor(lines, func(l models.CartLine) bool {
			return l.Product.ID == product.ID
		}))

	default:
		return Unlimited
	}
}

// InCart sums the quantity of every line for product, across variations.
func InCart(productID int64, lines []models.CartLine) int {
	return quantityFor(lines, func(l models.CartLine) bool {
		return l.Product.ID == productID
	})
}

func quantityFor(lines []models.CartLine, match func(models.CartLine) bool) int {
	total := 0
	for _, l := range lines {
		if match(l) {
			total += l.Quantity
		}
	}
	return total
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
