package stock

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/safar/go-pos-register/internal/models"
)

func intPtr(n int) *int { return &n }

func TestRemainingUnlimited(t *testing.T) {
	product := models.Product{ID: 1, Price: decimal.NewFromInt(100)}
	lines := []models.CartLine{{Product: product, Quantity: 50}}

	assert.Equal(t, Unlimited, Remaining(product, nil, lines))
	assert.Equal(t, Unlimited, Remaining(product, &models.Variation{ID: 2, StockQuantity: intPtr(1)}, lines))
}

func TestRemainingPerVariation(t *testing.T) {
	small := models.Variation{ID: 10, Attribute: "size", Option: "S", StockQuantity: intPtr(3)}
	large := models.Variation{ID: 11, Attribute: "size", Option: "L", StockQuantity: intPtr(5)}
	untracked := models.Variation{ID: 12, Attribute: "size", Option: "XL"}
	product := models.Product{
		ID:          1,
		StockPolicy: models.StockPerVariation,
		Variations:  []models.Variation{small, large, untracked},
	}

	lines := []models.CartLine{
		{Product: product, Variation: &small, Quantity: 2},
		{Product: product, Variation: &large, Quantity: 1},
	}

	assert.Equal(t, 1, Remaining(product, &small, lines))
	assert.Equal(t, 4, Remaining(product, &large, lines))
	assert.Equal(t, Unlimited, Remaining(product, &untracked, lines))
	assert.Equal(t, Unlimited, Remaining(product, nil, lines))
}

func TestRemainingPerProductSharedAcrossVariations(t *testing.T) {
	small := models.Variation{ID: 10, Option: "S"}
	medium := models.Variation{ID: 11, Option: "M"}
	large := models.Variation{ID: 12, Option: "L"}
	product := models.Product{
		ID:            7,
		StockPolicy:   models.StockPerProduct,
		StockQuantity: intPtr(10),
	}
	other := models.Product{ID: 8, StockPolicy: models.StockPerProduct, StockQuantity: intPtr(1)}

	lines := []models.CartLine{
		{Product: product, Variation: &small, Quantity: 3},
		{Product: product, Variation: &medium, Quantity: 4},
		{Product: other, Quantity: 1},
	}

	for _, v := range []*models.Variation{&small, &medium, &large, nil} {
		assert.Equal(t, 3, Remaining(product, v, lines))
	}
	assert.Equal(t, 0, Remaining(other, nil, lines))
}

func TestRemainingNeverNegative(t *testing.T) {
	product := models.Product{ID: 1, StockPolicy: models.StockPerProduct, StockQuantity: intPtr(2)}
	lines := []models.CartLine{{Product: product, Quantity: 5}}

	assert.Equal(t, 0, Remaining(product, nil, lines))
}

func TestRemainingPerProductWithoutQuantity(t *testing.T) {
	product := models.Product{ID: 1, StockPolicy: models.StockPerProduct}
	assert.Equal(t, Unlimited, Remaining(product, nil, nil))
}

func TestInCart(t *testing.T) {
	a := models.Product{ID: 1}
	b := models.Product{ID: 2}
	lines := []models.CartLine{
		{Product: a, Variation: &models.Variation{ID: 1}, Quantity: 2},
		{Product: a, Variation: &models.Variation{ID: 2}, Quantity: 3},
		{Product: b, Quantity: 9},
	}
	assert.Equal(t, 5, InCart(1, lines))
	assert.Equal(t, 0, InCart(3, lines))
}
