package sale_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"github.com/safar/go-pos-register/internal/coupon"
	"github.com/safar/go-pos-register/internal/models"
	"github.com/safar/go-pos-register/internal/sale"
)

type saleTestContext struct {
	sale     *sale.Sale
	products map[int64]models.Product
	err      error
}

func (c *saleTestContext) reset() {
	c.sale = nil
	c.products = make(map[int64]models.Product)
	c.err = nil
}

func (c *saleTestContext) aNewSale() error {
	c.sale = sale.New(sale.Options{})
	return nil
}

func (c *saleTestContext) aProductPricedWithUnlimitedStock(id int64, price int) error {
	c.products[id] = models.Product{ID: id, Price: decimal.NewFromInt(int64(price))}
	return nil
}

func (c *saleTestContext) aProductPricedWithSharedStock(id int64, price, units int) error {
	c.products[id] = models.Product{
		ID:            id,
		Price:         decimal.NewFromInt(int64(price)),
		StockPolicy:   models.StockPerProduct,
		StockQuantity: &units,
	}
	return nil
}

func (c *saleTestContext) iAddProductTimes(id int64, times int) error {
	return c.addTimes(id, nil, times)
}

func (c *saleTestContext) iAddProductSizeTimes(id, size int64, times int) error {
	return c.addTimes(id, &models.Variation{ID: size, Attribute: "size"}, times)
}

func (c *saleTestContext) addTimes(id int64, variation *models.Variation, times int) error {
	product, ok := c.products[id]
	if !ok {
		return fmt.Errorf("unknown product %d", id)
	}
	for i := 0; i < times; i++ {
		if _, err := c.sale.AddItem(product, variation); err != nil {
			return err
		}
	}
	return nil
}

func (c *saleTestContext) addingProductSizeFailsWith(id, size int64, message string) error {
	err := c.iAddProductSizeTimes(id, size, 1)
	if err == nil {
		return fmt.Errorf("expected %q, add succeeded", message)
	}
	if err.Error() != message {
		return fmt.Errorf("expected %q, got %q", message, err.Error())
	}
	return nil
}

func (c *saleTestContext) iSetTheAlterationChargeTo(amount int) error {
	return c.sale.SetCharges(models.Charges{Alteration: decimal.NewFromInt(int64(amount))})
}

func (c *saleTestContext) iSetAManualDiscountOf(kind string, value int) error {
	return c.sale.SetManualDiscount(models.DiscountKind(kind), decimal.NewFromInt(int64(value)))
}

func (c *saleTestContext) iApplyACouponWorthWithMinimum(kind, code string, amount, minimum int) error {
	floor := decimal.NewFromInt(int64(minimum))
	c.err = c.sale.ApplyCoupon(models.Coupon{
		Code:          code,
		Kind:          models.CouponKind(kind),
		Amount:        decimal.NewFromInt(int64(amount)),
		MinimumAmount: &floor,
	})
	return nil
}

func (c *saleTestContext) iClearTheCoupon() error {
	c.sale.ClearCoupon()
	return nil
}

func (c *saleTestContext) theCouponIsAccepted() error {
	if c.err != nil {
		return fmt.Errorf("expected coupon to be accepted, got %v", c.err)
	}
	return nil
}

func (c *saleTestContext) theCouponIsRejectedWithReason(reason string) error {
	got, ok := coupon.IsRejected(c.err)
	if !ok {
		return fmt.Errorf("expected coupon rejection, got %v", c.err)
	}
	if string(got) != reason {
		return fmt.Errorf("expected reason %q, got %q", reason, got)
	}
	return nil
}

func (c *saleTestContext) amountIs(name string, pick func(s sale.Snapshot) decimal.Decimal) func(int) error {
	return func(want int) error {
		got := pick(c.sale.Snapshot())
		if !got.Equal(decimal.NewFromInt(int64(want))) {
			return fmt.Errorf("expected %s %d, got %s", name, want, got)
		}
		return nil
	}
}

func (c *saleTestContext) theCartHasLines(n int) error {
	if got := len(c.sale.Snapshot().Lines); got != n {
		return fmt.Errorf("expected %d cart lines, got %d", n, got)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &saleTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^a new sale$`, tc.aNewSale)
	ctx.Step(`^a product (\d+) priced (\d+) with unlimited stock$`, tc.aProductPricedWithUnlimitedStock)
	ctx.Step(`^a product (\d+) priced (\d+) with (\d+) units shared across sizes$`, tc.aProductPricedWithSharedStock)

	// When steps
	ctx.Step(`^I add product (\d+) to the cart (\d+) times$`, tc.iAddProductTimes)
	ctx.Step(`^I add product (\d+) size (\d+) to the cart (\d+) times$`, tc.iAddProductSizeTimes)
	ctx.Step(`^I set the alteration charge to (\d+)$`, tc.iSetTheAlterationChargeTo)
	ctx.Step(`^I set a "([^"]*)" manual discount of (\d+)$`, tc.iSetAManualDiscountOf)
	ctx.Step(`^I apply a "([^"]*)" coupon "([^"]*)" worth (\d+) with minimum (\d+)$`, tc.iApplyACouponWorthWithMinimum)
	ctx.Step(`^I clear the coupon$`, tc.iClearTheCoupon)

	// Then steps
	ctx.Step(`^the coupon is accepted$`, tc.theCouponIsAccepted)
	ctx.Step(`^the coupon is rejected with reason "([^"]*)"$`, tc.theCouponIsRejectedWithReason)
	ctx.Step(`^the subtotal is (\d+)$`, tc.amountIs("subtotal", func(s sale.Snapshot) decimal.Decimal { return s.Totals.Subtotal }))
	ctx.Step(`^the discount is (\d+)$`, tc.amountIs("discount", func(s sale.Snapshot) decimal.Decimal { return s.Totals.Discount }))
	ctx.Step(`^the charges total is (\d+)$`, tc.amountIs("charges total", func(s sale.Snapshot) decimal.Decimal { return s.Totals.ChargesTotal }))
	ctx.Step(`^the grand total is (\d+)$`, tc.amountIs("grand total", func(s sale.Snapshot) decimal.Decimal { return s.Totals.GrandTotal }))
	ctx.Step(`^the cart has (\d+) lines?$`, tc.theCartHasLines)
	ctx.Step(`^adding product (\d+) size (\d+) fails with "([^"]*)"$`, tc.addingProductSizeFailsWith)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
