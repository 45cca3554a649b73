package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/safar/go-pos-register/internal/gateway"
	"github.com/safar/go-pos-register/internal/models"
	"github.com/safar/go-pos-register/internal/session"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sess := session.New(nil, zaptest.NewLogger(t))
	sess.Set(context.Background(), "token")

	gw, err := gateway.New(gateway.Config{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Logger:     zaptest.NewLogger(t),
	}, sess)
	require.NoError(t, err)

	return New(gw, Timeouts{Catalog: time.Second, Order: 2 * time.Second, Auth: time.Second})
}

func respond(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestListProductsFixesStockPolicy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Equal(t, "kurta", r.URL.Query().Get("category"))
		respond(w, http.StatusOK, `{"data": [
			{"id": 1, "name": "Plain", "price": "250.00"},
			{"id": 2, "name": "Fabric", "price": "1000", "manage_stock": true, "stock_quantity": 12,
			 "variations": [{"id": 21, "attributes": {"Size": "M"}}], "fms_components": [{"fabric": "linen"}]},
			{"id": 3, "name": "Sized", "price": 499.5,
			 "variations": [{"id": 31, "size": "L", "stock_quantity": 4}]}
		]}`)
	})
	c := newTestClient(t, mux)

	page, err := c.ListProducts(context.Background(), ProductQuery{Page: 2, Limit: 3, Category: "kurta"})
	require.NoError(t, err)
	require.Len(t, page.Products, 3)
	assert.True(t, page.HasMore)

	assert.Equal(t, models.StockUnlimited, page.Products[0].StockPolicy)
	assert.Equal(t, models.StockPerProduct, page.Products[1].StockPolicy)
	assert.True(t, page.Products[1].HasComponents())
	assert.Equal(t, "Size", page.Products[1].Variations[0].Attribute)
	assert.Equal(t, "M", page.Products[1].Variations[0].Option)
	assert.Equal(t, models.StockPerVariation, page.Products[2].StockPolicy)
	assert.True(t, page.Products[2].Price.Equal(decimal.RequireFromString("499.5")))
}

func TestExplicitStockPolicyWins(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/products/7", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"id": 7, "name": "Shirt", "price": "10", "stock_policy": "per_product",
			"stock_quantity": 5, "variations": [{"id": 70, "stock_quantity": 1}]}`)
	})
	c := newTestClient(t, mux)

	p, err := c.GetProduct(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, models.StockPerProduct, p.StockPolicy)
}

func TestGetProductWithVariationsDecidesPolicy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/products/9", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"id": 9, "name": "Sherwani", "type": "variable", "price": "300"}`)
	})
	mux.HandleFunc("/products/9/variations", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `[{"id": 91, "size": "M", "stock_quantity": 1}]`)
	})
	mux.HandleFunc("/products/7", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"id": 7, "name": "Shirt", "price": "10", "stock_policy": "per_product", "stock_quantity": 5}`)
	})
	mux.HandleFunc("/products/7/variations", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `[{"id": 70, "stock_quantity": 1}]`)
	})
	c := newTestClient(t, mux)
	cache := NewVariationCache(c, time.Minute, zaptest.NewLogger(t))

	plain, err := c.GetProduct(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, models.StockUnlimited, plain.StockPolicy)

	p, err := c.GetProductWithVariations(context.Background(), 9, cache)
	require.NoError(t, err)
	assert.Equal(t, models.StockPerVariation, p.StockPolicy)
	v, ok := p.Variation(91)
	require.True(t, ok)
	require.NotNil(t, v.StockQuantity)
	assert.Equal(t, 1, *v.StockQuantity)

	explicit, err := c.GetProductWithVariations(context.Background(), 7, cache)
	require.NoError(t, err)
	assert.Equal(t, models.StockPerProduct, explicit.StockPolicy)
	assert.Len(t, explicit.Variations, 1)
}

func TestMalformedResponses(t *testing.T) {
	cases := []struct {
		name string
		body string
		call func(c *Client) error
	}{
		{
			name: "missing envelope",
			body: `{"items": []}`,
			call: func(c *Client) error { _, err := c.SearchProducts(context.Background(), "shirt", ""); return err },
		},
		{
			name: "null envelope",
			body: `{"data": null}`,
			call: func(c *Client) error { _, err := c.ListCategories(context.Background()); return err },
		},
		{
			name: "product without price",
			body: `{"data": [{"id": 1, "name": "x"}]}`,
			call: func(c *Client) error { _, err := c.LookupSKU(context.Background(), "ABC"); return err },
		},
		{
			name: "create without woo",
			body: `{"order_id": 5}`,
			call: func(c *Client) error { _, err := c.CreateOrder(context.Background(), models.OrderDraft{}); return err },
		},
		{
			name: "unknown coupon type",
			body: `{"data": [{"id": 1, "code": "X", "discount_type": "bogo", "amount": "1"}]}`,
			call: func(c *Client) error { _, err := c.ListCoupons(context.Background(), ""); return err },
		},
		{
			name: "not json",
			body: `<html>`,
			call: func(c *Client) error { _, err := c.ListCustomers(context.Background(), 1, 10); return err },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
				respond(w, http.StatusOK, tc.body)
			})
			c := newTestClient(t, mux)
			assert.ErrorIs(t, tc.call(c), ErrMalformedResponse)
		})
	}
}

func TestEmptyListIsNotMalformed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/categories", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"data": []}`)
	})
	c := newTestClient(t, mux)

	categories, err := c.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, categories)
}

func TestLoginAndLogout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Password != "secret" {
			respond(w, http.StatusUnauthorized, `{"message": "Invalid credentials"}`)
			return
		}
		respond(w, http.StatusOK, `{"accessToken": "fresh"}`)
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusInternalServerError, `{}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	err := c.Login(ctx, Credentials{Username: "cashier", Password: "wrong"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, gateway.ErrAuthExpired)
	msg, _ := gateway.ServerMessage(err)
	assert.Equal(t, "Invalid credentials", msg)
	assert.Equal(t, "token", c.Gateway().Session().Token())

	require.NoError(t, c.Login(ctx, Credentials{Username: "cashier", Password: "secret"}))
	assert.Equal(t, "fresh", c.Gateway().Session().Token())

	assert.Error(t, c.Logout(ctx))
	assert.False(t, c.Gateway().Session().Authenticated())
}

func TestCreateAndFetchOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		var draft models.OrderDraft
		require.NoError(t, json.NewDecoder(r.Body).Decode(&draft))
		assert.Len(t, draft.Items, 1)
		respond(w, http.StatusCreated, `{"woo": {"order_id": 901, "fms_items": 2}}`)
	})
	mux.HandleFunc("/orders/901", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"id": 901, "order_number": "1042", "status": "processing",
			"items": [{"product_id": 1, "name": "Kurta", "qty": 1, "price": "1000", "total": "1000"}],
			"totals": {"subtotal": "1000", "discount": "0", "chargesTotal": "50", "grandTotal": "1050"}}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	created, err := c.CreateOrder(ctx, models.OrderDraft{Items: []models.DraftItem{{ProductID: 1, Quantity: 1}}})
	require.NoError(t, err)
	assert.Equal(t, int64(901), created.OrderID)
	assert.Equal(t, 2, created.ComponentItems)

	order, err := c.GetOrder(ctx, created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "1042", order.OrderNumber)
	require.NotNil(t, order.Totals)
	assert.True(t, order.Totals.GrandTotal.Equal(decimal.NewFromInt(1050)))
	assert.Nil(t, order.Charges)
}

func TestCreateOrderServerMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusUnprocessableEntity, `{"message": "Insufficient fabric"}`)
	})
	c := newTestClient(t, mux)

	_, err := c.CreateOrder(context.Background(), models.OrderDraft{})
	msg, ok := gateway.ServerMessage(err)
	require.True(t, ok)
	assert.Equal(t, "Insufficient fabric", msg)
}

func TestFindCoupon(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/coupons", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("search"))
		respond(w, http.StatusOK, `{"data": [
			{"id": 4, "code": "DIWALI10", "discount_type": "percent", "amount": "10",
			 "minimum_amount": "0.00", "usage_limit": 50, "usage_count": 3, "date_expires": "2026-11-30T00:00:00"}
		]}`)
	})
	c := newTestClient(t, mux)

	cp, err := c.FindCoupon(context.Background(), " diwali10 ")
	require.NoError(t, err)
	assert.Equal(t, models.CouponPercent, cp.Kind)
	assert.Nil(t, cp.MinimumAmount)
	require.NotNil(t, cp.UsageLimit)
	assert.Equal(t, 50, *cp.UsageLimit)
	require.NotNil(t, cp.ExpiresAt)
	assert.Equal(t, 2026, cp.ExpiresAt.Year())

	_, err = c.FindCoupon(context.Background(), "diwali10x")
	assert.ErrorIs(t, err, ErrCouponNotFound)
}

func TestCouponInputValidate(t *testing.T) {
	valid := CouponInput{Code: "X", Kind: models.CouponFixedCart, Amount: decimal.NewFromInt(5)}
	assert.NoError(t, valid.Validate())

	over := valid
	over.Kind = models.CouponPercent
	over.Amount = decimal.NewFromInt(150)
	assert.ErrorIs(t, over.Validate(), ErrInvalidCoupon)

	blank := valid
	blank.Code = "  "
	assert.ErrorIs(t, blank.Validate(), ErrInvalidCoupon)
}

func TestCustomerInputValidate(t *testing.T) {
	assert.ErrorIs(t, CustomerInput{Phone: "1"}.Validate(), ErrFirstNameRequired)
	assert.ErrorIs(t, CustomerInput{FirstName: "A"}.Validate(), ErrPhoneRequired)
	assert.ErrorIs(t, CustomerInput{FirstName: "A", Phone: "1", Email: "nope"}.Validate(), ErrInvalidEmail)
	assert.NoError(t, CustomerInput{FirstName: "A", Phone: "1", Email: "a@example.com"}.Validate())
}

type fetcherFunc func(ctx context.Context, productID int64) ([]models.Variation, error)

func (f fetcherFunc) Variations(ctx context.Context, productID int64) ([]models.Variation, error) {
	return f(ctx, productID)
}

func TestVariationCacheTTL(t *testing.T) {
	calls := 0
	fail := false
	cache := NewVariationCache(fetcherFunc(func(ctx context.Context, id int64) ([]models.Variation, error) {
		calls++
		if fail {
			return nil, errors.New("timeout")
		}
		return []models.Variation{{ID: id * 10}}, nil
	}), 5*time.Minute, zaptest.NewLogger(t))

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	_, err = cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	now = now.Add(5 * time.Minute)
	_, err = cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	cache.Invalidate(1)
	fail = true
	_, err = cache.Get(ctx, 1)
	assert.Error(t, err)
	assert.Equal(t, 3, calls)

	fail = false
	_, _ = cache.Get(ctx, 2)
	cache.InvalidateAll()
	_, _ = cache.Get(ctx, 2)
	assert.Equal(t, 5, calls)
}

type fakeSource struct {
	customers []models.Customer
	err       error
}

func (f *fakeSource) ListCustomers(ctx context.Context, page, limit int) ([]models.Customer, error) {
	return f.customers, f.err
}

type fakeCache struct {
	saved []models.Customer
}

func (f *fakeCache) SaveCustomers(ctx context.Context, customers []models.Customer) error {
	f.saved = customers
	return nil
}

func (f *fakeCache) LoadCustomers(ctx context.Context) ([]models.Customer, error) {
	return f.saved, nil
}

func TestCustomerDirectoryFallsBackToCache(t *testing.T) {
	source := &fakeSource{customers: []models.Customer{{ID: 1, Name: "Asha"}}}
	cache := &fakeCache{}
	dir := NewCustomerDirectory(source, cache, zaptest.NewLogger(t))
	ctx := context.Background()

	list, err := dir.List(ctx)
	require.NoError(t, err)
	assert.False(t, list.Stale)
	assert.Len(t, cache.saved, 1)

	source.err = gateway.ErrNetworkTimeout
	list, err = dir.List(ctx)
	require.NoError(t, err)
	assert.True(t, list.Stale)
	assert.Equal(t, "Asha", list.Customers[0].Name)

	source.err = gateway.ErrAuthExpired
	_, err = dir.List(ctx)
	assert.ErrorIs(t, err, gateway.ErrAuthExpired)
}
