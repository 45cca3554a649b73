package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/safar/go-pos-register/internal/gateway"
	"github.com/safar/go-pos-register/internal/models"
)

const (
	defaultPageLimit = 20
	searchPageSize   = 100
)

type ProductQuery struct {
	Page     int
	Limit    int
	Category string
}

type ProductPage struct {
	Products []models.Product `json:"products"`
	Page     int              `json:"page"`
	HasMore  bool             `json:"has_more"`
}

func (c *Client) ListProducts(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageLimit
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.Limit))
	if q.Category != "" {
		params.Set("category", q.Category)
	}

	products, err := c.fetchProducts(ctx, "list products", params)
	if err != nil {
		return nil, err
	}
	return &ProductPage{
		Products: products,
		Page:     q.Page,
		HasMore:  len(products) == q.Limit,
	}, nil
}

func (c *Client) SearchProducts(ctx context.Context, query, category string) ([]models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Product{}, nil
	}

	params := url.Values{}
	params.Set("search", query)
	params.Set("per_page", strconv.Itoa(searchPageSize))
	if category != "" {
		params.Set("category", category)
	}
	return c.fetchProducts(ctx, "search products", params)
}

// LookupSKU resolves a scanned barcode or typed SKU.
func (c *Client) LookupSKU(ctx context.Context, code string) ([]models.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return []models.Product{}, nil
	}

	params := url.Values{}
	params.Set("sku", code)
	params.Set("limit", strconv.Itoa(defaultPageLimit))
	return c.fetchProducts(ctx, "lookup sku", params)
}

func (c *Client) fetchProducts(ctx context.Context, what string, params url.Values) ([]models.Product, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{
		Method:  http.MethodGet,
		Path:    "/products",
		Query:   params,
		Timeout: c.timeouts.Catalog,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}

	wire, err := decodeList[wireProduct](what, "data", resp.Body)
	if err != nil {
		return nil, err
	}
	return productsFromWire(what, wire)
}

func (c *Client) getWireProduct(ctx context.Context, id int64) (*wireProduct, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("/products/%d", id),
		Timeout: c.timeouts.Catalog,
	})
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}

	var wire wireProduct
	if err := decodeInto("get product", resp.Body, &wire); err != nil {
		return nil, err
	}
	return &wire, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	wire, err := c.getWireProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	product, err := wire.toModel()
	if err != nil {
		return nil, malformed("get product", err)
	}
	return &product, nil
}

// GetProductWithVariations loads a product together with its variations from
// fetcher, so that variation quantities take part in choosing the stock policy.
func (c *Client) GetProductWithVariations(ctx context.Context, id int64, fetcher VariationFetcher) (*models.Product, error) {
	wire, err := c.getWireProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	variations, err := fetcher.Variations(ctx, id)
	if err != nil {
		return nil, err
	}
	product, err := wire.toModelWith(variations)
	if err != nil {
		return nil, malformed("get product", err)
	}
	return &product, nil
}

func (c *Client) Variations(ctx context.Context, productID int64) ([]models.Variation, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("/products/%d/variations", productID),
		Timeout: c.timeouts.Catalog,
	})
	if err != nil {
		return nil, fmt.Errorf("get variations for product %d: %w", productID, err)
	}

	wire, err := decodeArray[wireVariation]("get variations", resp.Body)
	if err != nil {
		return nil, err
	}
	variations := make([]models.Variation, 0, len(wire))
	for _, w := range wire {
		v, err := w.toModel()
		if err != nil {
			return nil, malformed("get variations", err)
		}
		variations = append(variations, v)
	}
	return variations, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{
		Method:  http.MethodGet,
		Path:    "/categories",
		Timeout: c.timeouts.Catalog,
	})
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return decodeList[models.Category]("list categories", "data", resp.Body)
}
