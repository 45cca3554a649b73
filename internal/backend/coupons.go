package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/safar/go-pos-register/internal/coupon"
	"github.com/safar/go-pos-register/internal/gateway"
	"github.com/safar/go-pos-register/internal/models"
)

var (
	ErrCouponNotFound = errors.New("coupon not found")
	ErrInvalidCoupon  = errors.New("invalid coupon")
)

const couponListPageSize = 100

var hundred = decimal.NewFromInt(100)

type CouponInput struct {
	Code             string            `json:"code"`
	Kind             models.CouponKind `json:"discount_type"`
	Amount           decimal.Decimal   `json:"amount"`
	Description      string            `json:"description,omitempty"`
	IndividualUse    bool              `json:"individual_use"`
	ExcludeSaleItems bool              `json:"exclude_sale_items"`
	MinimumAmount    *decimal.Decimal  `json:"minimum_amount,omitempty"`
}

func (in CouponInput) Validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidCoupon)
	}
	if !in.Kind.Valid() {
		return fmt.Errorf("%w: unknown discount type %q", ErrInvalidCoupon, in.Kind)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidCoupon)
	}
	if in.Kind == models.CouponPercent && in.Amount.GreaterThan(hundred) {
		return fmt.Errorf("%w: percent amount cannot exceed 100", ErrInvalidCoupon)
	}
	if in.MinimumAmount != nil && in.MinimumAmount.IsNegative() {
		return fmt.Errorf("%w: minimum amount cannot be negative", ErrInvalidCoupon)
	}
	return nil
}

func (c *Client) ListCoupons(ctx context.Context, search string) ([]models.Coupon, error) {
	params := url.Values{}
	params.Set("page", "1")
	params.Set("per_page", strconv.Itoa(couponListPageSize))
	if search = strings.TrimSpace(search); search != "" {
		params.Set("search", search)
	}

	resp, err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/coupons",
		Query:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}

	wire, err := decodeList[wireCoupon]("list coupons", "data", resp.Body)
	if err != nil {
		return nil, err
	}
	coupons := make([]models.Coupon, 0, len(wire))
	for _, w := range wire {
		cp, err := w.toModel()
		if err != nil {
			return nil, malformed("list coupons", err)
		}
		coupons = append(coupons, cp)
	}
	return coupons, nil
}

func (c *Client) GetCoupon(ctx context.Context, id int64) (*models.Coupon, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/coupons/%d", id),
	})
	if err != nil {
		if gateway.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("get coupon %d: %w", id, ErrCouponNotFound)
		}
		return nil, fmt.Errorf("get coupon %d: %w", id, err)
	}
	return decodeCoupon("get coupon", resp.Body)
}

// FindCoupon looks a code up the way a cashier types it: case-insensitive,
// surrounding blanks ignored.
func (c *Client) FindCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	coupons, err := c.ListCoupons(ctx, code)
	if err != nil {
		return nil, err
	}
	found, ok := coupon.Find(coupons, code)
	if !ok {
		return nil, fmt.Errorf("find coupon %q: %w", strings.TrimSpace(code), ErrCouponNotFound)
	}
	return &found, nil
}

func (c *Client) CreateCoupon(ctx context.Context, in CouponInput) (*models.Coupon, error) {
	in.Code = strings.TrimSpace(in.Code)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	resp, err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/coupons",
		Body:   in,
	})
	if err != nil {
		return nil, fmt.Errorf("create coupon: %w", err)
	}
	return decodeCoupon("create coupon", resp.Body)
}

func decodeCoupon(what string, body []byte) (*models.Coupon, error) {
	var wire wireCoupon
	if err := decodeInto(what, body, &wire); err != nil {
		return nil, err
	}
	cp, err := wire.toModel()
	if err != nil {
		return nil, malformed(what, err)
	}
	return &cp, nil
}
