package coupon

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/safar/go-pos-register/internal/models"
)

type Reason string

const (
	ReasonUsageExceeded Reason = "usage_exceeded"
	ReasonExpired       Reason = "expired"
	ReasonBelowMinimum  Reason = "below_minimum"
)

// RejectedError is returned by Validate when a coupon cannot be applied.
type RejectedError struct {
	Code   string
	Reason Reason
	// Minimum is set for ReasonBelowMinimum.
	Minimum decimal.Decimal
}

func (e *RejectedError) Error() string {
	switch e.Reason {
	case ReasonUsageExceeded:
		return fmt.Sprintf("coupon %s has reached its usage limit", e.Code)
	case ReasonExpired:
		return fmt.Sprintf("coupon %s has expired", e.Code)
	case ReasonBelowMinimum:
		return fmt.Sprintf("coupon %s requires a minimum order of %s", e.Code, e.Minimum.StringFixed(2))
	default:
		return fmt.Sprintf("coupon %s rejected", e.Code)
	}
}

// IsRejected reports whether err is a coupon rejection, and returns the reason.
func IsRejected(err error) (Reason, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Reason, true
	}
	return "", false
}

// Validate checks usage limit, expiry and minimum amount, in that order.
func Validate(c models.Coupon, subtotal decimal.Decimal, now time.Time) error {
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return &RejectedError{Code: c.Code, Reason: ReasonUsageExceeded}
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
		return &RejectedError{Code: c.Code, Reason: ReasonExpired}
	}
	if c.MinimumAmount != nil && subtotal.LessThan(*c.MinimumAmount) {
		return &RejectedError{Code: c.Code, Reason: ReasonBelowMinimum, Minimum: *c.MinimumAmount}
	}
	return nil
}

// Find looks a coupon up by code, case-insensitively.
func Find(coupons []models.Coupon, code string) (models.Coupon, bool) {
	code = strings.TrimSpace(code)
	for _, c := range coupons {
		if strings.EqualFold(c.Code, code) {
			return c, true
		}
	}
	return models.Coupon{}, false
}

// Describe renders the short label shown next to a coupon in pickers.
func Describe(c models.Coupon, currency string) string {
	amount := c.Amount.Round(0).String()
	switch c.Kind {
	case models.CouponPercent:
		return amount + "% off"
	case models.CouponFixedCart:
		return currency + amount + " off cart"
	case models.CouponFixedProduct:
		return currency + amount + " off product"
	default:
		return amount + " discount"
	}
}
