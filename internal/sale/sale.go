// Package sale holds the state of the sale being rung up at the register:
// cart lines plus every field that is cleared together when a new sale
// starts. All methods are safe for concurrent use and each one is atomic.
package sale

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/safar/go-pos-register/internal/cart"
	"github.com/safar/go-pos-register/internal/coupon"
	"github.com/safar/go-pos-register/internal/models"
	"github.com/safar/go-pos-register/internal/pricing"
)

var (
	ErrConfirmationRequired = errors.New("starting a new sale discards the current one and must be confirmed")
	ErrNegativeCharge       = errors.New("charges must not be negative")
	ErrUnknownDiscountKind  = errors.New("unknown discount kind")
	ErrUnknownPayment       = errors.New("unknown payment method")
	ErrConflictingCustomer  = errors.New("cannot set and clear the customer at once")
)

type Options struct {
	DefaultOrderType    string
	DefaultMeasurements string
	Now                 func() time.Time
}

type Sale struct {
	mu sync.Mutex

	ledger        *cart.Ledger
	customer      *models.Customer
	notes         string
	measurements  string
	orderType     string
	charges       models.Charges
	discount      models.DiscountState
	paymentMethod string
	// set after a deferred checkout until the receipt is dismissed
	awaitingReceipt bool

	opts Options
}

// Snapshot is a consistent copy of the sale taken under its lock.
type Snapshot struct {
	Lines         []models.CartLine    `json:"lines"`
	Customer      *models.Customer     `json:"customer"`
	Notes         string               `json:"notes"`
	Measurements  string               `json:"measurements"`
	OrderType     string               `json:"order_type"`
	Charges       models.Charges       `json:"charges"`
	Discount      models.DiscountState `json:"discount"`
	PaymentMethod string               `json:"payment_method,omitempty"`
	Totals        pricing.Totals       `json:"totals"`
	// AwaitingReceipt is true while a placed sale waits for its receipt to
	// be dismissed.
	AwaitingReceipt bool `json:"awaiting_dismiss"`
}

func New(opts Options) *Sale {
	if opts.DefaultOrderType == "" {
		opts.DefaultOrderType = models.DefaultOrderType
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Sale{ledger: cart.NewLedger(), opts: opts}
	s.resetLocked()
	return s
}

func (s *Sale) AddItem(product models.Product, variation *models.Variation) (models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Add(product, variation)
}

func (s *Sale) ChangeQuantity(index, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.ChangeQuantity(index, delta)
}

func (s *Sale) RemoveLine(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Remove(index)
}

// SetManualDiscount stores the manual discount. While a coupon is applied the
// value is kept but has no effect on totals.
func (s *Sale) SetManualDiscount(kind models.DiscountKind, value decimal.Decimal) error {
	if kind != models.DiscountFlat && kind != models.DiscountPercent {
		return fmt.Errorf("%w: %q", ErrUnknownDiscountKind, kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discount.Manual = models.ManualDiscount{Kind: kind, Value: value}
	return nil
}

// ApplyCoupon validates c against the current subtotal. On rejection the
// previous discount state is left as it was.
func (s *Sale) ApplyCoupon(c models.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subtotal := pricing.Subtotal(s.ledger.Lines())
	if err := coupon.Validate(c, subtotal, s.opts.Now()); err != nil {
		return err
	}
	s.discount.Coupon = &c
	return nil
}

// ClearCoupon reverts to the manual discount, which is still intact.
func (s *Sale) ClearCoupon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discount.Coupon = nil
}

func (s *Sale) SetCharges(c models.Charges) error {
	if c.Alteration.IsNegative() || c.Courier.IsNegative() || c.Other.IsNegative() {
		return ErrNegativeCharge
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charges = c
	return nil
}

// Details is a partial update of the sale's ancillary fields. Nil fields are
// left unchanged; ClearCustomer detaches the customer.
type Details struct {
	Customer      *models.Customer
	ClearCustomer bool
	Notes         *string
	Measurements  *string
	OrderType     *string
	PaymentMethod *string
}

// UpdateDetails applies d in one step. Nothing changes if d is invalid.
func (s *Sale) UpdateDetails(d Details) error {
	if d.Customer != nil && d.ClearCustomer {
		return ErrConflictingCustomer
	}
	if d.PaymentMethod != nil {
		if err := ValidatePaymentMethod(*d.PaymentMethod); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case d.ClearCustomer:
		s.customer = nil
	case d.Customer != nil:
		c := *d.Customer
		s.customer = &c
	}
	if d.Notes != nil {
		s.notes = *d.Notes
	}
	if d.Measurements != nil {
		s.measurements = *d.Measurements
	}
	if d.OrderType != nil && *d.OrderType != "" {
		s.orderType = *d.OrderType
	}
	if d.PaymentMethod != nil {
		s.paymentMethod = *d.PaymentMethod
	}
	return nil
}

func ValidatePaymentMethod(method string) error {
	switch method {
	case models.PaymentCash, models.PaymentUPICard:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownPayment, method)
}

// Reset starts a new sale. It is destructive, so the caller must pass
// confirmed=true once the cashier has agreed.
func (s *Sale) Reset(confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return nil
}

// Complete clears the sale after its order was placed. No confirmation is
// needed because nothing is lost.
func (s *Sale) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// MarkAwaitingReceipt records that the sale was placed and stays on screen
// until DismissReceipt.
func (s *Sale) MarkAwaitingReceipt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.awaitingReceipt = true
}

func (s *Sale) AwaitingReceipt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaitingReceipt
}

// DismissReceipt clears a sale that is waiting on its receipt and reports
// whether there was one. A sale started since is never touched.
func (s *Sale) DismissReceipt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.awaitingReceipt {
		return false
	}
	s.resetLocked()
	return true
}

func (s *Sale) resetLocked() {
	s.ledger.Clear()
	s.customer = nil
	s.notes = ""
	s.measurements = s.opts.DefaultMeasurements
	s.orderType = s.opts.DefaultOrderType
	s.charges = models.Charges{}
	s.discount = models.DiscountState{Manual: models.ManualDiscount{Kind: models.DiscountFlat}}
	s.paymentMethod = ""
	s.awaitingReceipt = false
}

func (s *Sale) Totals() pricing.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Compute(s.ledger.Lines(), s.discount, s.charges)
}

func (s *Sale) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.ledger.Lines()
	snap := Snapshot{
		Lines:         lines,
		Notes:         s.notes,
		Measurements:  s.measurements,
		OrderType:     s.orderType,
		Charges:       s.charges,
		Discount:      s.discount,
		PaymentMethod: s.paymentMethod,
		Totals:        pricing.Compute(lines, s.discount, s.charges),

		AwaitingReceipt: s.awaitingReceipt,
	}
	if s.customer != nil {
		c := *s.customer
		snap.Customer = &c
	}
	if s.discount.Coupon != nil {
		c := *s.discount.Coupon
		snap.Discount.Coupon = &c
	}
	return snap
}
