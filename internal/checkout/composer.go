package checkout

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/safar/go-pos-register/internal/backend"
	"github.com/safar/go-pos-register/internal/models"
	"github.com/safar/go-pos-register/internal/sale"
)

type OrderService interface {
	CreateOrder(ctx context.Context, draft models.OrderDraft) (*backend.CreatedOrder, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
}

type Journal interface {
	RecordSale(ctx context.Context, rec models.SaleRecord) error
}

// ClearPolicy decides when a placed sale is wiped from the register.
type ClearPolicy string

const (
	ClearImmediate ClearPolicy = "immediate"
	// ClearDeferred keeps the sale on screen until the receipt is dismissed.
	ClearDeferred ClearPolicy = "deferred"
)

func ParseClearPolicy(s string) (ClearPolicy, error) {
	switch p := ClearPolicy(s); p {
	case ClearImmediate, ClearDeferred:
		return p, nil
	}
	return "", fmt.Errorf("unknown cart clear policy %q", s)
}

type Config struct {
	TerminalID  string
	ClearPolicy ClearPolicy
	Journal     Journal
	Logger      *zap.Logger
	Now         func() time.Time
}

type Composer struct {
	orders OrderService
	cfg    Config
}

// Result is what the register shows after a successful checkout. Order is
// always the re-fetched canonical order.
type Result struct {
	Order          *models.Order `json:"order"`
	ComponentItems int           `json:"component_items"`
	Notice         string        `json:"notice"`
	Cleared        bool          `json:"cleared"`
}

func NewComposer(orders OrderService, cfg Config) *Composer {
	if cfg.ClearPolicy == "" {
		cfg.ClearPolicy = ClearDeferred
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Composer{orders: orders, cfg: cfg}
}

// Place submits the sale as an order and fetches it back. On any failure
// the sale is left exactly as it was so the cashier can retry.
//
// Order creation carries no idempotency key: a double submit, or a retry
// after a timeout the backend actually completed, creates a second order.
func (c *Composer) Place(ctx context.Context, s *sale.Sale, paymentMethod string) (*Result, error) {
	snap := s.Snapshot()
	if len(snap.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	if paymentMethod == "" {
		paymentMethod = snap.PaymentMethod
	}
	if paymentMethod == "" {
		return nil, ErrPaymentMethodRequired
	}
	if err := sale.ValidatePaymentMethod(paymentMethod); err != nil {
		return nil, err
	}

	draft := Compose(snap, paymentMethod)
	logger := c.cfg.Logger.With(
		zap.Int("lines", len(draft.Items)),
		zap.Int("component_lines", componentLines(draft)),
		zap.String("grand_total", snap.Totals.GrandTotal.StringFixed(2)),
	)

	created, err := c.orders.CreateOrder(ctx, draft)
	if err != nil {
		logger.Warn("create order failed", zap.Error(err))
		return nil, newOrderError("create", 0, err)
	}

	order, err := c.orders.GetOrder(ctx, created.OrderID)
	if err != nil {
		// the order exists; the sale is kept so the cashier can see what was sent
		logger.Error("fetch created order failed", zap.Int64("order_id", created.OrderID), zap.Error(err))
		return nil, newOrderError("fetch", created.OrderID, err)
	}

	components := created.ComponentItems
	result := &Result{
		Order:          order,
		ComponentItems: components,
		Notice:         notice(order, components),
	}

	c.record(ctx, order, components, paymentMethod)

	if c.cfg.ClearPolicy == ClearImmediate {
		s.Complete()
		result.Cleared = true
	} else {
		s.MarkAwaitingReceipt()
	}

	logger.Info("order placed",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int("component_items", components),
	)
	return result, nil
}

// DismissReceipt clears the sale that is waiting on its receipt under the
// deferred policy.
func (c *Composer) DismissReceipt(s *sale.Sale) error {
	if !s.DismissReceipt() {
		return ErrNothingToDismiss
	}
	return nil
}

func (c *Composer) record(ctx context.Context, order *models.Order, components int, paymentMethod string) {
	if c.cfg.Journal == nil {
		return
	}
	rec := models.SaleRecord{
		TerminalID:     c.cfg.TerminalID,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		ComponentItems: components,
		PaymentMethod:  paymentMethod,
		CreatedAt:      c.cfg.Now(),
	}
	if order.Totals != nil {
		rec.GrandTotal = order.Totals.GrandTotal
	}
	// the order is placed; a journal failure must not turn it into an error
	if err := c.cfg.Journal.RecordSale(ctx, rec); err != nil {
		c.cfg.Logger.Warn("record sale in journal", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

func notice(order *models.Order, components int) string {
	if components > 0 {
		return fmt.Sprintf("Order #%s created with %d component item(s)", order.OrderNumber, components)
	}
	return fmt.Sprintf("Order #%s created", order.OrderNumber)
}
