package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/safar/go-pos-register/internal/gateway"
	"github.com/safar/go-pos-register/internal/models"
)

// CreatedOrder is the backend's acknowledgement of a new order. It is never
// rendered; the canonical order is fetched by OrderID.
type CreatedOrder struct {
	OrderID        int64
	ComponentItems int
}

type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason string           `json:"reason,omitempty"`
}

// CreateOrder submits draft. The call is not idempotent: retrying after an
// ambiguous failure can create a second order.
func (c *Client) CreateOrder(ctx context.Context, draft models.OrderDraft) (*CreatedOrder, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{
		Method:  http.MethodPost,
		Path:    "/orders",
		Body:    draft,
		Timeout: c.timeouts.Order,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var wire wireCreatedOrder
	if err := decodeInto("create order", resp.Body, &wire); err != nil {
		return nil, err
	}
	if wire.Woo == nil || wire.Woo.OrderID <= 0 {
		return nil, malformed("create order", errors.New("missing woo.order_id"))
	}
	return &CreatedOrder{OrderID: wire.Woo.OrderID, ComponentItems: wire.Woo.FMSItems}, nil
}

func (c *Client) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("/orders/%d", id),
		Timeout: c.timeouts.Order,
	})
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}

	var order models.Order
	if err := decodeInto("get order", resp.Body, &order); err != nil {
		return nil, err
	}
	if order.ID == 0 {
		// some backends omit the id on reads; the path is authoritative
		order.ID = id
	}
	if order.ID != id {
		return nil, malformed("get order", fmt.Errorf("asked for order %d, got %d", id, order.ID))
	}
	return &order, nil
}

func (c *Client) CompleteOrder(ctx context.Context, id int64) error {
	_, err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("/orders/%d/complete", id),
	})
	if err != nil {
		return fmt.Errorf("complete order %d: %w", id, err)
	}
	return nil
}

func (c *Client) RefundOrder(ctx context.Context, id int64, req RefundRequest) error {
	if req.Amount != nil && !req.Amount.IsPositive() {
		return fmt.Errorf("refund order %d: amount must be positive", id)
	}
	_, err := c.gw.Do(ctx, gateway.Request{
		Method:  http.MethodPost,
		Path:    fmt.Sprintf("/orders/%d/refund", id),
		Body:    req,
		Timeout: c.timeouts.Order,
	})
	if err != nil {
		return fmt.Errorf("refund order %d: %w", id, err)
	}
	return nil
}
