package checkout

import (
	"errors"
	"fmt"

	"github.com/safar/go-pos-register/internal/gateway"
)

var (
	ErrEmptyCart             = errors.New("cart is empty")
	ErrPaymentMethodRequired = errors.New("choose a payment method")
	ErrNothingToDismiss      = errors.New("no receipt is waiting to be dismissed")
)

const genericOrderFailure = "Order failed"

// OrderError is a failed create or fetch. Message is what the cashier sees:
// the backend's own message when it sent one.
type OrderError struct {
	Op      string
	OrderID int64
	Message string
	Err     error
}

func (e *OrderError) Error() string {
	if e.OrderID != 0 {
		return fmt.Sprintf("%s order %d: %s", e.Op, e.OrderID, e.Message)
	}
	return fmt.Sprintf("%s order: %s", e.Op, e.Message)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

func newOrderError(op string, orderID int64, err error) *OrderError {
	msg, ok := gateway.ServerMessage(err)
	switch {
	case ok:
	case errors.Is(err, gateway.ErrNetworkTimeout):
		msg = gateway.ErrNetworkTimeout.Error()
	case errors.Is(err, gateway.ErrAuthExpired):
		msg = gateway.ErrAuthExpired.Error()
	default:
		msg = genericOrderFailure
	}
	return &OrderError{Op: op, OrderID: orderID, Message: msg, Err: err}
}
