// Package backend wraps the commerce backend's REST endpoints with typed
// requests and strict response decoding.
package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/safar/go-pos-register/internal/gateway"
)

// ErrMalformedResponse means the backend answered 2xx with a body that does
// not match the expected shape. Callers never get silently empty results.
var ErrMalformedResponse = errors.New("malformed backend response")

type Timeouts struct {
	Catalog time.Duration
	Order   time.Duration
	Auth    time.Duration
}

type Client struct {
	gw       *gateway.Client
	timeouts Timeouts
}

func New(gw *gateway.Client, timeouts Timeouts) *Client {
	return &Client{gw: gw, timeouts: timeouts}
}

func (c *Client) Gateway() *gateway.Client {
	return c.gw
}

func malformed(what string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, what, err)
	}
	return fmt.Errorf("%w: %s", ErrMalformedResponse, what)
}

// decodeInto unmarshals body and reports shape errors as ErrMalformedResponse.
func decodeInto(what string, body []byte, out any) error {
	if len(body) == 0 {
		return malformed(what, errors.New("empty body"))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return malformed(what, err)
	}
	return nil
}

// decodeList reads a list wrapped in an envelope field, e.g. {"data": [...]}.
// A missing or null field is malformed; an empty array is not.
func decodeList[T any](what, field string, body []byte) ([]T, error) {
	var envelope map[string]json.RawMessage
	if err := decodeInto(what, body, &envelope); err != nil {
		return nil, err
	}
	raw, ok := envelope[field]
	if !ok || string(raw) == "null" {
		return nil, malformed(what, fmt.Errorf("missing %q", field))
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, malformed(what, err)
	}
	return items, nil
}

// decodeArray reads a bare JSON array.
func decodeArray[T any](what string, body []byte) ([]T, error) {
	var items []T
	if err := decodeInto(what, body, &items); err != nil {
		return nil, err
	}
	if items == nil {
		return nil, malformed(what, errors.New("expected array"))
	}
	return items, nil
}
