package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/safar/go-pos-register/internal/gateway"
	"github.com/safar/go-pos-register/internal/models"
)

var (
	ErrFirstNameRequired = errors.New("first name is required")
	ErrPhoneRequired     = errors.New("phone is required")
	ErrInvalidEmail      = errors.New("invalid email format")
)

type CustomerInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

func (in *CustomerInput) normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
}

func (in CustomerInput) Validate() error {
	if in.FirstName == "" {
		return ErrFirstNameRequired
	}
	if in.Phone == "" {
		return ErrPhoneRequired
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return ErrInvalidEmail
		}
	}
	return nil
}

type createCustomerBody struct {
	CustomerInput
	Username string `json:"username"`
	Billing  struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
		Email     string `json:"email"`
	} `json:"billing"`
}

func (c *Client) ListCustomers(ctx context.Context, page, limit int) ([]models.Customer, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 100
	}

	resp, err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/customers",
		Query: map[string][]string{
			"page":  {strconv.Itoa(page)},
			"limit": {strconv.Itoa(limit)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}

	wire, err := decodeList[wireCustomer]("list customers", "results", resp.Body)
	if err != nil {
		return nil, err
	}
	customers := make([]models.Customer, 0, len(wire))
	for _, w := range wire {
		cust, err := w.toModel()
		if err != nil {
			return nil, malformed("list customers", err)
		}
		customers = append(customers, cust)
	}
	return customers, nil
}

func (c *Client) CreateCustomer(ctx context.Context, in CustomerInput) (*models.Customer, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	body := createCustomerBody{
		CustomerInput: in,
		// the backend requires a unique username it never shows
		Username: fmt.Sprintf("customer_%s_%d", in.Phone, time.Now().UnixMilli()),
	}
	body.Billing.FirstName = in.FirstName
	body.Billing.LastName = in.LastName
	body.Billing.Phone = in.Phone
	body.Billing.Email = in.Email

	resp, err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/customers",
		Body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return decodeCustomer("create customer", resp.Body)
}

func (c *Client) UpdateCustomer(ctx context.Context, id int64, in CustomerInput) (*models.Customer, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	resp, err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("/customers/%d", id),
		Body:   in,
	})
	if err != nil {
		return nil, fmt.Errorf("update customer %d: %w", id, err)
	}
	return decodeCustomer("update customer", resp.Body)
}

func decodeCustomer(what string, body []byte) (*models.Customer, error) {
	var wire wireCustomer
	if err := decodeInto(what, body, &wire); err != nil {
		return nil, err
	}
	cust, err := wire.toModel()
	if err != nil {
		return nil, malformed(what, err)
	}
	return &cust, nil
}
