package backend

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/safar/go-pos-register/internal/gateway"
	"github.com/safar/go-pos-register/internal/models"
)

type CustomerSource interface {
	ListCustomers(ctx context.Context, page, limit int) ([]models.Customer, error)
}

// CustomerCache is the local fallback copy of the customer list.
type CustomerCache interface {
	SaveCustomers(ctx context.Context, customers []models.Customer) error
	LoadCustomers(ctx context.Context) ([]models.Customer, error)
}

type CustomerList struct {
	Customers []models.Customer `json:"customers"`
	// Stale is set when the list came from the local cache because the
	// backend could not be reached. It is for display only.
	Stale bool `json:"stale"`
}

type CustomerDirectory struct {
	source CustomerSource
	cache  CustomerCache
	logger *zap.Logger
	limit  int
}

func NewCustomerDirectory(source CustomerSource, cache CustomerCache, logger *zap.Logger) *CustomerDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerDirectory{source: source, cache: cache, logger: logger, limit: 100}
}

func (d *CustomerDirectory) List(ctx context.Context) (*CustomerList, error) {
	customers, err := d.source.ListCustomers(ctx, 1, d.limit)
	if err == nil {
		if d.cache != nil {
			if cacheErr := d.cache.SaveCustomers(ctx, customers); cacheErr != nil {
				d.logger.Warn("cache customers", zap.Error(cacheErr))
			}
		}
		return &CustomerList{Customers: customers}, nil
	}

	// an expired session must reach the caller, not be hidden behind cache
	if d.cache == nil || ctx.Err() != nil || errors.Is(err, gateway.ErrAuthExpired) {
		return nil, err
	}

	cached, cacheErr := d.cache.LoadCustomers(ctx)
	if cacheErr != nil {
		return nil, fmt.Errorf("%w (cache: %v)", err, cacheErr)
	}
	d.logger.Warn("serving cached customers", zap.Error(err), zap.Int("count", len(cached)))
	return &CustomerList{Customers: cached, Stale: true}, nil
}
