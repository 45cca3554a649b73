package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-pos-register/internal/database"
	"github.com/safar/go-pos-register/internal/models"
)

// SaveCustomers replaces the cached customer list. Position keeps the
// backend's ordering.
func SaveCustomers(ctx context.Context, db *sql.DB, customers []models.Customer) error {
	return database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM customer_cache`); err != nil {
			return fmt.Errorf("clear customer cache: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO customer_cache (id, first_name, last_name, name, phone, email, position, cached_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			ON CONFLICT (id) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("prepare customer insert: %w", err)
		}
		defer stmt.Close()

		for i, c := range customers {
			_, err := stmt.ExecContext(ctx, c.ID, c.FirstName, c.LastName, c.Name, c.Phone, c.Email, i)
			if err != nil {
				return fmt.Errorf("cache customer %d: %w", c.ID, err)
			}
		}
		return nil
	})
}

func ListCachedCustomers(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage[models.Customer], error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 100
	}

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customer_cache`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count cached customers: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT id, first_name, last_name, name, phone, email, cached_at
		FROM customer_cache
		ORDER BY position
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list cached customers: %w", err)
	}
	defer rows.Close()

	customers := []models.Customer{}
	for rows.Next() {
		var c models.Customer
		err := rows.Scan(
			&c.ID,
			&c.FirstName,
			&c.LastName,
			&c.Name,
			&c.Phone,
			&c.Email,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cached customer: %w", err)
		}
		customers = append(customers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(customers, total, page, pageSize), nil
}

// CustomerCache adapts the customer_cache table to the directory's fallback.
type CustomerCache struct {
	db    *sql.DB
	limit int
}

func NewCustomerCache(db *sql.DB) *CustomerCache {
	return &CustomerCache{db: db, limit: 100}
}

func (c *CustomerCache) SaveCustomers(ctx context.Context, customers []models.Customer) error {
	return SaveCustomers(ctx, c.db, customers)
}

func (c *CustomerCache) LoadCustomers(ctx context.Context) ([]models.Customer, error) {
	page, err := ListCachedCustomers(ctx, c.db, 1, c.limit)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}
