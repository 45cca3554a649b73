package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/safar/go-pos-register/internal/database"
	"github.com/safar/go-pos-register/internal/models"
)

var ErrInvalidCursor = errors.New("invalid journal cursor")

func RecordSale(ctx context.Context, db *sql.DB, rec models.SaleRecord) (*models.SaleRecord, error) {
	saved := rec

	query := `
		INSERT INTO sales_journal (terminal_id, order_id, order_number, grand_total, component_items, payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := db.QueryRowContext(ctx, query,
		rec.TerminalID,
		rec.OrderID,
		rec.OrderNumber,
		rec.GrandTotal,
		rec.ComponentItems,
		rec.PaymentMethod,
		rec.CreatedAt,
	).Scan(&saved.ID, &saved.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("record order %d: %w", rec.OrderID, database.ErrDuplicateSale)
		}
		return nil, fmt.Errorf("record sale: %w", err)
	}

	return &saved, nil
}

func GetSaleByOrder(ctx context.Context, db *sql.DB, orderID int64) (*models.SaleRecord, error) {
	rec := &models.SaleRecord{}

	query := `
		SELECT id, terminal_id, order_id, order_number, grand_total, component_items, payment_method, created_at
		FROM sales_journal
		WHERE order_id = $1`

	err := db.QueryRowContext(ctx, query, orderID).Scan(
		&rec.ID,
		&rec.TerminalID,
		&rec.OrderID,
		&rec.OrderNumber,
		&rec.GrandTotal,
		&rec.ComponentItems,
		&rec.PaymentMethod,
		&rec.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrSaleNotFound
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}

	return rec, nil
}

// JournalCursor marks the last sale of a journal page. It is only valid for
// the terminal whose journal produced it.
type JournalCursor struct {
	TerminalID string    `json:"t"`
	CreatedAt  time.Time `json:"c"`
	ID         int64     `json:"i"`
}

// journalStart sorts after every recorded sale.
var journalStart = JournalCursor{
	CreatedAt: time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC),
	ID:        math.MaxInt64,
}

func EncodeJournalCursor(cursor JournalCursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeJournalCursor parses a cursor for terminalID's journal. An empty
// cursor starts at the newest sale.
func DecodeJournalCursor(encoded, terminalID string) (JournalCursor, error) {
	if encoded == "" {
		start := journalStart
		start.TerminalID = terminalID
		return start, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return JournalCursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var cursor JournalCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return JournalCursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if cursor.TerminalID != terminalID {
		return JournalCursor{}, fmt.Errorf("%w: issued for terminal %q", ErrInvalidCursor, cursor.TerminalID)
	}
	return cursor, nil
}

// ListSalesCursor pages a terminal's journal newest first.
func ListSalesCursor(ctx context.Context, db *sql.DB, terminalID string, cursor string, limit int) (*CursorPage[models.SaleRecord], error) {
	cursorData, err := DecodeJournalCursor(cursor, terminalID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, terminal_id, order_id, order_number, grand_total, component_items, payment_method, created_at
		FROM sales_journal
		WHERE terminal_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, terminalID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	sales := []models.SaleRecord{}
	for rows.Next() {
		var rec models.SaleRecord
		err := rows.Scan(
			&rec.ID,
			&rec.TerminalID,
			&rec.OrderID,
			&rec.OrderNumber,
			&rec.GrandTotal,
			&rec.ComponentItems,
			&rec.PaymentMethod,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(sales) > limit
	if hasMore {
		sales = sales[:limit]
	}

	var nextCursor string
	if hasMore && len(sales) > 0 {
		last := sales[len(sales)-1]
		nextCursor = EncodeJournalCursor(JournalCursor{
			TerminalID: terminalID,
			CreatedAt:  last.CreatedAt,
			ID:         last.ID,
		})
	}

	return &CursorPage[models.SaleRecord]{
		Items:      sales,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// Journal records placed orders for one terminal.
type Journal struct {
	db         *sql.DB
	terminalID string
}

func NewJournal(db *sql.DB, terminalID string) *Journal {
	return &Journal{db: db, terminalID: terminalID}
}

func (j *Journal) RecordSale(ctx context.Context, rec models.SaleRecord) error {
	if rec.TerminalID == "" {
		rec.TerminalID = j.terminalID
	}
	_, err := RecordSale(ctx, j.db, rec)
	return err
}

func (j *Journal) List(ctx context.Context, cursor string, limit int) (*CursorPage[models.SaleRecord], error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return ListSalesCursor(ctx, j.db, j.terminalID, cursor, limit)
}
