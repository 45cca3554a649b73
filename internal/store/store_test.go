package store

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/go-pos-register/internal/database"
	"github.com/safar/go-pos-register/internal/models"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestSessionStoreLoadMissing(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT token")).
		WithArgs("till-1").
		WillReturnError(sql.ErrNoRows)

	token, err := NewSessionStore(db, "till-1").Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStoreSaveAndLoad(t *testing.T) {
	db, mock := newMock(t)
	s := NewSessionStore(db, "till-1")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO register_sessions")).
		WithArgs("till-1", "tok").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT token")).
		WithArgs("till-1").
		WillReturnRows(sqlmock.NewRows([]string{"token"}).AddRow("tok"))

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "tok"))
	token, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStoreSaveEmptyDeletes(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM register_sessions WHERE terminal_id = $1")).
		WithArgs("till-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewSessionStore(db, "till-1").Save(context.Background(), ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveCustomersReplacesCache(t *testing.T) {
	db, mock := newMock(t)
	customers := []models.Customer{
		{ID: 7, FirstName: "Asha", LastName: "K", Name: "Asha K", Phone: "98450"},
		{ID: 3, FirstName: "Ravi", Name: "Ravi"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM customer_cache")).
		WillReturnResult(sqlmock.NewResult(0, 4))
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO customer_cache"))
	prep.ExpectExec().
		WithArgs(int64(7), "Asha", "K", "Asha K", "98450", "", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs(int64(3), "Ravi", "", "Ravi", "", "", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, SaveCustomers(context.Background(), db, customers))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveCustomersRollsBackOnFailure(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM customer_cache")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := SaveCustomers(context.Background(), db, []models.Customer{{ID: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear customer cache")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerCacheLoadKeepsOrder(t *testing.T) {
	db, mock := newMock(t)
	cachedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM customer_cache")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY position")).
		WithArgs(100, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "name", "phone", "email", "cached_at"}).
			AddRow(7, "Asha", "K", "Asha K", "98450", "", cachedAt).
			AddRow(3, "Ravi", "", "Ravi", "", "", cachedAt))

	customers, err := NewCustomerCache(db).LoadCustomers(context.Background())
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, int64(7), customers[0].ID)
	assert.Equal(t, "Ravi", customers[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCachedCustomersPages(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM customer_cache")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $1 OFFSET $2")).
		WithArgs(2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "name", "phone", "email", "cached_at"}))

	page, err := ListCachedCustomers(context.Background(), db, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, int64(5), page.Total)
	assert.Empty(t, page.Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSaleDuplicate(t *testing.T) {
	db, mock := newMock(t)
	rec := models.SaleRecord{
		TerminalID:  "till-1",
		OrderID:     812,
		OrderNumber: "812",
		GrandTotal:  decimal.RequireFromString("2100.00"),
		CreatedAt:   time.Now(),
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sales_journal")).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := RecordSale(context.Background(), db, rec)
	assert.ErrorIs(t, err, database.ErrDuplicateSale)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalFillsTerminal(t *testing.T) {
	db, mock := newMock(t)
	createdAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sales_journal")).
		WithArgs("till-9", int64(44), "44", sqlmock.AnyArg(), 2, "cash", createdAt).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, createdAt))

	err := NewJournal(db, "till-9").RecordSale(context.Background(), models.SaleRecord{
		OrderID:        44,
		OrderNumber:    "44",
		GrandTotal:     decimal.NewFromInt(500),
		ComponentItems: 2,
		PaymentMethod:  "cash",
		CreatedAt:      createdAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSaleByOrderNotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE order_id = $1")).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := GetSaleByOrder(context.Background(), db, 9)
	assert.ErrorIs(t, err, database.ErrSaleNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSalesCursorHasMore(t *testing.T) {
	db, mock := newMock(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cols := []string{"id", "terminal_id", "order_id", "order_number", "grand_total", "component_items", "payment_method", "created_at"}

	rows := sqlmock.NewRows(cols).
		AddRow(3, "till-1", 103, "103", "10.00", 0, "cash", base.Add(2*time.Minute)).
		AddRow(2, "till-1", 102, "102", "20.00", 1, "upi", base.Add(time.Minute)).
		AddRow(1, "till-1", 101, "101", "30.00", 0, "cash", base)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC")).
		WithArgs("till-1", sqlmock.AnyArg(), sqlmock.AnyArg(), 3).
		WillReturnRows(rows)

	page, err := ListSalesCursor(context.Background(), db, "till-1", "", 2)
	require.NoError(t, err)
	assert.True(t, page.HasMore)

	sales := page.Items
	require.Len(t, sales, 2)
	assert.Equal(t, int64(102), sales[1].OrderID)
	assert.True(t, decimal.NewFromInt(20).Equal(sales[1].GrandTotal))

	cursor, err := DecodeJournalCursor(page.NextCursor, "till-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cursor.ID)
	assert.True(t, cursor.CreatedAt.Equal(base.Add(time.Minute)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecodeJournalCursor(t *testing.T) {
	start, err := DecodeJournalCursor("", "till-1")
	require.NoError(t, err)
	assert.Equal(t, "till-1", start.TerminalID)
	assert.Equal(t, int64(math.MaxInt64), start.ID)

	_, err = DecodeJournalCursor("%%%", "till-1")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	other := EncodeJournalCursor(JournalCursor{TerminalID: "till-2", ID: 8})
	_, err = DecodeJournalCursor(other, "till-1")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = ListSalesCursor(context.Background(), nil, "till-1", other, 10)
	assert.ErrorIs(t, err, ErrInvalidCursor)
}
