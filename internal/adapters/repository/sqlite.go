package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/pinta/internal/domain/model"
	"github.com/okian/pinta/pkg/metrics"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS customers (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	phone   TEXT,
	tax_id  TEXT,
	email   TEXT
);
CREATE TABLE IF NOT EXISTS sales (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	customer_id      TEXT    NOT NULL,
	product_name     TEXT    NOT NULL,
	quantity         INTEGER NOT NULL,
	sold_at          INTEGER NOT NULL,
	document_type_id INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sales_customer ON sales (customer_id, sold_at);
CREATE INDEX IF NOT EXISTS idx_sales_type ON sales (document_type_id, sold_at);
`

// SQLiteStore reads the ledger from a SQLite database. sold_at holds Unix
// nanoseconds in UTC.
type SQLiteStore struct {
	db *sql.DB
	settings
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the ledger at filePath.
func NewSQLiteStore(filePath string, opts ...Option) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	dsn := filePath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", ErrUnavailable, err)
	}
	st := &SQLiteStore{db: db, settings: defaultSettings()}
	for _, opt := range opts {
		opt(&st.settings)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: init schema: %w", ErrUnavailable, err)
	}
	return st, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Sales implements Store.
func (s *SQLiteStore) Sales(ctx context.Context, q SalesQuery) ([]model.PurchaseRecord, error) {
	defer observe("sales", time.Now())

	var (
		where = []string{"document_type_id = ?"}
		args  = []any{s.saleDocumentTypeID}
	)
	if q.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, q.CustomerID)
	}
	if q.Window.Bounded() {
		where = append(where, "sold_at BETWEEN ? AND ?")
		args = append(args, q.Window.From.UnixNano(), q.Window.To.UnixNano())
	}
	query := `
		SELECT customer_id, product_name, quantity, sold_at, document_type_id
		FROM sales
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY sold_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("sales", err)
	}
	defer rows.Close()

	var out []model.PurchaseRecord
	for rows.Next() {
		var (
			rec    model.PurchaseRecord
			soldAt int64
		)
		if err := rows.Scan(&rec.CustomerID, &rec.ProductName, &rec.Quantity, &soldAt, &rec.DocumentTypeID); err != nil {
			return nil, unavailable("sales", err)
		}
		rec.Timestamp = time.Unix(0, soldAt).In(s.location)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("sales", err)
	}
	return out, nil
}

// Customer implements Store.
func (s *SQLiteStore) Customer(ctx context.Context, id string) (model.Customer, error) {
	defer observe("customer", time.Now())

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, tax_id, email
		FROM customers
		WHERE id = ?`,
		id,
	)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Customer{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Customer{}, unavailable("customer", err)
	}
	return c, nil
}

// SearchCustomers implements Store.
func (s *SQLiteStore) SearchCustomers(ctx context.Context, term string) ([]model.Customer, error) {
	defer observe("search_customers", time.Now())

	pattern := "%" + escapeLike(strings.TrimSpace(term)) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, tax_id, email
		FROM customers
		WHERE name LIKE ?1 ESCAPE '\'
		   OR phone LIKE ?1 ESCAPE '\'
		   OR tax_id LIKE ?1 ESCAPE '\'
		   OR email LIKE ?1 ESCAPE '\'
		ORDER BY name, id`,
		pattern,
	)
	if err != nil {
		return nil, unavailable("search_customers", err)
	}
	defer rows.Close()

	var out []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, unavailable("search_customers", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("search_customers", err)
	}
	return out, nil
}

// Catalog implements Store.
func (s *SQLiteStore) Catalog(ctx context.Context) ([]string, error) {
	defer observe("catalog", time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT product_name
		FROM sales
		WHERE document_type_id = ?
		ORDER BY product_name`,
		s.saleDocumentTypeID,
	)
	if err != nil {
		return nil, unavailable("catalog", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, unavailable("catalog", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("catalog", err)
	}
	return out, nil
}

// InsertCustomer adds or replaces a customer. Used by seeding and tests.
func (s *SQLiteStore) InsertCustomer(ctx context.Context, c model.Customer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO customers (id, name, phone, tax_id, email)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, nullable(c.PhoneNumber), nullable(c.TaxID), nullable(c.Email),
	)
	if err != nil {
		return fmt.Errorf("insert customer %s: %w", c.ID, err)
	}
	return nil
}

// InsertSale appends one ledger line.
func (s *SQLiteStore) InsertSale(ctx context.Context, rec model.PurchaseRecord) error {
	return s.InsertSales(ctx, []model.PurchaseRecord{rec})
}

// InsertSales appends ledger lines in a single transaction.
func (s *SQLiteStore) InsertSales(ctx context.Context, records []model.PurchaseRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sales (customer_id, product_name, quantity, sold_at, document_type_id)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		docType := rec.DocumentTypeID
		if docType == 0 {
			docType = s.saleDocumentTypeID
		}
		if _, err := stmt.ExecContext(ctx, rec.CustomerID, rec.ProductName, rec.Quantity, rec.Timestamp.UnixNano(), docType); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert sale for %s: %w", rec.CustomerID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (model.Customer, error) {
	var (
		c                   model.Customer
		phone, taxID, email sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &phone, &taxID, &email); err != nil {
		return model.Customer{}, err
	}
	c.PhoneNumber = fromNullable(phone)
	c.TaxID = fromNullable(taxID)
	c.Email = fromNullable(email)
	return c, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullable(ns sql.NullString) *string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	v := ns.String
	return &v
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func unavailable(query string, err error) error {
	metrics.RecordStoreError(query)
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, query, err)
}

func observe(query string, start time.Time) {
	metrics.RecordStoreQueryLatency(query, float64(time.Since(start).Microseconds())/1000)
}
