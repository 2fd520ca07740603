package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/veltrix/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL keeps transcript appends from blocking catalog reads.
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price REAL NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		stock INTEGER NOT NULL DEFAULT 0,
		vendor_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_products_category ON products(category) WHERE stock > 0;

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		total_amount REAL NOT NULL,
		estimated_delivery INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at);

	CREATE TABLE IF NOT EXISTS order_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		vendor_id TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		price REAL NOT NULL CHECK (price >= 0),
		status TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);
	CREATE INDEX IF NOT EXISTS idx_order_items_vendor ON order_items(vendor_id);

	CREATE TABLE IF NOT EXISTS transcripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		speaker TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transcripts_user ON transcripts(user_id, id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// ListNonEmptyCategories returns distinct categories that have stock.
func (s *SQLiteStore) ListNonEmptyCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT category FROM products
		WHERE stock > 0 AND category <> ''
		ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer closeRows(rows, "categories")

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

// ListProductsInCategory returns in-stock products of a category.
func (s *SQLiteStore) ListProductsInCategory(ctx context.Context, name string) ([]domain.ProductSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price FROM products
		WHERE stock > 0 AND instr(lower(category), lower(?)) > 0
		ORDER BY name
		LIMIT ?`, name, MaxProductResults)
	if err != nil {
		return nil, fmt.Errorf("query products in %q: %w", name, err)
	}
	defer closeRows(rows, "products by category")
	return scanSummaries(rows)
}

// SearchProducts matches every word longer than two characters against the
// product name or category.
func (s *SQLiteStore) SearchProducts(ctx context.Context, text string) ([]domain.ProductSummary, error) {
	words := significantWords(text)
	if len(words) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString(`SELECT id, name, price FROM products WHERE stock > 0`)
	args := make([]any, 0, len(words)*2+1)
	for _, w := range words {
		b.WriteString(` AND (instr(lower(name), ?) > 0 OR instr(lower(category), ?) > 0)`)
		args = append(args, w, w)
	}
	b.WriteString(` ORDER BY name LIMIT ?`)
	args = append(args, MaxProductResults)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer closeRows(rows, "product search")
	return scanSummaries(rows)
}

func significantWords(text string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if utf8.RuneCountInString(w) > 2 {
			words = append(words, w)
		}
	}
	return words
}

func scanSummaries(rows *sql.Rows) ([]domain.ProductSummary, error) {
	var out []domain.ProductSummary
	for rows.Next() {
		var p domain.ProductSummary
		if err := rows.Scan(&p.ID, &p.Name, &p.Price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

// UpsertProduct creates or replaces a catalog record.
func (s *SQLiteStore) UpsertProduct(ctx context.Context, p *domain.Product) error {
	query := `
	INSERT INTO products (id, name, price, category, description, stock, vendor_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		price = excluded.price,
		category = excluded.category,
		description = excluded.description,
		stock = excluded.stock,
		vendor_id = excluded.vendor_id`

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Price, p.Category, p.Description, p.Stock, p.VendorID, createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// InsertOrder stores a new order with its lines in one transaction.
func (s *SQLiteStore) InsertOrder(ctx context.Context, o *domain.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	var eta any
	if o.EstimatedDelivery != nil {
		eta = o.EstimatedDelivery.Unix()
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, status, total_amount, estimated_delivery, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, string(o.Status), o.TotalAmount, eta, createdAt.Unix(), now.Unix(),
	); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range o.Items {
		status := item.Status
		if status == "" {
			status = domain.OrderProcessing
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, vendor_id, quantity, price, status)
			VALUES (?, ?, ?, ?, ?, ?)`,
			o.ID, item.ProductID, item.VendorID, item.Quantity, item.Price, string(status),
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

const orderColumns = `id, user_id, status, total_amount, estimated_delivery, created_at, updated_at`

// LatestOrder returns the user's most recent order, or nil if none.
func (s *SQLiteStore) LatestOrder(ctx context.Context, userID string) (*domain.Order, error) {
	orders, err := s.RecentOrders(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return orders[0], nil
}

// RecentOrders returns up to n most recent orders, newest first.
func (s *SQLiteStore) RecentOrders(ctx context.Context, userID string, n int) ([]*domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, n)
	if err != nil {
		return nil, fmt.Errorf("query recent orders: %w", err)
	}
	orders, err := scanOrders(rows)
	closeRows(rows, "recent orders")
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// VendorOrders returns every order containing a line sold by vendorID.
func (s *SQLiteStore) VendorOrders(ctx context.Context, vendorID string) ([]*domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE id IN (SELECT order_id FROM order_items WHERE vendor_id = ?)
		ORDER BY created_at DESC`, vendorID)
	if err != nil {
		return nil, fmt.Errorf("query vendor orders: %w", err)
	}
	orders, err := scanOrders(rows)
	closeRows(rows, "vendor orders")
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// CancelOrder marks the order cancelled only if it is still cancellable. The
// status guard lives in the UPDATE itself so a repeated request cannot cancel
// twice.
func (s *SQLiteStore) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?)`,
		string(domain.OrderCancelled), time.Now().Unix(),
		orderID, string(domain.OrderDelivered), string(domain.OrderCancelled),
	)
	if err != nil {
		return false, fmt.Errorf("cancel order: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, orderID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		if err != nil {
			return false, fmt.Errorf("check order: %w", err)
		}
		slog.Warn("CancelOrder affected 0 rows", "order_id", orderID)
		return false, nil
	}
	return true, nil
}

func scanOrders(rows *sql.Rows) ([]*domain.Order, error) {
	var orders []*domain.Order
	for rows.Next() {
		var o domain.Order
		var status string
		var eta sql.NullInt64
		var createdAt, updatedAt int64
		if err := rows.Scan(&o.ID, &o.UserID, &status, &o.TotalAmount, &eta, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		o.Status = domain.OrderStatus(status)
		o.CreatedAt = time.Unix(createdAt, 0)
		o.UpdatedAt = time.Unix(updatedAt, 0)
		if eta.Valid {
			ts := time.Unix(eta.Int64, 0)
			o.EstimatedDelivery = &ts
		}
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func (s *SQLiteStore) loadItems(ctx context.Context, orders []*domain.Order) error {
	for _, o := range orders {
		rows, err := s.db.QueryContext(ctx, `
			SELECT oi.product_id, COALESCE(p.name, ''), oi.vendor_id, oi.quantity, oi.price, oi.status
			FROM order_items oi
			LEFT JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = ?
			ORDER BY oi.id`, o.ID)
		if err != nil {
			return fmt.Errorf("query items of %s: %w", o.ID, err)
		}
		for rows.Next() {
			var item domain.OrderItem
			var status string
			if err := rows.Scan(&item.ProductID, &item.ProductName, &item.VendorID, &item.Quantity, &item.Price, &status); err != nil {
				closeRows(rows, "order items")
				return fmt.Errorf("scan order item: %w", err)
			}
			item.Status = domain.OrderStatus(status)
			o.Items = append(o.Items, item)
		}
		err = rows.Err()
		closeRows(rows, "order items")
		if err != nil {
			return fmt.Errorf("iterate order items: %w", err)
		}
	}
	return nil
}

// AppendTranscript appends entries and trims the user's log to limit rows.
func (s *SQLiteStore) AppendTranscript(ctx context.Context, userID string, entries []domain.Message, limit int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transcript tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		ts := e.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transcripts (user_id, speaker, text, created_at) VALUES (?, ?, ?, ?)`,
			userID, string(e.Speaker), e.Text, ts.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert transcript entry: %w", err)
		}
	}

	if limit > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM transcripts
			WHERE user_id = ? AND id NOT IN (
				SELECT id FROM transcripts WHERE user_id = ? ORDER BY id DESC LIMIT ?
			)`, userID, userID, limit); err != nil {
			return fmt.Errorf("truncate transcript: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transcript: %w", err)
	}
	return nil
}

// Transcript returns the user's log, oldest first.
func (s *SQLiteStore) Transcript(ctx context.Context, userID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT speaker, text, created_at FROM transcripts
		WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer closeRows(rows, "transcript")

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		var speaker string
		var ts int64
		if err := rows.Scan(&speaker, &m.Text, &ts); err != nil {
			return nil, fmt.Errorf("scan transcript entry: %w", err)
		}
		m.Speaker = domain.Speaker(speaker)
		m.Timestamp = time.UnixMilli(ts)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript: %w", err)
	}
	return out, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", what, "error", err)
	}
}
