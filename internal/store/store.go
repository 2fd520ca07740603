// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/veltrix/internal/domain"
)

// MaxProductResults bounds every product listing and search.
const MaxProductResults = 5

// ErrNotFound is returned when a mutation targets a record that does not exist.
var ErrNotFound = errors.New("record not found")

// Catalog answers read-only product questions.
type Catalog interface {
	// ListNonEmptyCategories returns distinct categories that have stock.
	ListNonEmptyCategories(ctx context.Context) ([]string, error)

	// ListProductsInCategory returns in-stock products whose category contains
	// name (case-insensitive), at most MaxProductResults.
	ListProductsInCategory(ctx context.Context, name string) ([]domain.ProductSummary, error)

	// SearchProducts matches every significant word of text against product
	// name or category, in-stock only, at most MaxProductResults.
	SearchProducts(ctx context.Context, text string) ([]domain.ProductSummary, error)
}

// Orders reads and mutates customer orders.
type Orders interface {
	// LatestOrder returns the user's most recent order, or nil if none.
	LatestOrder(ctx context.Context, userID string) (*domain.Order, error)

	// RecentOrders returns up to n most recent orders, newest first.
	RecentOrders(ctx context.Context, userID string, n int) ([]*domain.Order, error)

	// CancelOrder marks the order cancelled only if it is still cancellable.
	// It returns false when the order changed state concurrently.
	CancelOrder(ctx context.Context, orderID string) (bool, error)

	// VendorOrders returns every order containing a line sold by vendorID.
	VendorOrders(ctx context.Context, vendorID string) ([]*domain.Order, error)
}

// Transcripts persists the durable per-user conversation log.
type Transcripts interface {
	// AppendTranscript appends entries and keeps only the newest limit rows.
	AppendTranscript(ctx context.Context, userID string, entries []domain.Message, limit int) error

	// Transcript returns the user's log, oldest first.
	Transcript(ctx context.Context, userID string) ([]domain.Message, error)
}

// Repository is the full storage surface used by the service.
type Repository interface {
	Catalog
	Orders
	Transcripts

	// UpsertProduct creates or replaces a catalog record.
	UpsertProduct(ctx context.Context, p *domain.Product) error

	// InsertOrder stores a new order with its lines.
	InsertOrder(ctx context.Context, o *domain.Order) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
