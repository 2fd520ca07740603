package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/veltrix/internal/domain"
	"github.com/ashureev/veltrix/internal/shared"
	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds the retries applied to idempotent operations.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns a policy of three attempts starting at 50ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

// Retrying decorates a Repository so idempotent reads are retried with
// exponential backoff. CancelOrder is passed through untouched: a blind retry
// of a mutation could act twice. Transcript appends are retried only on
// SQLite lock conflicts, where the failed transaction is known to have been
// rolled back.
type Retrying struct {
	Repository
	policy RetryPolicy
}

// NewRetrying wraps repo with the given policy.
func NewRetrying(repo Repository, policy RetryPolicy) *Retrying {
	if policy.MaxTries == 0 {
		policy = DefaultRetryPolicy()
	}
	return &Retrying{Repository: repo, policy: policy}
}

func (r *Retrying) options(op string) []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	return []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.policy.MaxTries),
		backoff.WithNotify(func(err error, delay time.Duration) {
			slog.Debug("Storage operation failed, retrying", "op", op, "delay", delay, "error", err)
		}),
	}
}

func retryRead[T any](ctx context.Context, r *Retrying, op string, fn func() (T, error)) (T, error) {
	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && ctx.Err() != nil {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, r.options(op)...)
}

// ListNonEmptyCategories retries the underlying read.
func (r *Retrying) ListNonEmptyCategories(ctx context.Context) ([]string, error) {
	return retryRead(ctx, r, "list_categories", func() ([]string, error) {
		return r.Repository.ListNonEmptyCategories(ctx)
	})
}

// ListProductsInCategory retries the underlying read.
func (r *Retrying) ListProductsInCategory(ctx context.Context, name string) ([]domain.ProductSummary, error) {
	return retryRead(ctx, r, "list_products", func() ([]domain.ProductSummary, error) {
		return r.Repository.ListProductsInCategory(ctx, name)
	})
}

// SearchProducts retries the underlying read.
func (r *Retrying) SearchProducts(ctx context.Context, text string) ([]domain.ProductSummary, error) {
	return retryRead(ctx, r, "search_products", func() ([]domain.ProductSummary, error) {
		return r.Repository.SearchProducts(ctx, text)
	})
}

// LatestOrder retries the underlying read.
func (r *Retrying) LatestOrder(ctx context.Context, userID string) (*domain.Order, error) {
	return retryRead(ctx, r, "latest_order", func() (*domain.Order, error) {
		return r.Repository.LatestOrder(ctx, userID)
	})
}

// RecentOrders retries the underlying read.
func (r *Retrying) RecentOrders(ctx context.Context, userID string, n int) ([]*domain.Order, error) {
	return retryRead(ctx, r, "recent_orders", func() ([]*domain.Order, error) {
		return r.Repository.RecentOrders(ctx, userID, n)
	})
}

// VendorOrders retries the underlying read.
func (r *Retrying) VendorOrders(ctx context.Context, vendorID string) ([]*domain.Order, error) {
	return retryRead(ctx, r, "vendor_orders", func() ([]*domain.Order, error) {
		return r.Repository.VendorOrders(ctx, vendorID)
	})
}

// Transcript retries the underlying read.
func (r *Retrying) Transcript(ctx context.Context, userID string) ([]domain.Message, error) {
	return retryRead(ctx, r, "transcript", func() ([]domain.Message, error) {
		return r.Repository.Transcript(ctx, userID)
	})
}

// AppendTranscript retries only on SQLite lock conflicts.
func (r *Retrying) AppendTranscript(ctx context.Context, userID string, entries []domain.Message, limit int) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := r.Repository.AppendTranscript(ctx, userID, entries, limit)
		if err != nil && !shared.IsSQLiteConflictError(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, r.options("append_transcript")...)
	return err
}
