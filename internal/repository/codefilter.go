package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/jackc/pgx/v5/pgxpool"
)

const listCouponCodesSQL = `SELECT code FROM coupons`

// CodeFilter is a bloom filter over every known coupon code. It lets the
// hot validation path reject made-up codes without a database round trip.
// Codes added after the last Reload are reported as absent, so callers must
// refresh the filter periodically; StartReload does this in the background.
type CodeFilter struct {
	pool     *pgxpool.Pool
	capacity uint
	fpr      float64

	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewCodeFilter creates a filter sized for the expected number of codes and
// the acceptable false-positive rate, and performs the initial load.
func NewCodeFilter(ctx context.Context, pool *pgxpool.Pool, capacity uint, fpr float64) (*CodeFilter, error) {
	f := &CodeFilter{pool: pool, capacity: capacity, fpr: fpr}
	if err := f.Reload(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

// Reload rebuilds the filter from the current set of coupon codes.
func (f *CodeFilter) Reload(ctx context.Context) error {
	filter := bloom.NewWithEstimates(f.capacity, f.fpr)

	rows, err := f.pool.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return fmt.Errorf("listing coupon codes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return fmt.Errorf("scanning coupon code: %w", err)
		}
		filter.AddString(strings.ToUpper(code))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("listing coupon codes: %w", err)
	}

	f.mu.Lock()
	f.filter = filter
	f.mu.Unlock()
	return nil
}

// StartReload rebuilds the filter at the given interval until ctx is
// cancelled. Reload failures leave the previous filter in place.
func (f *CodeFilter) StartReload(ctx context.Context, interval time.Duration, onError func(error)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := f.Reload(ctx); err != nil && onError != nil {
					onError(err)
				}
			}
		}
	}()
}

// MightContain reports whether the code may exist. False means the code is
// certainly absent from the last loaded snapshot; true may be a false
// positive and must be confirmed against the database.
func (f *CodeFilter) MightContain(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(strings.ToUpper(code))
}
