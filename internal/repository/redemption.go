package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sepetly/coupon-service/internal/domain/coupon"
)

const (
	getCouponLimitsSQL = `SELECT id, COALESCE(usage_limit, 0), COALESCE(per_user_limit, 0)
		FROM coupons WHERE UPPER(code) = UPPER($1) FOR UPDATE`

	incrementUsesSQL = `UPDATE coupons SET uses = uses + 1, updated_at = now()
		WHERE id = $1 AND ($2 <= 0 OR uses < $2)`

	incrementPerUserSQL = `INSERT INTO coupon_redemptions (coupon_id, user_id, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (coupon_id, user_id) DO UPDATE
		SET count = coupon_redemptions.count + 1, updated_at = now()
		WHERE $3 <= 0 OR coupon_redemptions.count < $3`
)

var _ coupon.Redeemer = (*RedemptionRepository)(nil)

// RedemptionRepository records completed redemptions. Unlike the advisory
// snapshot the engine reads during validation, these writes enforce usage
// limits atomically: two concurrent checkouts cannot both take the last
// allowed redemption.
type RedemptionRepository struct {
	pool *pgxpool.Pool
}

// NewRedemptionRepository returns a RedemptionRepository that uses the
// given pool.
func NewRedemptionRepository(pool *pgxpool.Pool) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// Redeem increments the coupon's usage counters inside one transaction.
// The total counter only advances while below usage_limit; the per-user
// counter only advances while below per_user_limit. A guard that blocks the
// increment rolls the whole transaction back and returns the matching
// eligibility error.
func (r *RedemptionRepository) Redeem(ctx context.Context, code, userID string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			id           string
			usageLimit   int32
			perUserLimit int32
		)
		err := tx.QueryRow(ctx, getCouponLimitsSQL, code).Scan(&id, &usageLimit, &perUserLimit)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return coupon.ErrCouponNotFound
			}
			return fmt.Errorf("locking coupon %q: %w", code, err)
		}

		tag, err := tx.Exec(ctx, incrementUsesSQL, id, usageLimit)
		if err != nil {
			return fmt.Errorf("incrementing uses for coupon %q: %w", code, err)
		}
		if tag.RowsAffected() == 0 {
			return coupon.ErrUsageLimitReached
		}

		if userID == "" {
			return nil
		}

		tag, err = tx.Exec(ctx, incrementPerUserSQL, id, userID, perUserLimit)
		if err != nil {
			return fmt.Errorf("incrementing per-user uses for coupon %q: %w", code, err)
		}
		if tag.RowsAffected() == 0 {
			return coupon.ErrPerUserLimitReached
		}

		return nil
	})
}
