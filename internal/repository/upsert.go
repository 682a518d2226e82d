package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/sepetly/coupon-service/internal/domain/coupon"
)

const (
	upsertCouponSQL = `INSERT INTO coupons (code, status, discount_type, amount_fixed, amount_percent,
			currency, max_discount, starts_at, ends_at, usage_limit, per_user_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT ((UPPER(code))) DO UPDATE SET
			status = EXCLUDED.status,
			discount_type = EXCLUDED.discount_type,
			amount_fixed = EXCLUDED.amount_fixed,
			amount_percent = EXCLUDED.amount_percent,
			currency = EXCLUDED.currency,
			max_discount = EXCLUDED.max_discount,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at,
			usage_limit = EXCLUDED.usage_limit,
			per_user_limit = EXCLUDED.per_user_limit,
			updated_at = now()
		RETURNING id`

	deleteCouponRulesSQL = `DELETE FROM coupon_rules WHERE coupon_id = $1`

	insertCouponRuleSQL = `INSERT INTO coupon_rules (coupon_id, scope_type, scope_value_id, min_qty,
			min_amount, grp, group_op, bogo_buy_qty, bogo_get_qty, bogo_same_item_only, bogo_target_scope)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
)

// Upsert writes a coupon and replaces its rule set in one transaction.
// Used by the ingest and seed tools; the admin side owns regular mutations.
func (r *CouponRepository) Upsert(ctx context.Context, cpn *coupon.Coupon, rules []coupon.Rule) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, upsertCouponSQL,
			cpn.Code, string(cpn.Status), string(cpn.DiscountType),
			nullableDecimal(cpn.AmountFixed), nullableDecimal(cpn.AmountPercent),
			cpn.Currency, nullableDecimal(cpn.MaxDiscount),
			cpn.StartsAt, cpn.EndsAt,
			nullableInt(cpn.UsageLimit), nullableInt(cpn.PerUserLimit),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("upserting coupon %q: %w", cpn.Code, err)
		}

		if _, err := tx.Exec(ctx, deleteCouponRulesSQL, id); err != nil {
			return fmt.Errorf("clearing rules for coupon %q: %w", cpn.Code, err)
		}

		for _, rule := range rules {
			targetScope := rule.BogoTargetScope
			if targetScope == "" {
				targetScope = coupon.BogoSameProduct
			}
			groupOp := rule.GroupOp
			if groupOp == "" {
				groupOp = coupon.GroupOr
			}

			_, err := tx.Exec(ctx, insertCouponRuleSQL,
				id, string(rule.ScopeType), nullableString(rule.ScopeValueID),
				nullableInt(rule.MinQty), nullableDecimal(rule.MinAmount),
				rule.Group, string(groupOp),
				nullableInt(rule.BogoBuyQty), nullableInt(rule.BogoGetQty),
				rule.BogoSameItemOnly, string(targetScope),
			)
			if err != nil {
				return fmt.Errorf("inserting rule for coupon %q: %w", cpn.Code, err)
			}
		}

		return nil
	})
}

func nullableDecimal(d decimal.Decimal) *decimal.Decimal {
	if d.IsZero() {
		return nil
	}
	return &d
}

func nullableInt(i int) *int32 {
	if i == 0 {
		return nil
	}
	v := int32(i)
	return &v
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
