package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sepetly/coupon-service/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, status, discount_type, amount_fixed, amount_percent,
		currency, max_discount, starts_at, ends_at, usage_limit, per_user_limit
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	getCouponRulesSQL = `SELECT scope_type, scope_value_id, min_qty, min_amount, grp, group_op,
		bogo_buy_qty, bogo_get_qty, bogo_same_item_only, bogo_target_scope
		FROM coupon_rules WHERE coupon_id = $1 ORDER BY grp, id`

	getCouponUsesSQL = `SELECT uses FROM coupons WHERE id = $1`

	getPerUserUsesSQL = `SELECT count FROM coupon_redemptions WHERE coupon_id = $1 AND user_id = $2`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
// An optional code filter short-circuits lookups for codes that are
// certainly absent; see WithCodeFilter.
type CouponRepository struct {
	pool   *pgxpool.Pool
	filter *CodeFilter
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// WithCodeFilter installs a bloom filter over known coupon codes. Lookups
// for codes the filter rules out return coupon.ErrCouponNotFound without
// touching the database.
func (r *CouponRepository) WithCodeFilter(f *CodeFilter) *CouponRepository {
	r.filter = f
	return r
}

// FindByCode looks up a coupon and its rules by code (case-insensitive).
// Returns coupon.ErrCouponNotFound when no coupon exists for the code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, []coupon.Rule, error) {
	if r.filter != nil && !r.filter.MightContain(code) {
		return nil, nil, coupon.ErrCouponNotFound
	}

	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	cpn, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, coupon.ErrCouponNotFound
		}
		return nil, nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	ruleRows, err := r.pool.Query(ctx, getCouponRulesSQL, cpn.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading rules for coupon %q: %w", cpn.Code, err)
	}

	rules, err := pgx.CollectRows(ruleRows, scanRule)
	if err != nil {
		return nil, nil, fmt.Errorf("loading rules for coupon %q: %w", cpn.Code, err)
	}

	return &cpn, rules, nil
}

// UsageCounts reads the coupon's total redemption counter and, when userID
// is non-empty, the per-user counter. A missing per-user row counts as zero.
func (r *CouponRepository) UsageCounts(ctx context.Context, couponID, userID string) (coupon.UsageSnapshot, error) {
	var snap coupon.UsageSnapshot

	if err := r.pool.QueryRow(ctx, getCouponUsesSQL, couponID).Scan(&snap.Total); err != nil {
		return snap, fmt.Errorf("reading uses for coupon %s: %w", couponID, err)
	}

	if userID == "" {
		return snap, nil
	}

	err := r.pool.QueryRow(ctx, getPerUserUsesSQL, couponID, userID).Scan(&snap.PerUser)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return snap, fmt.Errorf("reading per-user uses for coupon %s: %w", couponID, err)
	}

	return snap, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		cpn           coupon.Coupon
		status        string
		discountType  string
		amountFixed   *decimal.Decimal
		amountPercent *decimal.Decimal
		maxDiscount   *decimal.Decimal
		startsAt      *time.Time
		endsAt        *time.Time
		usageLimit    *int32
		perUserLimit  *int32
	)
	err := row.Scan(
		&cpn.ID, &cpn.Code, &status, &discountType, &amountFixed, &amountPercent,
		&cpn.Currency, &maxDiscount, &startsAt, &endsAt, &usageLimit, &perUserLimit,
	)
	if err != nil {
		return cpn, err
	}

	// Reject unknown enum values at the boundary instead of carrying them
	// into the engine.
	if cpn.Status, err = coupon.ParseStatus(status); err != nil {
		return cpn, err
	}
	if cpn.DiscountType, err = coupon.ParseDiscountType(discountType); err != nil {
		return cpn, err
	}

	cpn.AmountFixed = derefDecimal(amountFixed)
	cpn.AmountPercent = derefDecimal(amountPercent)
	cpn.MaxDiscount = derefDecimal(maxDiscount)
	cpn.StartsAt = startsAt
	cpn.EndsAt = endsAt
	cpn.UsageLimit = derefInt(usageLimit)
	cpn.PerUserLimit = derefInt(perUserLimit)
	return cpn, nil
}

func scanRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule         coupon.Rule
		scopeType    string
		scopeValueID *string
		minQty       *int32
		minAmount    *decimal.Decimal
		grp          int32
		groupOp      string
		bogoBuyQty   *int32
		bogoGetQty   *int32
		targetScope  string
	)
	err := row.Scan(
		&scopeType, &scopeValueID, &minQty, &minAmount, &grp, &groupOp,
		&bogoBuyQty, &bogoGetQty, &rule.BogoSameItemOnly, &targetScope,
	)
	if err != nil {
		return rule, err
	}

	if rule.ScopeType, err = coupon.ParseScopeType(scopeType); err != nil {
		return rule, err
	}
	if rule.GroupOp, err = coupon.ParseGroupOp(groupOp); err != nil {
		return rule, err
	}
	if rule.BogoTargetScope, err = coupon.ParseBogoTargetScope(targetScope); err != nil {
		return rule, err
	}

	if scopeValueID != nil {
		rule.ScopeValueID = *scopeValueID
	}
	rule.MinQty = derefInt(minQty)
	rule.MinAmount = derefDecimal(minAmount)
	rule.Group = int(grp)
	rule.BogoBuyQty = derefInt(bogoBuyQty)
	rule.BogoGetQty = derefInt(bogoGetQty)
	return rule, nil
}

func derefDecimal(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func derefInt(i *int32) int {
	if i == nil {
		return 0
	}
	return int(*i)
}
