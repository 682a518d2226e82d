// Package coupon implements coupon rule evaluation and discount computation.
//
// The engine is a pure function of its inputs: coupon and rule records, a
// shopping cart, a usage-count snapshot, and the evaluation time. It never
// reads or writes storage; loading coupons and incrementing redemption
// counters are the repository's concern.
package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountAmount subtracts a fixed monetary amount, capped at the base.
	DiscountAmount DiscountType = "AMOUNT"
	// DiscountPercent applies a percentage to the discount base.
	DiscountPercent DiscountType = "PERCENT"
	// DiscountBogo grants free units via buy-X-get-Y cycle matching.
	DiscountBogo DiscountType = "BOGO"
)

// ParseDiscountType converts a stored string into a DiscountType, rejecting
// unknown values.
func ParseDiscountType(s string) (DiscountType, error) {
	switch DiscountType(s) {
	case DiscountAmount, DiscountPercent, DiscountBogo:
		return DiscountType(s), nil
	}
	return "", errors.Errorf("unknown discount type: %q", s)
}

// Status enumerates coupon lifecycle states as stored by the admin side.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusPaused Status = "PAUSED"
	StatusDraft  Status = "DRAFT"
)

// ParseStatus converts a stored string into a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusPaused, StatusDraft:
		return Status(s), nil
	}
	return "", errors.Errorf("unknown coupon status: %q", s)
}

// ScopeType selects which cart lines a rule evaluates against.
type ScopeType string

const (
	ScopeCategory  ScopeType = "CATEGORY"
	ScopeProduct   ScopeType = "PRODUCT"
	ScopeCartTotal ScopeType = "CART_TOTAL"
)

// ParseScopeType converts a stored string into a ScopeType, rejecting
// unknown values.
func ParseScopeType(s string) (ScopeType, error) {
	switch ScopeType(s) {
	case ScopeCategory, ScopeProduct, ScopeCartTotal:
		return ScopeType(s), nil
	}
	return "", errors.Errorf("unknown scope type: %q", s)
}

// GroupOp combines the rules sharing one group number.
type GroupOp string

const (
	GroupAnd GroupOp = "AND"
	GroupOr  GroupOp = "OR"
)

// ParseGroupOp converts a stored string into a GroupOp, rejecting unknown
// values.
func ParseGroupOp(s string) (GroupOp, error) {
	switch GroupOp(s) {
	case GroupAnd, GroupOr:
		return GroupOp(s), nil
	}
	return "", errors.Errorf("unknown group op: %q", s)
}

// BogoTargetScope controls how eligible units are pooled before BOGO cycle
// matching.
type BogoTargetScope string

const (
	BogoSameProduct  BogoTargetScope = "SAME_PRODUCT"
	BogoSameCategory BogoTargetScope = "SAME_CATEGORY"
	BogoAny          BogoTargetScope = "ANY"
)

// ParseBogoTargetScope converts a stored string into a BogoTargetScope,
// rejecting unknown values.
func ParseBogoTargetScope(s string) (BogoTargetScope, error) {
	switch BogoTargetScope(s) {
	case BogoSameProduct, BogoSameCategory, BogoAny:
		return BogoTargetScope(s), nil
	}
	return "", errors.Errorf("unknown bogo target scope: %q", s)
}

// Sentinel errors for coupon resolution and eligibility. The HTTP layer maps
// each one to a user-facing response; the engine itself never formats
// messages for end users.
var (
	// ErrCouponNotFound is returned when no coupon exists for a code.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponDraft is returned for coupons still in draft.
	ErrCouponDraft = errors.New("coupon is a draft")
	// ErrCouponPaused is returned for coupons paused by the admin.
	ErrCouponPaused = errors.New("coupon is paused")
	// ErrCouponNotStarted is returned before the coupon's start date.
	ErrCouponNotStarted = errors.New("coupon is not active yet")
	// ErrCouponExpired is returned after the coupon's end date.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrUsageLimitReached is returned when total redemptions are exhausted.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrPerUserLimitReached is returned when the user's redemptions are exhausted.
	ErrPerUserLimitReached = errors.New("coupon per-user limit reached")
	// ErrRuleNotMatched is returned when no eligibility group is satisfied.
	ErrRuleNotMatched = errors.New("cart does not satisfy coupon rules")
	// ErrNotApplicable is returned when the computed discount clamps to zero.
	ErrNotApplicable = errors.New("coupon not applicable to this cart")
)

// GroupConfigError reports rules within one group carrying different group
// operators. This is an admin configuration bug, not a user-facing rejection.
type GroupConfigError struct {
	Group int
}

func (e *GroupConfigError) Error() string {
	return fmt.Sprintf("rules in group %d mix AND and OR operators", e.Group)
}

// Coupon is a redeemable code with its discount configuration. It is owned
// and mutated by the admin side; the engine treats it as immutable.
type Coupon struct {
	ID            string
	Code          string
	Status        Status
	DiscountType  DiscountType
	AmountFixed   decimal.Decimal // meaningful iff DiscountType == DiscountAmount
	AmountPercent decimal.Decimal // meaningful iff DiscountType == DiscountPercent
	Currency      string
	MaxDiscount   decimal.Decimal // optional cap; zero means no cap
	StartsAt      *time.Time
	EndsAt        *time.Time
	UsageLimit    int // 0 = unlimited
	PerUserLimit  int // 0 = unlimited
}

// Rule is one eligibility condition attached to a coupon. Rules sharing a
// Group number form one alternative eligibility path, combined via GroupOp.
type Rule struct {
	ScopeType    ScopeType
	ScopeValueID string          // category or product ID; required for CATEGORY/PRODUCT scopes
	MinQty       int             // 0 = no quantity threshold
	MinAmount    decimal.Decimal // zero = no amount threshold
	Group        int
	GroupOp      GroupOp

	// BOGO parameters; meaningful only when the owning coupon's
	// DiscountType is DiscountBogo.
	BogoBuyQty       int
	BogoGetQty       int
	BogoSameItemOnly bool
	BogoTargetScope  BogoTargetScope
}

// UsageSnapshot is an advisory read of the coupon's redemption counters,
// supplied by the caller. Authoritative limit enforcement happens at
// order-commit time in the redemption store, not here.
type UsageSnapshot struct {
	Total   int
	PerUser int
}

// Result is a successful validation outcome.
type Result struct {
	DiscountAmount decimal.Decimal
	Currency       string
	AppliedGroup   int
}

// Repository provides read access to coupons, their rules, and usage counts.
type Repository interface {
	// FindByCode resolves a coupon and its rules by code, case-insensitively.
	// Returns ErrCouponNotFound when no coupon exists for the code.
	FindByCode(ctx context.Context, code string) (*Coupon, []Rule, error)
	// UsageCounts returns the current redemption counters for the coupon and,
	// when userID is non-empty, for that user.
	UsageCounts(ctx context.Context, couponID, userID string) (UsageSnapshot, error)
}

// Redeemer records a completed redemption. Implementations must enforce
// usage limits atomically; validation alone cannot, since concurrent
// checkouts may all read the same usage snapshot.
type Redeemer interface {
	Redeem(ctx context.Context, code, userID string) error
}
