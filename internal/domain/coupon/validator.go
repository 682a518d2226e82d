package coupon

import (
	"time"

	"github.com/sepetly/coupon-service/internal/domain/cart"
)

// lifecycleState is the coupon's evaluation-time state, computed from its
// fields and the usage snapshot. It is never stored.
type lifecycleState int

const (
	stateActive lifecycleState = iota
	stateDraft
	statePaused
	stateNotStarted
	stateExpired
	stateExhausted
	statePerUserExhausted
)

// lifecycle computes the coupon's state at the given instant.
func lifecycle(cpn *Coupon, usage UsageSnapshot, now time.Time) lifecycleState {
	switch cpn.Status {
	case StatusDraft:
		return stateDraft
	case StatusPaused:
		return statePaused
	}
	if cpn.StartsAt != nil && now.Before(*cpn.StartsAt) {
		return stateNotStarted
	}
	if cpn.EndsAt != nil && now.After(*cpn.EndsAt) {
		return stateExpired
	}
	if cpn.UsageLimit > 0 && usage.Total >= cpn.UsageLimit {
		return stateExhausted
	}
	if cpn.PerUserLimit > 0 && usage.PerUser >= cpn.PerUserLimit {
		return statePerUserExhausted
	}
	return stateActive
}

// Validate is the engine's single entry point. It checks the coupon's
// lifecycle state, normalizes the cart, evaluates the rule groups, and
// computes the discount. It is a pure function of its arguments: identical
// inputs with the same now always produce the identical result, and it is
// safe to call concurrently.
func Validate(cpn *Coupon, rules []Rule, items []cart.LineItem, usage UsageSnapshot, now time.Time) (*Result, error) {
	switch lifecycle(cpn, usage, now) {
	case stateDraft:
		return nil, ErrCouponDraft
	case statePaused:
		return nil, ErrCouponPaused
	case stateNotStarted:
		return nil, ErrCouponNotStarted
	case stateExpired:
		return nil, ErrCouponExpired
	case stateExhausted:
		return nil, ErrUsageLimitReached
	case statePerUserExhausted:
		return nil, ErrPerUserLimitReached
	}

	c, err := cart.Normalize(items)
	if err != nil {
		return nil, err
	}

	groups, err := BuildGroups(rules)
	if err != nil {
		return nil, err
	}

	win, ok := evaluateGroups(groups, c)
	if !ok {
		return nil, ErrRuleNotMatched
	}

	amount, err := computeDiscount(cpn, win, c)
	if err != nil {
		return nil, err
	}

	return &Result{
		DiscountAmount: amount,
		Currency:       cpn.Currency,
		AppliedGroup:   win.group.Number,
	}, nil
}
