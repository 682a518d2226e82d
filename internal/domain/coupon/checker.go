package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/sepetly/coupon-service/internal/domain/cart"
)

// Checker validates a coupon code against a cart and returns the computed
// discount, or a typed rejection.
type Checker interface {
	Check(ctx context.Context, code, userID string, items []cart.LineItem) (*Result, error)
}

// RepoChecker implements Checker by resolving the coupon and its usage
// snapshot from a Repository and delegating to the pure Validate function.
type RepoChecker struct {
	repo Repository
	now  func() time.Time
}

// NewRepoChecker creates a RepoChecker backed by the given Repository.
func NewRepoChecker(repo Repository) *RepoChecker {
	return &RepoChecker{repo: repo, now: time.Now}
}

// Check resolves the coupon by code, reads the current usage counters, and
// runs the validation pipeline. The usage read is advisory; the redemption
// store enforces limits authoritatively at order-commit time.
func (c *RepoChecker) Check(ctx context.Context, code, userID string, items []cart.LineItem) (*Result, error) {
	cpn, rules, err := c.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	usage, err := c.repo.UsageCounts(ctx, cpn.ID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "read usage counts")
	}

	return Validate(cpn, rules, items, usage, c.now())
}
