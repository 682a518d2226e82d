package coupon

import (
	"github.com/shopspring/decimal"

	"github.com/sepetly/coupon-service/internal/domain/cart"
)

// match is the outcome of evaluating a single rule against a cart.
// lineIdx holds the indices of the cart lines the rule's scope selected,
// regardless of whether the thresholds were met.
type match struct {
	rule    Rule
	lineIdx []int
	matched bool
}

// matchRule resolves the rule's scope against the cart and checks its
// thresholds. A rule whose scope selects no lines never matches. When both
// MinQty and MinAmount are set, both must hold.
func matchRule(r Rule, c *cart.Cart) match {
	m := match{rule: r}

	for i, li := range c.Items {
		switch r.ScopeType {
		case ScopeCartTotal:
			m.lineIdx = append(m.lineIdx, i)
		case ScopeCategory:
			if li.CategoryID == r.ScopeValueID {
				m.lineIdx = append(m.lineIdx, i)
			}
		case ScopeProduct:
			if li.ProductID == r.ScopeValueID {
				m.lineIdx = append(m.lineIdx, i)
			}
		}
	}

	if len(m.lineIdx) == 0 {
		return m
	}

	qty := 0
	amount := decimal.Zero
	for _, i := range m.lineIdx {
		qty += c.Items[i].Quantity
		amount = amount.Add(c.Items[i].LineTotal())
	}

	if r.MinQty > 0 && qty < r.MinQty {
		return m
	}
	if r.MinAmount.IsPositive() && amount.LessThan(r.MinAmount) {
		return m
	}

	m.matched = true
	return m
}
