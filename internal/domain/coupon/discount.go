package coupon

import (
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/sepetly/coupon-service/internal/domain/cart"
)

var hundred = decimal.NewFromInt(100)

// computeDiscount calculates the discount amount for the winning group.
// The result is clamped to [0, cart subtotal]; a clamped result of zero is
// reported as ErrNotApplicable rather than a zero-value success.
func computeDiscount(cpn *Coupon, win groupResult, c *cart.Cart) (decimal.Decimal, error) {
	var amount decimal.Decimal

	switch cpn.DiscountType {
	case DiscountAmount:
		base := discountBase(win, c)
		amount = decimal.Min(cpn.AmountFixed, base)
	case DiscountPercent:
		base := discountBase(win, c)
		amount = base.Mul(cpn.AmountPercent).Div(hundred).Round(2)
	case DiscountBogo:
		amount = bogoDiscount(win, c)
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", cpn.DiscountType)
	}

	if cpn.MaxDiscount.IsPositive() {
		amount = decimal.Min(amount, cpn.MaxDiscount)
	}

	// Clamp to the cart subtotal, flooring at zero.
	amount = decimal.Min(amount, c.Subtotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	amount = amount.Round(2)

	if amount.IsZero() {
		return decimal.Zero, ErrNotApplicable
	}
	return amount, nil
}

// discountBase resolves the monetary base the discount applies to: the union
// of cart lines matched by the winning group's satisfied rules. A satisfied
// CART_TOTAL rule selects every line, so its base equals the cart subtotal.
func discountBase(win groupResult, c *cart.Cart) decimal.Decimal {
	seen := make(map[int]struct{})
	base := decimal.Zero

	for _, m := range win.matches {
		if !m.matched {
			continue
		}
		for _, i := range m.lineIdx {
			if _, ok := seen[i]; ok {
				continue
			}
			seen[i] = struct{}{}
			base = base.Add(c.Items[i].LineTotal())
		}
	}

	return base
}

// unit is one physical item after expanding line quantities.
type unit struct {
	productID  string
	categoryID string
	price      decimal.Decimal
}

// bogoDiscount runs the buy-X-get-Y matching algorithm for the first
// satisfied rule carrying BOGO quantities. Matched lines are expanded into
// individual units, pooled according to the rule's target scope, and walked
// cheapest-first in cycles of buy+get units; each complete cycle's cheapest
// "get" units are free. Units left over in an incomplete cycle earn nothing.
func bogoDiscount(win groupResult, c *cart.Cart) decimal.Decimal {
	var rule *match
	for i := range win.matches {
		m := &win.matches[i]
		if m.matched && m.rule.BogoBuyQty > 0 && m.rule.BogoGetQty > 0 {
			rule = m
			break
		}
	}
	if rule == nil {
		return decimal.Zero
	}

	units := expandUnits(rule.lineIdx, c)
	pools := partitionUnits(units, rule.rule)

	discount := decimal.Zero
	cycle := rule.rule.BogoBuyQty + rule.rule.BogoGetQty
	for _, pool := range pools {
		sort.SliceStable(pool, func(i, j int) bool {
			return pool[i].price.LessThan(pool[j].price)
		})

		// Ascending order puts the cheapest units first, so within each
		// complete cycle the free units are the leading "get" entries.
		for start := 0; start+cycle <= len(pool); start += cycle {
			for k := range rule.rule.BogoGetQty {
				discount = discount.Add(pool[start+k].price)
			}
		}
	}

	return discount
}

// expandUnits flattens the given cart lines into one unit per quantity.
func expandUnits(lineIdx []int, c *cart.Cart) []unit {
	var units []unit
	for _, i := range lineIdx {
		li := c.Items[i]
		for range li.Quantity {
			units = append(units, unit{
				productID:  li.ProductID,
				categoryID: li.CategoryID,
				price:      li.Price,
			})
		}
	}
	return units
}

// partitionUnits pools units per the rule's target scope. BogoSameItemOnly
// forces per-product pooling regardless of the configured target scope, so a
// free unit always shares a product with the paid units in its cycle.
func partitionUnits(units []unit, r Rule) map[string][]unit {
	key := func(u unit) string {
		if r.BogoSameItemOnly {
			return u.productID
		}
		switch r.BogoTargetScope {
		case BogoSameProduct:
			return u.productID
		case BogoSameCategory:
			return u.categoryID
		default:
			return ""
		}
	}

	pools := make(map[string][]unit)
	for _, u := range units {
		k := key(u)
		pools[k] = append(pools[k], u)
	}
	return pools
}
