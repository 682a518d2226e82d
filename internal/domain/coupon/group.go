package coupon

import (
	"sort"

	"github.com/sepetly/coupon-service/internal/domain/cart"
)

// Group is one alternative eligibility path: the rules sharing a group
// number, combined with a single operator. The flat integer-group encoding
// stored by the admin side is parsed into Groups once per validation; the
// stored format survives only at the persistence boundary.
type Group struct {
	Number int
	Op     GroupOp
	Rules  []Rule
}

// BuildGroups partitions rules by their group number, ordered ascending.
// Every rule within a group must carry the same operator; a mix is reported
// as a *GroupConfigError. Rules without an operator default to OR, matching
// how the admin side stores single-rule groups.
func BuildGroups(rules []Rule) ([]Group, error) {
	byNumber := make(map[int][]Rule)
	for _, r := range rules {
		byNumber[r.Group] = append(byNumber[r.Group], r)
	}

	numbers := make([]int, 0, len(byNumber))
	for n := range byNumber {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	groups := make([]Group, 0, len(numbers))
	for _, n := range numbers {
		grRules := byNumber[n]

		op := grRules[0].GroupOp
		if op == "" {
			op = GroupOr
		}
		for _, r := range grRules[1:] {
			ro := r.GroupOp
			if ro == "" {
				ro = GroupOr
			}
			if ro != op {
				return nil, &GroupConfigError{Group: n}
			}
		}

		groups = append(groups, Group{Number: n, Op: op, Rules: grRules})
	}

	return groups, nil
}

// groupResult is the evaluation of one group against a cart.
type groupResult struct {
	group     Group
	matches   []match
	satisfied bool
}

// evaluateGroup runs every rule in the group against the cart and combines
// the outcomes with the group's operator: AND requires every rule to match,
// OR requires at least one.
func evaluateGroup(g Group, c *cart.Cart) groupResult {
	res := groupResult{group: g, matches: make([]match, len(g.Rules))}

	for i, r := range g.Rules {
		res.matches[i] = matchRule(r, c)
	}

	switch g.Op {
	case GroupAnd:
		res.satisfied = true
		for _, m := range res.matches {
			if !m.matched {
				res.satisfied = false
				break
			}
		}
	default: // GroupOr
		for _, m := range res.matches {
			if m.matched {
				res.satisfied = true
				break
			}
		}
	}

	return res
}

// evaluateGroups returns the winning group result. Groups are alternative
// eligibility paths combined with OR; the lowest-numbered satisfied group
// wins and its matched rules scope the discount downstream. The second
// return value is false when no group is satisfied.
func evaluateGroups(groups []Group, c *cart.Cart) (groupResult, bool) {
	for _, g := range groups {
		if res := evaluateGroup(g, c); res.satisfied {
			return res, true
		}
	}
	return groupResult{}, false
}
