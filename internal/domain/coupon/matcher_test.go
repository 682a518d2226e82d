package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sepetly/coupon-service/internal/domain/cart"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func mustCart(t *testing.T, items []cart.LineItem) *cart.Cart {
	t.Helper()
	c, err := cart.Normalize(items)
	require.NoError(t, err)
	return c
}

func TestMatchRule(t *testing.T) {
	items := []cart.LineItem{
		{ProductID: "p1", CategoryID: "books", Price: d("40"), Quantity: 2},
		{ProductID: "p2", CategoryID: "books", Price: d("15"), Quantity: 1},
		{ProductID: "p3", CategoryID: "toys", Price: d("60"), Quantity: 1},
	}

	tests := []struct {
		name        string
		rule        Rule
		wantLines   []int
		wantMatched bool
	}{
		{
			name:        "cart total selects every line",
			rule:        Rule{ScopeType: ScopeCartTotal},
			wantLines:   []int{0, 1, 2},
			wantMatched: true,
		},
		{
			name:        "category scope selects matching lines",
			rule:        Rule{ScopeType: ScopeCategory, ScopeValueID: "books"},
			wantLines:   []int{0, 1},
			wantMatched: true,
		},
		{
			name:        "product scope selects one line",
			rule:        Rule{ScopeType: ScopeProduct, ScopeValueID: "p3"},
			wantLines:   []int{2},
			wantMatched: true,
		},
		{
			name:        "empty scope never matches",
			rule:        Rule{ScopeType: ScopeProduct, ScopeValueID: "missing"},
			wantLines:   nil,
			wantMatched: false,
		},
		{
			name:        "min qty met counts units not lines",
			rule:        Rule{ScopeType: ScopeCategory, ScopeValueID: "books", MinQty: 3},
			wantLines:   []int{0, 1},
			wantMatched: true,
		},
		{
			name:        "min qty not met",
			rule:        Rule{ScopeType: ScopeCategory, ScopeValueID: "books", MinQty: 4},
			wantLines:   []int{0, 1},
			wantMatched: false,
		},
		{
			name:        "min amount met on scoped total",
			rule:        Rule{ScopeType: ScopeCategory, ScopeValueID: "books", MinAmount: d("95")},
			wantLines:   []int{0, 1},
			wantMatched: true,
		},
		{
			name:        "min amount not met",
			rule:        Rule{ScopeType: ScopeCategory, ScopeValueID: "books", MinAmount: d("95.01")},
			wantLines:   []int{0, 1},
			wantMatched: false,
		},
		{
			name:        "both thresholds must hold",
			rule:        Rule{ScopeType: ScopeCartTotal, MinQty: 4, MinAmount: d("1000")},
			wantLines:   []int{0, 1, 2},
			wantMatched: false,
		},
		{
			name:        "qty met but amount not",
			rule:        Rule{ScopeType: ScopeCartTotal, MinQty: 2, MinAmount: d("200")},
			wantLines:   []int{0, 1, 2},
			wantMatched: false,
		},
	}

	c := mustCart(t, items)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := matchRule(tt.rule, c)
			assert.Equal(t, tt.wantLines, m.lineIdx)
			assert.Equal(t, tt.wantMatched, m.matched)
		})
	}
}

func TestMatchRuleEmptyCart(t *testing.T) {
	c := mustCart(t, nil)
	m := matchRule(Rule{ScopeType: ScopeCartTotal}, c)
	assert.False(t, m.matched)
	assert.Empty(t, m.lineIdx)
}
