// Package cart normalizes raw shopping cart input into validated line items
// with precomputed totals. It performs no I/O and holds no state.
package cart

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LineItem is a single cart position. Price is the unit price in the cart's
// display currency; amounts arrive already converted.
type LineItem struct {
	ProductID  string
	CategoryID string
	Price      decimal.Decimal
	Quantity   int
}

// LineTotal returns Price multiplied by Quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart holds normalized line items and the precomputed subtotal.
type Cart struct {
	Items    []LineItem
	Subtotal decimal.Decimal
}

// InvalidLineError reports a cart line that failed validation. It names the
// offending line by its zero-based index in the input.
type InvalidLineError struct {
	Index  int
	Reason string
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("invalid cart line %d: %s", e.Index, e.Reason)
}

// Normalize validates raw line items and returns a Cart with the subtotal
// precomputed. Each line must have a non-negative price and a positive
// quantity; the first violation is returned as an *InvalidLineError.
func Normalize(items []LineItem) (*Cart, error) {
	subtotal := decimal.Zero
	normalized := make([]LineItem, len(items))

	for i, li := range items {
		if li.Price.IsNegative() {
			return nil, &InvalidLineError{Index: i, Reason: "price must not be negative"}
		}
		if li.Quantity <= 0 {
			return nil, &InvalidLineError{Index: i, Reason: "quantity must be greater than 0"}
		}
		normalized[i] = li
		subtotal = subtotal.Add(li.LineTotal())
	}

	return &Cart{Items: normalized, Subtotal: subtotal}, nil
}
