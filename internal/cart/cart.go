// Package cart holds the shopping-cart state machine for one session and
// the protocol that mirrors it into a durable slot.
package cart

import "github.com/shopspring/decimal"

// LineItem is one product in the cart. Name, UnitPrice and Image are
// snapshotted when the product is first added and never refreshed.
type LineItem struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image"`
}

// Subtotal returns UnitPrice × Quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Candidate is a product offered for adding; it has no quantity yet.
type Candidate struct {
	ID        int64
	Name      string
	UnitPrice decimal.Decimal
	Image     string
}

// Cart is an ordered collection of line items, unique by ID, each with a
// quantity of at least one.
type Cart struct {
	Items []LineItem
}

// ItemCount returns the sum of all quantities.
func (c Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// TotalPrice returns the exact sum of every line's subtotal.
func (c Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) indexOf(id int64) int {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// clone copies the item slice so the result can be mutated freely.
func (c Cart) clone() Cart {
	if c.Items == nil {
		return Cart{}
	}
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}
