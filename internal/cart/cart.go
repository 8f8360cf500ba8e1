// Package cart holds the line items of a customer session and derives its
// totals from the current catalog.
package cart

import (
	"sync"

	"github.com/chrisdamba/menuflow/internal/catalog"
	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrLineNotFound    = errors.New("cart line not found")
)

// Cart is safe for concurrent use. Every mutation builds a new item slice and
// swaps it in, so slices returned by Items are never modified afterwards.
type Cart struct {
	channel string
	lookup  catalog.Lookup

	mu    sync.Mutex
	items []models.CartItem
}

func New(channel string, lookup catalog.Lookup) *Cart {
	return &Cart{channel: channel, lookup: lookup}
}

func (c *Cart) Channel() string {
	return c.channel
}

// AddItem appends item as a new line. Lines of the same product are kept
// apart because they may carry different options or notes. The stored line is
// returned.
func (c *Cart) AddItem(item models.CartItem) (models.CartItem, error) {
	if item.Quantity < 1 {
		return models.CartItem{}, errors.Wrapf(ErrInvalidQuantity, "add %s", item.Product.ID)
	}
	if item.LineID == "" {
		item.LineID = uuid.NewString()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]models.CartItem, len(c.items), len(c.items)+1)
	copy(next, c.items)
	c.items = append(next, item)
	return item, nil
}

// UpdateQuantity changes the quantity of the line at index by delta. The
// quantity never drops below zero and a line reaching zero is removed.
func (c *Cart) UpdateQuantity(index, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.items) {
		return errors.Wrapf(ErrLineNotFound, "index %d", index)
	}
	if delta == 0 {
		return nil
	}

	qty := c.items[index].Quantity + delta
	if qty <= 0 {
		c.items = without(c.items, index)
		return nil
	}
	next := make([]models.CartItem, len(c.items))
	copy(next, c.items)
	next[index].Quantity = qty
	c.items = next
	return nil
}

func (c *Cart) RemoveItem(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.items) {
		return errors.Wrapf(ErrLineNotFound, "index %d", index)
	}
	c.items = without(c.items, index)
	return nil
}

func (c *Cart) Clear() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
}

// Replace swaps the whole cart, as when restoring it from the store. Lines
// with a non-positive quantity are dropped.
func (c *Cart) Replace(items []models.CartItem) {
	next := make([]models.CartItem, 0, len(items))
	for _, it := range items {
		if it.Quantity >= 1 {
			next = append(next, it)
		}
	}
	c.mu.Lock()
	c.items = next
	c.mu.Unlock()
}

func (c *Cart) Items() []models.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items()) == 0
}

// CurrentProduct returns the catalog version of the line's product, or the
// snapshot taken when the line was added if it is no longer in the catalog.
func (c *Cart) CurrentProduct(item models.CartItem) models.Product {
	if c.lookup != nil {
		if p, ok := c.lookup.Product(item.Product.ID); ok {
			return p
		}
	}
	return item.Product
}

// BasePrice is the unit price of the line's product on the cart channel,
// resolved on every call.
func (c *Cart) BasePrice(item models.CartItem) decimal.Decimal {
	return catalog.EffectivePrice(c.CurrentProduct(item), c.channel)
}

// UnitPrice is the base price plus the selected option prices.
func (c *Cart) UnitPrice(item models.CartItem) decimal.Decimal {
	return c.BasePrice(item).Add(item.OptionsTotal())
}

func (c *Cart) LineTotal(item models.CartItem) decimal.Decimal {
	return c.UnitPrice(item).Mul(decimal.NewFromInt(int64(item.Quantity)))
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items() {
		total = total.Add(c.LineTotal(it))
	}
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func (c *Cart) Count() int {
	count := 0
	for _, it := range c.Items() {
		count += it.Quantity
	}
	return count
}

func without(items []models.CartItem, index int) []models.CartItem {
	next := make([]models.CartItem, 0, len(items)-1)
	next = append(next, items[:index]...)
	return append(next, items[index+1:]...)
}
