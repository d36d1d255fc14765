// Package cart holds the client-side shopping cart.
package cart

import (
	"sync"

	"github.com/shopspring/decimal"
)

// LineItem is one product in the cart. ItemID is unique within a Store.
type LineItem struct {
	ItemID   string          `json:"itemId"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	ImageURL string          `json:"imageUrl,omitempty"`
}

// Total is Price * Quantity.
func (l LineItem) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Summary is the figure shown to the user before checkout.
type Summary struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	Total       decimal.Decimal `json:"total"`
}

// Store is an ordered cart keyed by item id. It is safe for concurrent use.
// It is kept in memory only.
type Store struct {
	mu    sync.RWMutex
	items []LineItem
	index map[string]int
}

func New() *Store {
	return &Store{index: map[string]int{}}
}

// Add increments the quantity of an existing line or appends item with quantity 1.
func (s *Store) Add(item LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[item.ItemID]; ok {
		s.items[i].Quantity++
		return
	}
	item.Quantity = 1
	s.index[item.ItemID] = len(s.items)
	s.items = append(s.items, item)
}

// Remove deletes the line for itemID, if any.
func (s *Store) Remove(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[itemID]
	if !ok {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.reindex()
}

// UpdateQuantity sets the quantity of itemID, clamped to at least 1. Unknown ids are ignored.
func (s *Store) UpdateQuantity(itemID string, qty int) {
	if qty < 1 {
		qty = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[itemID]; ok {
		s.items[i].Quantity = qty
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.index = map[string]int{}
}

// Consume takes the given lines out of the cart. Quantity added to a line
// after the snapshot was taken stays behind; lines added since are untouched.
func (s *Store) Consume(lines []LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	taken := make(map[string]int, len(lines))
	for _, l := range lines {
		taken[l.ItemID] += l.Quantity
	}
	for _, it := range s.items {
		if q, ok := taken[it.ItemID]; ok {
			if it.Quantity <= q {
				continue
			}
			it.Quantity -= q
		}
		kept = append(kept, it)
	}
	s.items = kept
	s.reindex()
}

// Replace swaps the whole content, e.g. with the server-side cart. Lines with a
// duplicate id are merged by summing quantities; quantities below 1 become 1.
func (s *Store) Replace(items []LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make([]LineItem, 0, len(items))
	s.index = make(map[string]int, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			it.Quantity = 1
		}
		if i, ok := s.index[it.ItemID]; ok {
			s.items[i].Quantity += it.Quantity
			continue
		}
		s.index[it.ItemID] = len(s.items)
		s.items = append(s.items, it)
	}
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Get(itemID string) (LineItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[itemID]
	if !ok {
		return LineItem{}, false
	}
	return s.items[i], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Subtotal is the sum of price * quantity over all lines.
func (s *Store) Subtotal() decimal.Decimal {
	return Subtotal(s.Items())
}

// Summary adds a flat delivery fee to the subtotal. An empty cart has no fee.
func (s *Store) Summary(deliveryFee decimal.Decimal) Summary {
	items := s.Items()
	sub := Subtotal(items)
	fee := deliveryFee
	if len(items) == 0 {
		fee = decimal.Zero
	}
	return Summary{Subtotal: sub, DeliveryFee: fee, Total: sub.Add(fee)}
}

// Subtotal sums price * quantity over lines.
func Subtotal(lines []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.items))
	for i, it := range s.items {
		s.index[it.ItemID] = i
	}
}
