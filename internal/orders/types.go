package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the server-assigned lifecycle state of an order.
type Status string

// Order statuses
const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// ParseStatus accepts the status in any letter case.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusCompleted, StatusRejected:
		return st, nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}

// StatusOf is ParseStatus for server data: anything it does not know,
// including an empty value, is read as pending.
func StatusOf(s string) Status {
	st, err := ParseStatus(s)
	if err != nil {
		return StatusPending
	}
	return st
}

// Line is one purchased item as recorded on an order.
type Line struct {
	ItemID   string          `json:"itemId"`
	Name     string          `json:"name,omitempty"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl,omitempty"`
}

// Order is a placed order. It is immutable once returned by the server.
type Order struct {
	ID          string          `json:"id"`
	UserEmail   string          `json:"userEmail"`
	Lines       []Line          `json:"lines"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      Status          `json:"status"`
	OrderDate   time.Time       `json:"orderDate"`
}

// DistinctItems counts the different item ids on the order.
func (o Order) DistinctItems() int {
	seen := make(map[string]struct{}, len(o.Lines))
	for _, l := range o.Lines {
		seen[l.ItemID] = struct{}{}
	}
	return len(seen)
}
