package idempotency

import "time"

// Attempt status values. An attempt moves IN_PROGRESS -> ORDER_PLACED -> DONE,
// through RECONCILING when stock decrements are left pending, or to FAILED
// when no order was placed.
const (
	StatusInProgress  = "IN_PROGRESS"
	StatusOrderPlaced = "ORDER_PLACED"
	StatusReconciling = "RECONCILING"
	StatusDone        = "DONE"
	StatusFailed      = "FAILED"
)

// Attempt is one checkout as recorded in the journal table, keyed by the
// idempotency key sent with the order.
type Attempt struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	UserEmail      string    `dynamodbav:"user_email"`
	OrderID        string    `dynamodbav:"order_id,omitempty"`
	Total          string    `dynamodbav:"total,omitempty"`
	PendingItems   []string  `dynamodbav:"pending_items,stringset,omitempty"`
	InflightItems  []string  `dynamodbav:"inflight_items,stringset,omitempty"`
	Note           string    `dynamodbav:"note,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}

// Pending reports whether itemID still awaits its stock decrement.
func (a *Attempt) Pending(itemID string) bool {
	for _, id := range a.PendingItems {
		if id == itemID {
			return true
		}
	}
	return false
}

// InFlight reports whether a worker has claimed itemID and not yet finished it.
func (a *Attempt) InFlight(itemID string) bool {
	for _, id := range a.InflightItems {
		if id == itemID {
			return true
		}
	}
	return false
}
