package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ID is an identifier the server may encode as a JSON string or number.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	n := json.Number(b)
	if _, err := n.Float64(); err != nil {
		return fmt.Errorf("id: want string or number, got %s", b)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp accepts RFC 3339, zone-less ISO local date-times, plain dates and epoch milliseconds.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if b[0] != '"' {
		ms, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognised format %q", s)
}

// InventoryItem is the server-authoritative catalog entry.
type InventoryItem struct {
	ID       ID              `json:"id" validate:"required"`
	Name     string          `json:"name" validate:"required"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock" validate:"min=0"`
	ImageURL string          `json:"imageUrl"`
}

func inventoryItemValidation(sl validatorv10.StructLevel) {
	it := sl.Current().Interface().(InventoryItem)
	if it.Price.IsNegative() {
		sl.ReportError(it.Price, "price", "Price", "price_non_negative", it.Price.String())
	}
}

// InventoryInput is the body of the admin add/update calls. ID is ignored on add.
type InventoryInput struct {
	ID       string
	Name     string
	Category string
	Price    decimal.Decimal
	Stock    int
	ImageURL string
}

func (in InventoryInput) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID       string      `json:"id,omitempty"`
		Name     string      `json:"name"`
		Category string      `json:"category"`
		Price    json.Number `json:"price"`
		Stock    int         `json:"stock"`
		ImageURL string      `json:"imageUrl"`
	}
	return json.Marshal(wire{
		ID:       in.ID,
		Name:     in.Name,
		Category: in.Category,
		Price:    json.Number(in.Price.String()),
		Stock:    in.Stock,
		ImageURL: in.ImageURL,
	})
}

// RemoteCart is the server-side cart representation.
type RemoteCart struct {
	Items []RemoteCartLine `json:"items" validate:"dive"`
}

type RemoteCartLine struct {
	ItemID   ID              `json:"itemId" validate:"required"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" validate:"min=1"`
	ImageURL string          `json:"imageUrl"`
}

func cartLineValidation(sl validatorv10.StructLevel) {
	l := sl.Current().Interface().(RemoteCartLine)
	if l.Price.IsNegative() {
		sl.ReportError(l.Price, "price", "Price", "price_non_negative", l.Price.String())
	}
}

// OrderRequest is the body of POST /api/order/checkout.
type OrderRequest struct {
	UserEmail   string
	ItemIDs     []string
	TotalAmount decimal.Decimal
}

func (r OrderRequest) MarshalJSON() ([]byte, error) {
	ids := r.ItemIDs
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(struct {
		UserEmail   string      `json:"userEmail"`
		ItemIDs     []string    `json:"itemIds"`
		TotalAmount json.Number `json:"totalAmount"`
	}{r.UserEmail, ids, json.Number(r.TotalAmount.StringFixed(2))})
}

type orderPayload struct {
	ID          ID              `json:"id" validate:"required"`
	UserEmail   string          `json:"userEmail"`
	ItemIDs     []string        `json:"itemIds"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      string          `json:"status"`
	OrderDate   Timestamp       `json:"orderDate"`
}

type stockUpdate struct {
	ItemID            string `json:"itemId"`
	QuantityPurchased int    `json:"quantityPurchased"`
}

type cartAdd struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName,omitempty"`
}

type loginResponse struct {
	Token string `json:"token" validate:"required"`
}
