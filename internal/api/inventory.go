package api

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// Catalog lists every inventory item. It is the only unauthenticated inventory call.
func (c *Client) Catalog(ctx context.Context) ([]InventoryItem, error) {
	var items []InventoryItem
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/inventory/all", public: true}, &items); err != nil {
		return nil, err
	}
	for i := range items {
		if err := c.check(items[i]); err != nil {
			c.logger.Warn("catalog item rejected", zap.Int("index", i), zap.String("item_id", items[i].ID.String()))
			return nil, err
		}
	}
	return items, nil
}

// CheckStock succeeds when qty units of itemID are available. A 400 carries
// the server's reason, e.g. "Insufficient stock for item: X".
func (c *Client) CheckStock(ctx context.Context, token, itemID string, qty int) error {
	return c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/inventory/check-stock/" + seg(itemID) + "/" + strconv.Itoa(qty),
		token:  token,
	}, nil)
}

// UpdateStock decrements itemID's stock by qty.
func (c *Client) UpdateStock(ctx context.Context, token, itemID string, qty int) error {
	return c.do(ctx, request{
		method: http.MethodPut,
		path:   "/api/inventory/update-stock",
		token:  token,
		body:   stockUpdate{ItemID: itemID, QuantityPurchased: qty},
	}, nil)
}

func (c *Client) AddInventoryItem(ctx context.Context, token string, in InventoryInput) error {
	in.ID = ""
	return c.do(ctx, request{method: http.MethodPost, path: "/api/inventory/add", token: token, body: in}, nil)
}

func (c *Client) UpdateInventoryItem(ctx context.Context, token string, in InventoryInput) error {
	return c.do(ctx, request{method: http.MethodPut, path: "/api/inventory/update", token: token, body: in}, nil)
}

func (c *Client) DeleteInventoryItem(ctx context.Context, token, itemID string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/api/inventory/delete/" + seg(itemID),
		token:  token,
	}, nil)
}
