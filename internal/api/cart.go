package api

import (
	"context"
	"net/http"
)

// RemoteCart fetches the server-side cart for email.
func (c *Client) RemoteCart(ctx context.Context, token, email string) (*RemoteCart, error) {
	var out RemoteCart
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/cart/user/" + seg(email), token: token}, &out); err != nil {
		return nil, err
	}
	if err := c.check(out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddToRemoteCart(ctx context.Context, token, email, itemID string, qty int) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/cart/add/" + seg(email),
		token:  token,
		body:   cartAdd{ItemID: itemID, Quantity: qty},
	}, nil)
}

func (c *Client) RemoveFromRemoteCart(ctx context.Context, token, email, itemID string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/api/cart/remove/" + seg(email) + "/" + seg(itemID),
		token:  token,
	}, nil)
}
