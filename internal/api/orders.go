package api

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-checkout/internal/errs"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
)

// PlaceOrder creates one order. idemKey is sent as the Idempotency-Key header
// when non-empty. A 2xx with an unreadable body yields an order built from req.
// Statuses the client does not know are read as pending.
func (c *Client) PlaceOrder(ctx context.Context, token, idemKey string, req OrderRequest) (*orders.Order, error) {
	var out orderPayload
	err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/api/order/checkout",
		token:   token,
		idemKey: idemKey,
		body:    req,
	}, &out)
	if err != nil {
		if errs.Is(err, errs.KindValidation) && !hasStatus(err) {
			c.logger.Warn("order created but response unreadable", zap.String("idempotency_key", idemKey), zap.Error(err))
			return fallbackOrder(req), nil
		}
		return nil, err
	}
	if err := c.check(out); err != nil {
		c.logger.Warn("order created but response unreadable", zap.String("idempotency_key", idemKey), zap.Error(err))
		return fallbackOrder(req), nil
	}
	o, err := out.toOrder()
	if err != nil {
		c.logger.Warn("order created but response unreadable", zap.String("idempotency_key", idemKey), zap.String("order_id", out.ID.String()), zap.Error(err))
		o = fallbackOrder(req)
		o.ID = out.ID.String()
	}
	return o, nil
}

// UserOrders lists the orders placed by email, newest first as the server returns them.
func (c *Client) UserOrders(ctx context.Context, token, email string) ([]orders.Order, error) {
	var raw []orderPayload
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/order/user/" + seg(email), token: token}, &raw); err != nil {
		return nil, err
	}
	out := make([]orders.Order, 0, len(raw))
	for i := range raw {
		if err := c.check(raw[i]); err != nil {
			return nil, err
		}
		o, err := raw[i].toOrder()
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}

func (p orderPayload) toOrder() (*orders.Order, error) {
	lines, err := orders.ParseLines(p.ItemIDs)
	if err != nil {
		return nil, errs.New(errs.KindValidation, "malformed order items", err)
	}
	return &orders.Order{
		ID:          p.ID.String(),
		UserEmail:   p.UserEmail,
		Lines:       lines,
		TotalAmount: p.TotalAmount,
		Status:      orders.StatusOf(p.Status),
		OrderDate:   p.OrderDate.Time,
	}, nil
}

func fallbackOrder(req OrderRequest) *orders.Order {
	lines := make([]orders.Line, 0, len(req.ItemIDs))
	for _, id := range req.ItemIDs {
		lines = append(lines, orders.Line{ItemID: id})
	}
	return &orders.Order{
		UserEmail:   req.UserEmail,
		Lines:       lines,
		TotalAmount: req.TotalAmount,
		Status:      orders.StatusPending,
	}
}

// hasStatus reports whether err came from a non-2xx response rather than a body decode.
func hasStatus(err error) bool {
	var e *errs.Error
	return errors.As(err, &e) && e.Status != 0
}
