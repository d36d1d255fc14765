// Package checkout turns the cart into an order: validate stock, place one
// order, decrement stock per line, then clear the cart.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-checkout/internal/api"
	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
	"github.com/imrishuroy/go-storefront-checkout/internal/cart"
	"github.com/imrishuroy/go-storefront-checkout/internal/errs"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
	"github.com/imrishuroy/go-storefront-checkout/internal/session"
	"github.com/imrishuroy/go-storefront-checkout/internal/validation"
)

var (
	// ErrEmptyCart is returned when checkout is attempted with nothing in the cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCheckoutInProgress is returned when the orchestrator is already running a checkout.
	ErrCheckoutInProgress = errors.New("a checkout is already in progress")
)

// Backend is the remote surface checkout needs. *api.Client satisfies it.
type Backend interface {
	CheckStock(ctx context.Context, token, itemID string, qty int) error
	PlaceOrder(ctx context.Context, token, idemKey string, req api.OrderRequest) (*orders.Order, error)
	UpdateStock(ctx context.Context, token, itemID string, qty int) error
}

// Credentials is the part of the session checkout reads.
type Credentials interface {
	Credential() (session.Identity, string, error)
}

// Journal records each attempt so unreconciled decrements survive the process.
type Journal interface {
	Begin(ctx context.Context, key, userEmail string) (bool, error)
	MarkOrderPlaced(ctx context.Context, key, orderID string, total decimal.Decimal) error
	MarkDone(ctx context.Context, key string) error
	MarkFailed(ctx context.Context, key, note string) error
	AddPendingDecrements(ctx context.Context, key string, itemIDs []string) error
}

// ReconcilePublisher hands failed decrements to the reconciliation worker.
type ReconcilePublisher interface {
	PublishReconcile(ctx context.Context, msg aws.ReconcileMessage) error
}

// StockError reports a line whose requested quantity exceeds remote stock.
type StockError struct {
	ItemID   string
	ItemName string
	Message  string
	Err      error
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: %s", e.ItemName, e.Message)
}

func (e *StockError) Unwrap() error { return e.Err }

// UnreconciledItem is a line whose stock decrement failed after the order was placed.
type UnreconciledItem struct {
	ItemID   string `json:"itemId"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

// DecrementError is returned alongside a receipt when some decrements failed.
// The order exists; stock for Items was not reduced.
type DecrementError struct {
	Items []UnreconciledItem
}

func (e *DecrementError) Error() string {
	return fmt.Sprintf("order placed but %d stock update(s) failed", len(e.Items))
}

// Receipt describes a placed order.
type Receipt struct {
	IdempotencyKey    string             `json:"idempotencyKey"`
	Order             *orders.Order      `json:"order"`
	Lines             []cart.LineItem    `json:"lines"`
	Total             decimal.Decimal    `json:"total"`
	UnreconciledItems []UnreconciledItem `json:"unreconciledItems,omitempty"`
}

// Orchestrator runs checkouts for one cart and one session.
type Orchestrator struct {
	cart    *cart.Store
	creds   Credentials
	backend Backend

	journal   Journal
	publisher ReconcilePublisher
	metrics   *aws.Metrics
	logger    *zap.Logger
	validate  *validatorv10.Validate
	newKey    func() string

	running atomic.Bool
}

type Option func(*Orchestrator)

func WithJournal(j Journal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

func WithPublisher(p ReconcilePublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithMetrics(m *aws.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func New(c *cart.Store, creds Credentials, backend Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cart:     c,
		creds:    creds,
		backend:  backend,
		logger:   zap.NewNop(),
		validate: validation.New(),
		newKey:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Checkout validates stock for every line, places a single order, then
// decrements stock line by line and removes the ordered lines from the cart.
//
// Nothing is placed when any stock check fails. Once the order exists the
// ordered lines leave the cart; decrement failures are neither retried nor rolled back
// and come back as a *DecrementError next to a non-nil receipt.
func (o *Orchestrator) Checkout(ctx context.Context) (*Receipt, error) {
	id, token, err := o.creds.Credential()
	if err != nil {
		return nil, err
	}
	lines := o.cart.Items()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if err := o.validate.Struct(checkoutRequest(id.Email, lines)); err != nil {
		return nil, errs.New(errs.KindValidation, "cart cannot be checked out", err)
	}
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrCheckoutInProgress
	}
	defer o.running.Store(false)

	start := time.Now()
	key := o.newKey()
	log := o.logger.With(zap.String("idempotency_key", key), zap.String("email", id.Email))
	o.count(ctx, aws.MetricCheckoutStarted)
	defer func() {
		if err := o.metrics.RecordLatency(ctx, aws.MetricCheckoutLatency, time.Since(start), nil); err != nil {
			log.Warn("failed to record checkout latency", zap.Error(err))
		}
	}()

	if o.journal != nil {
		if _, err := o.journal.Begin(ctx, key, id.Email); err != nil {
			log.Warn("checkout journal unavailable", zap.Error(err))
		}
	}

	// 1. stock validation
	for _, l := range lines {
		if err := o.backend.CheckStock(ctx, token, l.ItemID, l.Quantity); err != nil {
			o.fail(ctx, log, key, err)
			if errs.Is(err, errs.KindValidation) {
				o.count(ctx, aws.MetricCheckoutStockRejected)
				var apiErr *errs.Error
				errors.As(err, &apiErr)
				return nil, &StockError{ItemID: l.ItemID, ItemName: l.Name, Message: apiErr.Message, Err: err}
			}
			return nil, fmt.Errorf("check stock for %s: %w", l.ItemID, err)
		}
	}

	// 2. order placement
	total := cart.Subtotal(lines)
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ItemID
	}
	order, err := o.backend.PlaceOrder(ctx, token, key, api.OrderRequest{
		UserEmail:   id.Email,
		ItemIDs:     ids,
		TotalAmount: total,
	})
	if err != nil {
		o.fail(ctx, log, key, err)
		return nil, fmt.Errorf("place order: %w", err)
	}
	if order == nil {
		order = &orders.Order{UserEmail: id.Email, TotalAmount: total, Status: orders.StatusPending}
	}
	log = log.With(zap.String("order_id", order.ID))
	log.Info("order placed", zap.String("total", total.StringFixed(2)), zap.Int("lines", len(lines)))
	if o.journal != nil {
		if err := o.journal.MarkOrderPlaced(ctx, key, order.ID, total); err != nil {
			log.Warn("failed to journal placed order", zap.Error(err))
		}
	}

	// 3. stock decrement
	var failed []UnreconciledItem
	for _, l := range lines {
		if err := o.backend.UpdateStock(ctx, token, l.ItemID, l.Quantity); err != nil {
			log.Error("stock decrement failed", zap.String("item_id", l.ItemID), zap.Int("quantity", l.Quantity), zap.Error(err))
			o.count(ctx, aws.MetricStockDecrementFailed)
			failed = append(failed, UnreconciledItem{ItemID: l.ItemID, Name: l.Name, Quantity: l.Quantity, Reason: err.Error()})
		}
	}

	// 4. the order exists, so the ordered lines go regardless of step 3
	o.cart.Consume(lines)

	receipt := &Receipt{
		IdempotencyKey:    key,
		Order:             order,
		Lines:             lines,
		Total:             total,
		UnreconciledItems: failed,
	}

	if len(failed) > 0 {
		o.reconcileLater(ctx, log, key, order.ID, failed)
		return receipt, &DecrementError{Items: failed}
	}

	if o.journal != nil {
		if err := o.journal.MarkDone(ctx, key); err != nil {
			log.Warn("failed to close checkout journal entry", zap.Error(err))
		}
	}
	o.count(ctx, aws.MetricCheckoutSucceeded)
	return receipt, nil
}

// reconcileLater journals the failed decrements and, once they are recorded,
// queues them for the worker. A message is only useful with a pending entry
// behind it, so nothing is published without the journal.
func (o *Orchestrator) reconcileLater(ctx context.Context, log *zap.Logger, key, orderID string, failed []UnreconciledItem) {
	if o.journal == nil {
		log.Warn("no checkout journal, failed decrements stay unreconciled", zap.Int("items", len(failed)))
		return
	}
	ids := make([]string, len(failed))
	for i, f := range failed {
		ids[i] = f.ItemID
	}
	if err := o.journal.AddPendingDecrements(ctx, key, ids); err != nil {
		log.Error("failed to journal pending decrements", zap.Strings("item_ids", ids), zap.Error(err))
		return
	}
	if o.publisher == nil {
		return
	}
	for _, f := range failed {
		msg := aws.ReconcileMessage{
			IdempotencyKey: key,
			OrderID:        orderID,
			ItemID:         f.ItemID,
			Quantity:       f.Quantity,
			CorrelationID:  uuid.NewString(),
		}
		if err := o.publisher.PublishReconcile(ctx, msg); err != nil {
			log.Error("failed to enqueue stock reconciliation", zap.String("item_id", f.ItemID), zap.Error(err))
		}
	}
}

func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, key string, cause error) {
	log.Warn("checkout aborted", zap.Error(cause))
	o.count(ctx, aws.MetricCheckoutFailed)
	if o.journal == nil {
		return
	}
	if err := o.journal.MarkFailed(ctx, key, cause.Error()); err != nil {
		log.Warn("failed to journal aborted checkout", zap.Error(err))
	}
}

func (o *Orchestrator) count(ctx context.Context, name string) {
	if err := o.metrics.RecordCount(ctx, name, nil); err != nil {
		o.logger.Warn("failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}

func checkoutRequest(email string, lines []cart.LineItem) validation.CheckoutRequest {
	req := validation.CheckoutRequest{UserEmail: email, Lines: make([]validation.CheckoutLine, len(lines))}
	for i, l := range lines {
		req.Lines[i] = validation.CheckoutLine{ItemID: l.ItemID, Name: l.Name, Quantity: l.Quantity, Price: l.Price}
	}
	req.TotalAmount = validation.LineTotal(req.Lines)
	return req
}
