package orders

import (
	"context"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-checkout/internal/errs"
	"github.com/imrishuroy/go-storefront-checkout/internal/logger"
	"github.com/imrishuroy/go-storefront-checkout/internal/session"
)

// Lister is the remote order ledger.
type Lister interface {
	UserOrders(ctx context.Context, token, email string) ([]Order, error)
}

// Credentials is the part of the session the history view needs.
type Credentials interface {
	Credential() (session.Identity, string, error)
	Logout(ctx context.Context) error
}

// History lists the signed-in user's past orders.
type History struct {
	ledger            Lister
	creds             Credentials
	logoutOnForbidden bool
	logger            *zap.Logger
}

type HistoryOption func(*History)

// WithLogoutOnForbidden makes a 403 from the ledger end the session.
func WithLogoutOnForbidden(v bool) HistoryOption {
	return func(h *History) { h.logoutOnForbidden = v }
}

func WithHistoryLogger(l *zap.Logger) HistoryOption {
	return func(h *History) { h.logger = logger.OrNop(l) }
}

func NewHistory(ledger Lister, creds Credentials, opts ...HistoryOption) *History {
	h := &History{ledger: ledger, creds: creds, logoutOnForbidden: true, logger: zap.NewNop()}
	for _, o := range opts {
		o(h)
	}
	return h
}

// List returns the orders of the current user. An anonymous session fails
// before any request is made.
func (h *History) List(ctx context.Context) ([]Order, error) {
	id, token, err := h.creds.Credential()
	if err != nil {
		return nil, err
	}

	list, err := h.ledger.UserOrders(ctx, token, id.Email)
	if err != nil {
		if errs.Is(err, errs.KindAuthorization) && h.logoutOnForbidden {
			h.logger.Warn("order history forbidden, ending session", zap.String("email", id.Email))
			if lerr := h.creds.Logout(ctx); lerr != nil {
				h.logger.Warn("logout after forbidden failed", zap.Error(lerr))
			}
		}
		return nil, err
	}
	return list, nil
}
