package api

import "github.com/imrishuroy/go-storefront-checkout/internal/errs"

// Error is the classified failure every client method returns.
type Error = errs.Error

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind errs.Kind) bool {
	return errs.Is(err, kind)
}
