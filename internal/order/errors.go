package order

import "errors"

// Step errors. Backend failures (non-2xx, timeouts) surface as
// *backend.StatusError or wrapped transport errors and are not redeclared
// here; everything else a step can refuse is one of these sentinels.
var (
	// ErrSessionExpired: the user has no authenticated session; /start is required.
	ErrSessionExpired = errors.New("session expired")
	// ErrAuthRejected: the backend refused the login.
	ErrAuthRejected = errors.New("authentication rejected")

	// ErrNoCatalog: add-to-cart before any product listing was fetched.
	ErrNoCatalog = errors.New("catalog not viewed")
	// ErrUnknownProduct: the referenced product is not in the last fetched
	// catalog. The catalog may have changed since the keyboard was rendered;
	// the user must re-view products.
	ErrUnknownProduct = errors.New("product not in catalog")
	// ErrNoProducts: the backend catalog is empty.
	ErrNoProducts = errors.New("no products available")

	// ErrEmptyCart: the operation needs at least one cart line.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNoLocation: the operation needs a delivery location on the session.
	ErrNoLocation = errors.New("delivery location not set")
	// ErrNoQuote: confirm was attempted without a previously computed quote.
	ErrNoQuote = errors.New("no pending quote")
)

// IsPrecondition reports whether err is a workflow invariant violation, as
// opposed to a stale reference or a backend failure.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrNoLocation) ||
		errors.Is(err, ErrNoQuote) ||
		errors.Is(err, ErrNoCatalog)
}
