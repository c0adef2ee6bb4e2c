// Package session holds the per-user conversation state and shopping cart.
// Everything here is in-memory only: a restart loses all sessions, and the
// backend remains the system of record for customers, addresses and orders.
package session

import (
	"foodbot/internal/backend"
	"foodbot/internal/geo"
)

// State identifies where a user is in the ordering conversation.
type State string

const (
	StateUnauthenticated      State = "unauthenticated"
	StateMainMenu             State = "main_menu"
	StateViewingProducts      State = "viewing_products"
	StateAwaitingLocation     State = "awaiting_location"
	StateViewingCart          State = "viewing_cart"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateTracking             State = "tracking"
)

// Quote is the derived pricing snapshot for the current cart and delivery
// location. It goes stale on any cart mutation and is recomputed on every
// cart view.
type Quote struct {
	Subtotal    float64
	DistanceKm  float64
	DeliveryFee float64
	Total       float64
}

// Session is one user's conversation state. UserID and DisplayName are fixed
// at creation; CustomerID and AccessToken are set once by authentication.
type Session struct {
	State       State
	UserID      int64
	DisplayName string

	CustomerID  int64
	AccessToken string

	DeliveryLocation  *geo.Coord
	DeliveryAddressID int64

	CatalogSnapshot []backend.Product
	PendingQuote    *Quote
	LastOrderID     int64
}

// Authenticated reports whether the session carries a usable access token.
func (s *Session) Authenticated() bool {
	return s != nil && s.AccessToken != ""
}

// CatalogProduct resolves a product id against the last fetched catalog.
func (s *Session) CatalogProduct(productID int64) (backend.Product, bool) {
	if s == nil {
		return backend.Product{}, false
	}
	for _, p := range s.CatalogSnapshot {
		if p.ID == productID {
			return p, true
		}
	}
	return backend.Product{}, false
}

// CartLine is one selected product with its quantity. A cart never holds two
// lines for the same product; re-adding increments the quantity.
type CartLine struct {
	ProductID int64
	Name      string
	UnitPrice float64
	Currency  string
	Quantity  int
}

// Subtotal sums price times quantity over the given cart lines.
func Subtotal(lines []CartLine) float64 {
	var total float64
	for _, l := range lines {
		total += l.UnitPrice * float64(l.Quantity)
	}
	return total
}
