// Package order implements the conversation workflow: authentication,
// location capture, product browsing, cart mutation, checkout and tracking.
// Every step either completes fully or leaves Session and Cart untouched.
package order

import (
	"context"
	"fmt"
	"log/slog"

	"foodbot/internal/backend"
	"foodbot/internal/geo"
	"foodbot/internal/logger"
	"foodbot/internal/session"
)

// Backend is the slice of the commerce client the workflow depends on.
type Backend interface {
	Login(ctx context.Context, req backend.LoginRequest) (backend.LoginResult, error)
	Products(ctx context.Context) ([]backend.Product, error)
	CreateAddress(ctx context.Context, token string, req backend.AddressRequest) (int64, error)
	AssociateAddress(ctx context.Context, token string, customerID, addressID int64) error
	CreateOrder(ctx context.Context, token string, req backend.OrderRequest) (int64, error)
	CustomerOrders(ctx context.Context, token string, customerID int64) ([]backend.Order, error)
	Order(ctx context.Context, token string, orderID int64) (backend.Order, error)
}

// CartView is the rendered-ready result of a cart view: the lines plus the
// freshly computed quote.
type CartView struct {
	Lines []session.CartLine
	Quote session.Quote
}

// Receipt reports a successfully placed order.
type Receipt struct {
	OrderID int64
	Total   float64
}

// Workflow drives the per-user ordering state machine. Callers must hold the
// user's serialization lock for the duration of any step; the workflow never
// locks by itself.
type Workflow struct {
	backend    Backend
	sessions   session.Store
	carts      session.CartStore
	restaurant geo.Coord
	tariff     geo.Tariff
	log        *slog.Logger
}

// NewWorkflow wires the workflow with its stores and collaborators.
func NewWorkflow(b Backend, sessions session.Store, carts session.CartStore, restaurant geo.Coord, tariff geo.Tariff) *Workflow {
	return &Workflow{
		backend:    b,
		sessions:   sessions,
		carts:      carts,
		restaurant: restaurant,
		tariff:     tariff,
		log:        logger.Component("workflow"),
	}
}

// Start authenticates the Telegram identity against the backend and creates
// (or refreshes) the session together with an empty cart. On failure no
// session is created and the user stays unauthenticated.
func (w *Workflow) Start(ctx context.Context, userID int64, firstName string) (*session.Session, error) {
	res, err := w.backend.Login(ctx, backend.LoginRequest{
		TelegramID: fmt.Sprintf("%d", userID),
		Name:       firstName,
		LastName:   "User",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthRejected, err)
	}

	ses, ok := w.sessions.Get(userID)
	if !ok {
		ses = &session.Session{UserID: userID}
	}
	ses.State = session.StateMainMenu
	ses.DisplayName = firstName
	ses.AccessToken = res.AccessToken
	if ses.CustomerID == 0 {
		ses.CustomerID = res.Customer.ID
	} else if ses.CustomerID != res.Customer.ID {
		// The backend must resolve the same customer for the same Telegram id.
		w.log.Warn("customer id changed on re-login",
			slog.String("event", "workflow.start"),
			slog.Int64("user_id", userID),
			slog.Int64("old", ses.CustomerID),
			slog.Int64("new", res.Customer.ID),
		)
	}
	w.sessions.Upsert(userID, ses)
	w.carts.Upsert(userID, []session.CartLine{})

	w.log.Info("session started",
		slog.String("event", "workflow.start"),
		slog.Int64("user_id", userID),
		slog.Int64("customer_id", ses.CustomerID),
	)
	return ses, nil
}

// RequestLocation moves the session into the awaiting-location state so the
// next shared location is treated as the delivery point.
func (w *Workflow) RequestLocation(userID int64) (*session.Session, error) {
	ses, err := w.authenticated(userID)
	if err != nil {
		return nil, err
	}
	ses.State = session.StateAwaitingLocation
	w.sessions.Upsert(userID, ses)
	return ses, nil
}

// SaveLocation persists the shared coordinates as a backend address,
// associates it to the customer, and stores both on the session. Any
// intermediate backend failure leaves the session unchanged.
func (w *Workflow) SaveLocation(ctx context.Context, userID int64, lat, lng float64) (*session.Session, error) {
	ses, err := w.authenticated(userID)
	if err != nil {
		return nil, err
	}

	addressID, err := w.backend.CreateAddress(ctx, ses.AccessToken, backend.AddressRequest{
		Name:        "Dirección",
		Description: "Ubicación de entrega",
		CoordinateX: lat,
		CoordinateY: lng,
	})
	if err != nil {
		return nil, fmt.Errorf("save address: %w", err)
	}
	if err := w.backend.AssociateAddress(ctx, ses.AccessToken, ses.CustomerID, addressID); err != nil {
		return nil, fmt.Errorf("associate address: %w", err)
	}

	ses.DeliveryLocation = &geo.Coord{Lat: lat, Lng: lng}
	ses.DeliveryAddressID = addressID
	ses.State = session.StateMainMenu
	w.sessions.Upsert(userID, ses)

	w.log.Info("location saved",
		slog.String("event", "workflow.location"),
		slog.Int64("user_id", userID),
		slog.Int64("address_id", addressID),
	)
	return ses, nil
}

// BrowseProducts fetches the catalog, caches it on the session as the
// snapshot that add-to-cart references are resolved against, and moves the
// session into the viewing-products state.
func (w *Workflow) BrowseProducts(ctx context.Context, userID int64) ([]backend.Product, error) {
	ses, err := w.authenticated(userID)
	if err != nil {
		return nil, err
	}

	products, err := w.backend.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	if len(products) == 0 {
		return nil, ErrNoProducts
	}

	ses.CatalogSnapshot = products
	ses.State = session.StateViewingProducts
	w.sessions.Upsert(userID, ses)
	return products, nil
}

// AddToCart resolves the product against the last fetched catalog and either
// increments the existing line or appends a new one. Any pending quote goes
// stale and is dropped.
func (w *Workflow) AddToCart(userID int64, productID int64) (session.CartLine, error) {
	ses, err := w.authenticated(userID)
	if err != nil {
		return session.CartLine{}, err
	}
	if len(ses.CatalogSnapshot) == 0 {
		return session.CartLine{}, ErrNoCatalog
	}
	product, ok := ses.CatalogProduct(productID)
	if !ok {
		return session.CartLine{}, fmt.Errorf("%w: id %d", ErrUnknownProduct, productID)
	}

	lines, _ := w.carts.Get(userID)
	merged := false
	var line session.CartLine
	for i := range lines {
		if lines[i].ProductID == product.ID {
			lines[i].Quantity++
			line = lines[i]
			merged = true
			break
		}
	}
	if !merged {
		line = session.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Currency:  product.Currency,
			Quantity:  1,
		}
		lines = append(lines, line)
	}
	w.carts.Upsert(userID, lines)

	ses.PendingQuote = nil
	w.sessions.Upsert(userID, ses)
	return line, nil
}

// ViewCart recomputes the pricing quote from the cart and the delivery
// location, caches it on the session, and moves into the viewing-cart state.
func (w *Workflow) ViewCart(userID int64) (*CartView, error) {
	ses, err := w.authenticated(userID)
	if err != nil {
		return nil, err
	}
	lines, _ := w.carts.Get(userID)
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if ses.DeliveryLocation == nil {
		return nil, ErrNoLocation
	}

	distance := geo.DistanceKm(w.restaurant, *ses.DeliveryLocation)
	fee := geo.DeliveryFee(distance, w.tariff)
	subtotal := session.Subtotal(lines)

	quote := session.Quote{
		Subtotal:    subtotal,
		DistanceKm:  distance,
		DeliveryFee: fee,
		Total:       subtotal + fee,
	}
	ses.PendingQuote = &quote
	ses.State = session.StateViewingCart
	w.sessions.Upsert(userID, ses)

	return &CartView{Lines: lines, Quote: quote}, nil
}

// Confirm submits the order built from the cart, the stored address and the
// pending quote. On success the cart is emptied and the session returns to
// the main menu with the order id recorded; on failure nothing changes.
func (w *Workflow) Confirm(ctx context.Context, userID int64) (*Receipt, error) {
	ses, err := w.authenticated(userID)
	if err != nil {
		return nil, err
	}
	lines, _ := w.carts.Get(userID)
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if ses.DeliveryAddressID == 0 {
		return nil, ErrNoLocation
	}
	if ses.PendingQuote == nil {
		return nil, ErrNoQuote
	}

	req := backend.OrderRequest{
		CustomerID:    ses.CustomerID,
		AddressID:     ses.DeliveryAddressID,
		DeliveryPrice: ses.PendingQuote.DeliveryFee,
		Products:      make([]backend.OrderProduct, 0, len(lines)),
	}
	for _, l := range lines {
		req.Products = append(req.Products, backend.OrderProduct{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	orderID, err := w.backend.CreateOrder(ctx, ses.AccessToken, req)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	receipt := &Receipt{OrderID: orderID, Total: ses.PendingQuote.Total}
	ses.LastOrderID = orderID
	ses.PendingQuote = nil
	ses.State = session.StateMainMenu
	w.sessions.Upsert(userID, ses)
	w.carts.Upsert(userID, []session.CartLine{})

	w.log.Info("order placed",
		slog.String("event", "workflow.confirm"),
		slog.Int64("user_id", userID),
		slog.Int64("order_id", orderID),
		slog.Float64("total", receipt.Total),
	)
	return receipt, nil
}

// ClearCart empties the cart, drops the stale quote and returns the session
// to the main menu.
func (w *Workflow) ClearCart(userID int64) (*session.Session, error) {
	ses, err := w.authenticated(userID)
	if err != nil {
		return nil, err
	}
	w.carts.Upsert(userID, []session.CartLine{})
	ses.PendingQuote = nil
	ses.State = session.StateMainMenu
	w.sessions.Upsert(userID, ses)
	return ses, nil
}

// ListOrders fetches the customer's order history. Read-only; the session
// stays in (or returns to) the main menu.
func (w *Workflow) ListOrders(ctx context.Context, userID int64) ([]backend.Order, error) {
	ses, err := w.authenticated(userID)
	if err != nil {
		return nil, err
	}
	orders, err := w.backend.CustomerOrders(ctx, ses.AccessToken, ses.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}
	ses.State = session.StateMainMenu
	w.sessions.Upsert(userID, ses)
	return orders, nil
}

// Track fetches one order with its delivery and driver details and moves the
// session into the tracking state.
func (w *Workflow) Track(ctx context.Context, userID int64, orderID int64) (*backend.Order, error) {
	ses, err := w.authenticated(userID)
	if err != nil {
		return nil, err
	}
	o, err := w.backend.Order(ctx, ses.AccessToken, orderID)
	if err != nil {
		return nil, fmt.Errorf("track order: %w", err)
	}
	ses.State = session.StateTracking
	w.sessions.Upsert(userID, ses)
	return &o, nil
}

// BackToMenu returns the session to the main menu without touching the cart.
func (w *Workflow) BackToMenu(userID int64) (*session.Session, error) {
	ses, err := w.authenticated(userID)
	if err != nil {
		return nil, err
	}
	ses.State = session.StateMainMenu
	w.sessions.Upsert(userID, ses)
	return ses, nil
}

// Session exposes the stored session for rendering.
func (w *Workflow) Session(userID int64) (*session.Session, bool) {
	return w.sessions.Get(userID)
}

func (w *Workflow) authenticated(userID int64) (*session.Session, error) {
	ses, ok := w.sessions.Get(userID)
	if !ok || !ses.Authenticated() {
		return nil, ErrSessionExpired
	}
	return ses, nil
}
