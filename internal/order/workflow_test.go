package order

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"foodbot/internal/backend"
	"foodbot/internal/geo"
	"foodbot/internal/session"
)

var restaurant = geo.Coord{Lat: -16.389385, Lng: -68.119294}

type stubBackend struct {
	loginRes  backend.LoginResult
	loginErr  error
	products  []backend.Product
	addressID int64

	createAddressErr error
	associateErr     error
	createOrderErr   error

	orderID      int64
	orderCalls   atomic.Int32
	lastOrderReq backend.OrderRequest
	reqMu        sync.Mutex

	customerOrders []backend.Order
	trackedOrder   backend.Order
}

func (s *stubBackend) Login(_ context.Context, _ backend.LoginRequest) (backend.LoginResult, error) {
	return s.loginRes, s.loginErr
}

func (s *stubBackend) Products(_ context.Context) ([]backend.Product, error) {
	return s.products, nil
}

func (s *stubBackend) CreateAddress(_ context.Context, _ string, _ backend.AddressRequest) (int64, error) {
	if s.createAddressErr != nil {
		return 0, s.createAddressErr
	}
	return s.addressID, nil
}

func (s *stubBackend) AssociateAddress(_ context.Context, _ string, _, _ int64) error {
	return s.associateErr
}

func (s *stubBackend) CreateOrder(_ context.Context, _ string, req backend.OrderRequest) (int64, error) {
	if s.createOrderErr != nil {
		return 0, s.createOrderErr
	}
	s.orderCalls.Add(1)
	s.reqMu.Lock()
	s.lastOrderReq = req
	s.reqMu.Unlock()
	return s.orderID, nil
}

func (s *stubBackend) CustomerOrders(_ context.Context, _ string, _ int64) ([]backend.Order, error) {
	return s.customerOrders, nil
}

func (s *stubBackend) Order(_ context.Context, _ string, _ int64) (backend.Order, error) {
	return s.trackedOrder, nil
}

func newTestWorkflow(b *stubBackend) (*Workflow, session.Store, session.CartStore) {
	sessions := session.NewMemoryStore()
	carts := session.NewMemoryCartStore()
	w := NewWorkflow(b, sessions, carts, restaurant, geo.DefaultTariff())
	return w, sessions, carts
}

func defaultStub() *stubBackend {
	return &stubBackend{
		loginRes: backend.LoginResult{
			AccessToken: "t1",
			Customer:    backend.Customer{ID: 42, Name: "Ana"},
		},
		products: []backend.Product{
			{ID: 3, Name: "Pizza", Price: 10, Currency: "USD", Description: "Napolitana"},
			{ID: 4, Name: "Soda", Price: 2.5, Currency: "USD", Description: "500ml"},
		},
		addressID: 9,
		orderID:   1001,
	}
}

// authenticate, share a location and browse the catalog for user 7.
func startedUser(t *testing.T, w *Workflow) int64 {
	t.Helper()
	const userID = int64(7)
	if _, err := w.Start(context.Background(), userID, "Ana"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := w.SaveLocation(context.Background(), userID, -16.389385, -68.119294); err != nil {
		t.Fatalf("SaveLocation() error = %v", err)
	}
	if _, err := w.BrowseProducts(context.Background(), userID); err != nil {
		t.Fatalf("BrowseProducts() error = %v", err)
	}
	return userID
}

func TestStartCreatesSessionAndCart(t *testing.T) {
	w, sessions, carts := newTestWorkflow(defaultStub())

	ses, err := w.Start(context.Background(), 7, "Ana")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if ses.State != session.StateMainMenu {
		t.Errorf("state = %s, want %s", ses.State, session.StateMainMenu)
	}
	if ses.CustomerID != 42 || ses.AccessToken != "t1" {
		t.Errorf("identity = %d/%q", ses.CustomerID, ses.AccessToken)
	}

	if _, ok := sessions.Get(7); !ok {
		t.Error("session not stored")
	}
	lines, ok := carts.Get(7)
	if !ok || len(lines) != 0 {
		t.Errorf("cart = %v, %v; want stored empty cart", lines, ok)
	}
}

func TestStartAuthFailure(t *testing.T) {
	stub := defaultStub()
	stub.loginErr = &backend.StatusError{Endpoint: "POST /auth/telegram-login", Status: http.StatusUnauthorized}
	w, sessions, _ := newTestWorkflow(stub)

	_, err := w.Start(context.Background(), 7, "Ana")
	if !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("Start() error = %v, want ErrAuthRejected", err)
	}
	if _, ok := sessions.Get(7); ok {
		t.Error("session stored despite auth failure")
	}
}

func TestStartKeepsCustomerID(t *testing.T) {
	stub := defaultStub()
	w, _, _ := newTestWorkflow(stub)

	if _, err := w.Start(context.Background(), 7, "Ana"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	stub.loginRes.Customer.ID = 43
	ses, err := w.Start(context.Background(), 7, "Ana")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if ses.CustomerID != 42 {
		t.Errorf("customer id changed to %d, want immutable 42", ses.CustomerID)
	}
}

func TestSaveLocationWithoutSession(t *testing.T) {
	w, _, _ := newTestWorkflow(defaultStub())
	_, err := w.SaveLocation(context.Background(), 7, -16.4, -68.1)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("SaveLocation() error = %v, want ErrSessionExpired", err)
	}
}

func TestSaveLocationAssociateFailureLeavesSessionUnchanged(t *testing.T) {
	stub := defaultStub()
	stub.associateErr = &backend.StatusError{Endpoint: "POST /customers/42/addresses/9", Status: http.StatusBadGateway}
	w, sessions, _ := newTestWorkflow(stub)

	if _, err := w.Start(context.Background(), 7, "Ana"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	_, err := w.SaveLocation(context.Background(), 7, -16.4, -68.1)
	var statusErr *backend.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("SaveLocation() error = %v, want *StatusError", err)
	}

	ses, _ := sessions.Get(7)
	if ses.DeliveryLocation != nil || ses.DeliveryAddressID != 0 {
		t.Errorf("partial state committed: %+v", ses)
	}
}

func TestAddToCartMergesLines(t *testing.T) {
	w, _, carts := newTestWorkflow(defaultStub())
	userID := startedUser(t, w)

	if _, err := w.AddToCart(userID, 3); err != nil {
		t.Fatalf("AddToCart() error = %v", err)
	}
	line, err := w.AddToCart(userID, 3)
	if err != nil {
		t.Fatalf("AddToCart() error = %v", err)
	}
	if line.Quantity != 2 {
		t.Errorf("quantity = %d, want 2", line.Quantity)
	}

	lines, _ := carts.Get(userID)
	if len(lines) != 1 {
		t.Fatalf("cart has %d lines, want 1", len(lines))
	}
	if lines[0].ProductID != 3 || lines[0].Quantity != 2 {
		t.Errorf("line = %+v", lines[0])
	}
}

func TestAddToCartUnknownProduct(t *testing.T) {
	w, _, carts := newTestWorkflow(defaultStub())
	userID := startedUser(t, w)

	_, err := w.AddToCart(userID, 99)
	if !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("AddToCart() error = %v, want ErrUnknownProduct", err)
	}
	if lines, _ := carts.Get(userID); len(lines) != 0 {
		t.Errorf("cart mutated on unknown product: %v", lines)
	}
}

func TestAddToCartBeforeBrowsing(t *testing.T) {
	w, _, _ := newTestWorkflow(defaultStub())
	if _, err := w.Start(context.Background(), 7, "Ana"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	_, err := w.AddToCart(7, 3)
	if !errors.Is(err, ErrNoCatalog) {
		t.Fatalf("AddToCart() error = %v, want ErrNoCatalog", err)
	}
}

func TestAddToCartInvalidatesQuote(t *testing.T) {
	w, sessions, _ := newTestWorkflow(defaultStub())
	userID := startedUser(t, w)

	if _, err := w.AddToCart(userID, 3); err != nil {
		t.Fatalf("AddToCart() error = %v", err)
	}
	if _, err := w.ViewCart(userID); err != nil {
		t.Fatalf("ViewCart() error = %v", err)
	}
	ses, _ := sessions.Get(userID)
	if ses.PendingQuote == nil {
		t.Fatal("quote not cached after ViewCart")
	}

	if _, err := w.AddToCart(userID, 4); err != nil {
		t.Fatalf("AddToCart() error = %v", err)
	}
	ses, _ = sessions.Get(userID)
	if ses.PendingQuote != nil {
		t.Error("stale quote kept after cart mutation")
	}
}

func TestViewCartAtRestaurantLocation(t *testing.T) {
	w, _, _ := newTestWorkflow(defaultStub())
	userID := startedUser(t, w)
	if _, err := w.AddToCart(userID, 3); err != nil {
		t.Fatalf("AddToCart() error = %v", err)
	}

	view, err := w.ViewCart(userID)
	if err != nil {
		t.Fatalf("ViewCart() error = %v", err)
	}
	if view.Quote.DistanceKm > 0.001 {
		t.Errorf("distance = %f, want ~0", view.Quote.DistanceKm)
	}
	if view.Quote.DeliveryFee != 5.0 {
		t.Errorf("fee = %f, want 5.0", view.Quote.DeliveryFee)
	}
	if view.Quote.Total != 15.0 {
		t.Errorf("total = %f, want 15.0", view.Quote.Total)
	}
}

func TestViewCartEmpty(t *testing.T) {
	w, _, _ := newTestWorkflow(defaultStub())
	userID := startedUser(t, w)

	_, err := w.ViewCart(userID)
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("ViewCart() error = %v, want ErrEmptyCart", err)
	}
	if !IsPrecondition(err) {
		t.Error("empty cart not classified as precondition")
	}
}

func TestViewCartWithoutLocation(t *testing.T) {
	w, _, _ := newTestWorkflow(defaultStub())
	if _, err := w.Start(context.Background(), 7, "Ana"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := w.BrowseProducts(context.Background(), 7); err != nil {
		t.Fatalf("BrowseProducts() error = %v", err)
	}
	if _, err := w.AddToCart(7, 3); err != nil {
		t.Fatalf("AddToCart() error = %v", err)
	}

	_, err := w.ViewCart(7)
	if !errors.Is(err, ErrNoLocation) {
		t.Fatalf("ViewCart() error = %v, want ErrNoLocation", err)
	}
}

func TestConfirmHappyPath(t *testing.T) {
	stub := defaultStub()
	w, sessions, carts := newTestWorkflow(stub)
	userID := startedUser(t, w)
	if _, err := w.AddToCart(userID, 3); err != nil {
		t.Fatalf("AddToCart() error = %v", err)
	}
	if _, err := w.ViewCart(userID); err != nil {
		t.Fatalf("ViewCart() error = %v", err)
	}

	receipt, err := w.Confirm(context.Background(), userID)
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if receipt.OrderID != 1001 || receipt.Total != 15.0 {
		t.Errorf("receipt = %+v", receipt)
	}

	stub.reqMu.Lock()
	req := stub.lastOrderReq
	stub.reqMu.Unlock()
	if req.CustomerID != 42 || req.AddressID != 9 || req.DeliveryPrice != 5.0 {
		t.Errorf("order request = %+v", req)
	}
	if len(req.Products) != 1 || req.Products[0].ProductID != 3 || req.Products[0].Quantity != 1 {
		t.Errorf("order products = %+v", req.Products)
	}

	ses, _ := sessions.Get(userID)
	if ses.State != session.StateMainMenu || ses.LastOrderID != 1001 || ses.PendingQuote != nil {
		t.Errorf("post-checkout session = %+v", ses)
	}
	if lines, _ := carts.Get(userID); len(lines) != 0 {
		t.Errorf("cart not cleared: %v", lines)
	}
}

func TestConfirmPreconditions(t *testing.T) {
	t.Run("empty cart", func(t *testing.T) {
		w, _, _ := newTestWorkflow(defaultStub())
		userID := startedUser(t, w)
		_, err := w.Confirm(context.Background(), userID)
		if !errors.Is(err, ErrEmptyCart) {
			t.Fatalf("Confirm() error = %v, want ErrEmptyCart", err)
		}
	})

	t.Run("no address", func(t *testing.T) {
		w, _, _ := newTestWorkflow(defaultStub())
		if _, err := w.Start(context.Background(), 7, "Ana"); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if _, err := w.BrowseProducts(context.Background(), 7); err != nil {
			t.Fatalf("BrowseProducts() error = %v", err)
		}
		if _, err := w.AddToCart(7, 3); err != nil {
			t.Fatalf("AddToCart() error = %v", err)
		}
		_, err := w.Confirm(context.Background(), 7)
		if !errors.Is(err, ErrNoLocation) {
			t.Fatalf("Confirm() error = %v, want ErrNoLocation", err)
		}
	})

	t.Run("no quote", func(t *testing.T) {
		w, _, _ := newTestWorkflow(defaultStub())
		userID := startedUser(t, w)
		if _, err := w.AddToCart(userID, 3); err != nil {
			t.Fatalf("AddToCart() error = %v", err)
		}
		_, err := w.Confirm(context.Background(), userID)
		if !errors.Is(err, ErrNoQuote) {
			t.Fatalf("Confirm() error = %v, want ErrNoQuote", err)
		}
	})
}

func TestConfirmBackendFailureKeepsCart(t *testing.T) {
	stub := defaultStub()
	w, sessions, carts := newTestWorkflow(stub)
	userID := startedUser(t, w)
	if _, err := w.AddToCart(userID, 3); err != nil {
		t.Fatalf("AddToCart() error = %v", err)
	}
	if _, err := w.ViewCart(userID); err != nil {
		t.Fatalf("ViewCart() error = %v", err)
	}

	stub.createOrderErr = &backend.StatusError{Endpoint: "POST /orders", Status: http.StatusInternalServerError}
	_, err := w.Confirm(context.Background(), userID)
	var statusErr *backend.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Confirm() error = %v, want *StatusError", err)
	}

	if lines, _ := carts.Get(userID); len(lines) != 1 {
		t.Errorf("cart changed on failed confirm: %v", lines)
	}
	ses, _ := sessions.Get(userID)
	if ses.LastOrderID != 0 || ses.PendingQuote == nil {
		t.Errorf("session changed on failed confirm: %+v", ses)
	}
}

// A double-tap on confirm must produce exactly one backend order. The second
// attempt runs after the first inside the user lock and fails the empty-cart
// precondition.
func TestDoubleConfirmPlacesOneOrder(t *testing.T) {
	stub := defaultStub()
	w, _, _ := newTestWorkflow(stub)
	userID := startedUser(t, w)
	if _, err := w.AddToCart(userID, 3); err != nil {
		t.Fatalf("AddToCart() error = %v", err)
	}
	if _, err := w.ViewCart(userID); err != nil {
		t.Fatalf("ViewCart() error = %v", err)
	}

	locker := session.NewLocker()
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock(userID)
			defer unlock()
			_, _ = w.Confirm(context.Background(), userID)
		}()
	}
	wg.Wait()

	if calls := stub.orderCalls.Load(); calls != 1 {
		t.Fatalf("backend order calls = %d, want exactly 1", calls)
	}
}

func TestClearCart(t *testing.T) {
	w, sessions, carts := newTestWorkflow(defaultStub())
	userID := startedUser(t, w)
	if _, err := w.AddToCart(userID, 3); err != nil {
		t.Fatalf("AddToCart() error = %v", err)
	}

	if _, err := w.ClearCart(userID); err != nil {
		t.Fatalf("ClearCart() error = %v", err)
	}
	if lines, _ := carts.Get(userID); len(lines) != 0 {
		t.Errorf("cart not emptied: %v", lines)
	}
	ses, _ := sessions.Get(userID)
	if ses.State != session.StateMainMenu {
		t.Errorf("state = %s", ses.State)
	}
}

func TestTrackAndListOrders(t *testing.T) {
	stub := defaultStub()
	stub.customerOrders = []backend.Order{{ID: 1001, Total: 15, OrderStatus: backend.OrderStatus{Name: "PENDING"}}}
	stub.trackedOrder = backend.Order{
		ID:          1001,
		Total:       15,
		OrderStatus: backend.OrderStatus{Name: "IN_TRANSIT"},
		Deliveries:  []backend.Delivery{{Driver: &backend.Driver{Name: "Luis", LastName: "Perez", IsAvailable: true}}},
	}
	w, sessions, _ := newTestWorkflow(stub)
	userID := startedUser(t, w)

	orders, err := w.ListOrders(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if len(orders) != 1 || orders[0].ID != 1001 {
		t.Errorf("orders = %+v", orders)
	}

	o, err := w.Track(context.Background(), userID, 1001)
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if o.OrderStatus.Name != "IN_TRANSIT" {
		t.Errorf("status = %q", o.OrderStatus.Name)
	}
	ses, _ := sessions.Get(userID)
	if ses.State != session.StateTracking {
		t.Errorf("state = %s, want %s", ses.State, session.StateTracking)
	}
}

func TestOperationsRequireAuth(t *testing.T) {
	w, _, _ := newTestWorkflow(defaultStub())
	ctx := context.Background()

	if _, err := w.BrowseProducts(ctx, 7); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("BrowseProducts error = %v", err)
	}
	if _, err := w.AddToCart(7, 3); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("AddToCart error = %v", err)
	}
	if _, err := w.ViewCart(7); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("ViewCart error = %v", err)
	}
	if _, err := w.Confirm(ctx, 7); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Confirm error = %v", err)
	}
	if _, err := w.ListOrders(ctx, 7); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("ListOrders error = %v", err)
	}
	if _, err := w.Track(ctx, 7, 1); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Track error = %v", err)
	}
}
