package backend

// LoginRequest authenticates a Telegram user against the backend.
type LoginRequest struct {
	TelegramID string `json:"telegramId"`
	Name       string `json:"name"`
	LastName   string `json:"lastName"`
}

// Customer is the backend-side identity created or resolved at login.
type Customer struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	LastName string `json:"lastName"`
}

// LoginResult carries the bearer token and customer returned by login.
type LoginResult struct {
	AccessToken string   `json:"access_token"`
	Customer    Customer `json:"customer"`
}

// Product is a catalog entry.
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
}

// AddressRequest persists a delivery location.
type AddressRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	CoordinateX float64 `json:"coordinateX"`
	CoordinateY float64 `json:"coordinateY"`
}

// OrderProduct is one line of an order submission.
type OrderProduct struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// OrderRequest submits a new order.
type OrderRequest struct {
	CustomerID    int64          `json:"customerId"`
	AddressID     int64          `json:"addressId"`
	DeliveryPrice float64        `json:"deliveryPrice"`
	Products      []OrderProduct `json:"products"`
}

// OrderStatus names the backend's order state.
type OrderStatus struct {
	Name string `json:"name"`
}

// Driver describes the courier assigned to a delivery.
type Driver struct {
	Name        string `json:"name"`
	LastName    string `json:"lastName"`
	IsAvailable bool   `json:"isAvailable"`
}

// Delivery is a delivery leg attached to an order.
type Delivery struct {
	Driver *Driver `json:"driver"`
}

// Address is the backend's stored delivery address.
type Address struct {
	ID          int64   `json:"id"`
	CoordinateX float64 `json:"coordinateX"`
	CoordinateY float64 `json:"coordinateY"`
}

// Order is an order as reported by the backend, including tracking info.
type Order struct {
	ID          int64       `json:"id"`
	Total       float64     `json:"total"`
	Date        string      `json:"date"`
	OrderStatus OrderStatus `json:"orderStatus"`
	Deliveries  []Delivery  `json:"deliveries"`
	Address     *Address    `json:"address"`
}
