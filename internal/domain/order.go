package domain

import "time"

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

func ParseStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, true
	}
	return "", false
}

type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

// OrderItem is a snapshot taken at placement; it does not follow later
// catalog edits.
type OrderItem struct {
	ProductID string  `db:"product_id" json:"productId"`
	Name      string  `db:"name" json:"name"`
	Price     float64 `db:"price" json:"price"`
	Quantity  int     `db:"qty" json:"quantity"`
	ColorName string  `db:"color_name" json:"-"`
	ColorCode string  `db:"color_code" json:"-"`
	Color     Color   `db:"-" json:"color"`
}

type Order struct {
	ID            string      `json:"id"`
	CustomerID    string      `json:"customerId,omitempty"`
	SessionID     string      `json:"-"`
	Items         []OrderItem `json:"items"`
	Shipping      Address     `json:"shippingAddress"`
	PaymentMethod string      `json:"paymentMethod"`
	Status        OrderStatus `json:"status"`
	Total         float64     `json:"totalAmount"`
	ClientTotal   float64     `json:"-"`
	NeedsReview   bool        `json:"needsReview"`
	StockReleased bool        `json:"-"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}
