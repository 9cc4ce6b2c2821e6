package domain

type CartLineItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Color     Color   `json:"color"`
}

// OrderLine is what the placement service needs from a resolved cart.
type OrderLine struct {
	ProductID string
	Quantity  int
	Color     Color
}

func LinesFromCart(items []CartLineItem) []OrderLine {
	out := make([]OrderLine, 0, len(items))
	for _, it := range items {
		out = append(out, OrderLine{ProductID: it.ProductID, Quantity: it.Quantity, Color: it.Color})
	}
	return out
}
