package services

import (
	"context"
	"math"

	"satchel/internal/domain"
	"satchel/internal/repos"
)

// CartService is the backend cart of a signed-in customer.
type CartService struct {
	Carts *repos.CartRepo
	Prods *repos.ProductRepo
}

func NewCartService(carts *repos.CartRepo, prods *repos.ProductRepo) *CartService {
	return &CartService{Carts: carts, Prods: prods}
}

// Add merges qty into the line for (product, color). Name and price are
// taken from the catalog, not from the caller.
func (s *CartService) Add(ctx context.Context, customerID, productID string, qty int, color domain.Color) error {
	if qty < 1 {
		qty = 1
	}
	p, err := s.Prods.Get(ctx, productID)
	if err != nil {
		return err
	}
	if !p.Active {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	if v, ok := p.Variant(color.Name); ok {
		color.Name = v.Name
		if color.Code == "" {
			color.Code = v.Code
		}
	}
	cartID, err := s.Carts.EnsureCart(ctx, customerID)
	if err != nil {
		return err
	}
	return s.Carts.UpsertItem(ctx, cartID, domain.CartLineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  qty,
		Color:     color,
	})
}

func (s *CartService) Items(ctx context.Context, customerID string) ([]domain.CartLineItem, error) {
	cartID, err := s.Carts.EnsureCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.Carts.Items(ctx, cartID)
}

// Replace overwrites the backend cart; lines without a product or quantity
// are dropped.
func (s *CartService) Replace(ctx context.Context, customerID string, items []domain.CartLineItem) error {
	keep := make([]domain.CartLineItem, 0, len(items))
	for _, it := range items {
		if it.ProductID != "" && it.Quantity >= 1 {
			keep = append(keep, it)
		}
	}
	return s.Carts.Replace(ctx, customerID, keep)
}

func (s *CartService) Clear(ctx context.Context, customerID string) error {
	cartID, err := s.Carts.EnsureCart(ctx, customerID)
	if err != nil {
		return err
	}
	return s.Carts.Clear(ctx, cartID)
}

type CartView struct {
	Items []domain.CartLineItem `json:"items"`
	Total float64               `json:"total"`
}

func (s *CartService) View(ctx context.Context, customerID string) (CartView, error) {
	items, err := s.Items(ctx, customerID)
	if err != nil {
		return CartView{}, err
	}
	return CartView{Items: items, Total: CartTotal(items)}, nil
}

func CartTotal(items []domain.CartLineItem) float64 {
	total := 0.0
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return math.Round(total*100) / 100
}
