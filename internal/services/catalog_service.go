package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"satchel/internal/domain"
	"satchel/internal/repos"
)

var ErrInvalidProduct = errors.New("invalid product")

type CatalogService struct {
	Cats  *repos.CategoryRepo
	Prods *repos.ProductRepo
}

func NewCatalogService(cats *repos.CategoryRepo, prods *repos.ProductRepo) *CatalogService {
	return &CatalogService{Cats: cats, Prods: prods}
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.Cats.List(ctx)
}

func (s *CatalogService) ListProductsByCategory(ctx context.Context, catID string, page, pageSize int) ([]domain.Product, error) {
	limit, offset := paging(page, pageSize)
	return s.Prods.ListByCategory(ctx, catID, limit, offset)
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.Prods.Get(ctx, id)
}

func (s *CatalogService) Search(ctx context.Context, q, category string, page, pageSize int) ([]domain.Product, error) {
	limit, offset := paging(page, pageSize)
	return s.Prods.Search(ctx, q, category, limit, offset)
}

// CreateProduct adds a product with optional color variants. Variant names
// must be unique per product, ignoring case.
func (s *CatalogService) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if p.ID == "" || p.Name == "" || p.Price < 0 || p.Stock < 0 {
		return domain.Product{}, ErrInvalidProduct
	}
	ok, err := s.Cats.Exists(ctx, p.CategoryID)
	if err != nil {
		return domain.Product{}, err
	}
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: unknown category %q", ErrInvalidProduct, p.CategoryID)
	}
	seen := map[string]bool{}
	for _, v := range p.ColorVariants {
		key := strings.ToLower(strings.TrimSpace(v.Name))
		if key == "" || v.Stock < 0 || seen[key] {
			return domain.Product{}, fmt.Errorf("%w: bad color variant %q", ErrInvalidProduct, v.Name)
		}
		seen[key] = true
	}
	p.Active = true
	if err := s.Prods.Create(ctx, p); err != nil {
		return domain.Product{}, err
	}
	return s.Prods.Get(ctx, p.ID)
}

func paging(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 12
	}
	return pageSize, (page - 1) * pageSize
}
