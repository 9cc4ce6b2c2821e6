package repos

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"satchel/internal/domain"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

const productCols = `
    id, category_id, name, COALESCE(description,'') AS description, price, stock,
    COALESCE(images_json,'') AS images_json, active,
    created_at, COALESCE(updated_at,'') AS updated_at`

func (r *ProductRepo) ListByCategory(ctx context.Context, catID string, limit, offset int) ([]domain.Product, error) {
	var out []domain.Product
	err := r.db.SelectContext(ctx, &out, `
  SELECT `+productCols+`
  FROM products
  WHERE category_id = ? AND active = 1
  ORDER BY created_at DESC, id
  LIMIT ? OFFSET ?
`, catID, limit, offset)
	if err != nil {
		return nil, err
	}
	return out, r.attachVariants(ctx, out)
}

// Get returns the product with its color variants, or ProductNotFoundError.
func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, `SELECT `+productCols+` FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, &domain.ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return domain.Product{}, err
	}
	one := []domain.Product{p}
	if err := r.attachVariants(ctx, one); err != nil {
		return domain.Product{}, err
	}
	return one[0], nil
}

// GetMany loads products by id; missing ids are simply absent from the map.
func (r *ProductRepo) GetMany(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := map[string]domain.Product{}
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT `+productCols+` FROM products WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var rows []domain.Product
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	if err := r.attachVariants(ctx, rows); err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

func (r *ProductRepo) Search(ctx context.Context, q, catID string, limit, offset int) ([]domain.Product, error) {
	where := `active = 1`
	args := []any{}
	if q != "" {
		where += ` AND (LOWER(name) LIKE ? OR LOWER(description) LIKE ?)`
		args = append(args, "%"+strings.ToLower(q)+"%", "%"+strings.ToLower(q)+"%")
	}
	if catID != "" {
		where += ` AND category_id = ?`
		args = append(args, catID)
	}

	query := `
  SELECT ` + productCols + `
  FROM products
  WHERE ` + where + `
  ORDER BY created_at DESC, id
  LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var out []domain.Product
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, r.attachVariants(ctx, out)
}

// Create inserts a product and its variants. When variants are given the
// aggregate stock starts as their sum.
func (r *ProductRepo) Create(ctx context.Context, p domain.Product) error {
	if len(p.ColorVariants) > 0 {
		p.Stock = 0
		for _, v := range p.ColorVariants {
			p.Stock += v.Stock
		}
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO products(id, category_id, name, description, price, stock, images_json, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, p.ID, p.CategoryID, p.Name, p.Description, p.Price, p.Stock, p.ImagesJSON, p.Active); err != nil {
		return err
	}
	for _, v := range p.ColorVariants {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO color_variants(product_id, name, code, stock, is_available)
			VALUES (?, ?, ?, ?, ?)
		`, p.ID, v.Name, v.Code, v.Stock, v.Stock > 0); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *ProductRepo) attachVariants(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	query, args, err := sqlx.In(`
		SELECT product_id, name, code, stock, is_available
		FROM color_variants
		WHERE product_id IN (?)
		ORDER BY product_id, name`, ids)
	if err != nil {
		return err
	}
	var vs []domain.ColorVariant
	if err := r.db.SelectContext(ctx, &vs, r.db.Rebind(query), args...); err != nil {
		return err
	}
	byProduct := map[string][]domain.ColorVariant{}
	for _, v := range vs {
		byProduct[v.ProductID] = append(byProduct[v.ProductID], v)
	}
	for i := range products {
		products[i].ColorVariants = byProduct[products[i].ID]
	}
	return nil
}
