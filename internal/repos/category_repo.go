package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"satchel/internal/domain"
)

type CategoryRepo struct{ db *sqlx.DB }

func NewCategoryRepo(db *sqlx.DB) *CategoryRepo { return &CategoryRepo{db: db} }

func (r *CategoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := r.db.SelectContext(ctx, &out, `
  SELECT id, name, created_at, COALESCE(updated_at,'') AS updated_at
  FROM categories
  ORDER BY name
`)
	return out, err
}

func (r *CategoryRepo) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM categories WHERE id = ?`, id)
	return n > 0, err
}
