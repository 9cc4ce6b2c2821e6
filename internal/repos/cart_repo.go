package repos

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"satchel/internal/domain"
)

type CartRepo struct{ db *sqlx.DB }

func NewCartRepo(db *sqlx.DB) *CartRepo { return &CartRepo{db: db} }

type cartItemRow struct {
	ProductID  string  `db:"product_id"`
	Name       string  `db:"name"`
	ColorName  string  `db:"color_name"`
	ColorCode  string  `db:"color_code"`
	Qty        int     `db:"qty"`
	PriceAtAdd float64 `db:"price_at_add"`
}

func (r *CartRepo) EnsureCart(ctx context.Context, customerID string) (string, error) {
	return ensureCart(ctx, r.db, customerID)
}

func ensureCart(ctx context.Context, q sqlx.ExtContext, customerID string) (string, error) {
	var cartID string
	err := sqlx.GetContext(ctx, q, &cartID, `SELECT id FROM carts WHERE customer_id = ?`, customerID)
	if err == nil {
		return cartID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	cartID = "cart-" + customerID
	_, err = q.ExecContext(ctx, `INSERT INTO carts(id, customer_id, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(customer_id) DO NOTHING`, cartID, customerID, ts(time.Now()))
	if err != nil {
		return "", err
	}
	return cartID, nil
}

// UpsertItem adds qty to the line for (product, color), creating it if needed.
func (r *CartRepo) UpsertItem(ctx context.Context, cartID string, it domain.CartLineItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items(cart_id, product_id, color_name, color_code, name, qty, price_at_add, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(cart_id, product_id, color_name) DO UPDATE
		SET qty = cart_items.qty + excluded.qty, updated_at = CURRENT_TIMESTAMP
	`, cartID, it.ProductID, it.Color.Name, it.Color.Code, it.Name, it.Quantity, it.Price)
	return err
}

func (r *CartRepo) Items(ctx context.Context, cartID string) ([]domain.CartLineItem, error) {
	var rows []cartItemRow
	if err := r.db.SelectContext(ctx, &rows, `
	  SELECT product_id, name, color_name, color_code, qty, price_at_add
	  FROM cart_items
	  WHERE cart_id = ?
	  ORDER BY created_at, product_id, color_name
	`, cartID); err != nil {
		return nil, err
	}
	out := make([]domain.CartLineItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.CartLineItem{
			ProductID: row.ProductID,
			Name:      row.Name,
			Price:     row.PriceAtAdd,
			Quantity:  row.Qty,
			Color:     domain.Color{Name: row.ColorName, Code: row.ColorCode},
		})
	}
	return out, nil
}

// Replace swaps the whole cart content for items in one transaction.
func (r *CartRepo) Replace(ctx context.Context, customerID string, items []domain.CartLineItem) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	cartID, err := ensureCart(ctx, tx, customerID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID); err != nil {
		return err
	}
	for _, it := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items(cart_id, product_id, color_name, color_code, name, qty, price_at_add, created_at, updated_at)
			VALUES(?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			ON CONFLICT(cart_id, product_id, color_name) DO UPDATE
			SET qty = cart_items.qty + excluded.qty
		`, cartID, it.ProductID, it.Color.Name, it.Color.Code, it.Name, it.Quantity, it.Price); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = ? WHERE id = ?`, ts(time.Now()), cartID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *CartRepo) Clear(ctx context.Context, cartID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID)
	return err
}
