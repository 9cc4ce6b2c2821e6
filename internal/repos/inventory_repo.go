package repos

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"satchel/internal/domain"
)

type InventoryRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewInventoryRepo(db *sqlx.DB) *InventoryRepo {
	return &InventoryRepo{db: db, now: time.Now}
}

// Row used by admin inventory pages; Color is empty for the aggregate row.
type InventoryRow struct {
	ProductID string `db:"product_id"`
	Name      string `db:"name"`
	Color     string `db:"color"`
	Stock     int    `db:"stock"`
}

// ListAll returns the aggregate row of every product followed by its variants.
func (r *InventoryRepo) ListAll(ctx context.Context) ([]InventoryRow, error) {
	var rows []InventoryRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id AS product_id, name, '' AS color, stock FROM products
		UNION ALL
		SELECT v.product_id, p.name, v.name AS color, v.stock
		FROM color_variants v JOIN products p ON p.id = v.product_id
		ORDER BY name, color
	`)
	return rows, err
}

// Qty returns current stock for a product, or for one of its color variants
// when color names an existing variant.
func (r *InventoryRepo) Qty(ctx context.Context, productID, color string) (int, error) {
	var qty int
	if color != "" {
		err := r.db.GetContext(ctx, &qty, `SELECT stock FROM color_variants WHERE product_id = ? AND name = ?`, productID, color)
		if err == nil {
			return qty, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
	}
	err := r.db.GetContext(ctx, &qty, `SELECT stock FROM products WHERE id = ?`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &domain.ProductNotFoundError{ProductID: productID}
	}
	return qty, err
}

type AdjustParams struct {
	ProductID string
	Color     string
	Delta     int
	OrderID   string
	Reason    string
}

// Adjust applies a signed delta to a product's aggregate stock and, when
// Color names one of its variants, to that variant as well. Every update is
// a single conditional statement (stock + delta >= 0), so concurrent callers
// can never drive stock negative. The ledger row is written in the same
// transaction.
func (r *InventoryRepo) Adjust(ctx context.Context, p AdjustParams) (domain.StockAdjustment, error) {
	color := strings.TrimSpace(p.Color)
	now := ts(r.now())

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.StockAdjustment{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var newStock int
	err = tx.GetContext(ctx, &newStock, `
		UPDATE products
		SET stock = stock + ?, updated_at = ?
		WHERE id = ? AND stock + ? >= 0
		RETURNING stock
	`, p.Delta, now, p.ProductID, p.Delta)
	if errors.Is(err, sql.ErrNoRows) {
		var cur int
		switch err := tx.GetContext(ctx, &cur, `SELECT stock FROM products WHERE id = ?`, p.ProductID); {
		case errors.Is(err, sql.ErrNoRows):
			return domain.StockAdjustment{}, &domain.ProductNotFoundError{ProductID: p.ProductID}
		case err != nil:
			return domain.StockAdjustment{}, err
		}
		return domain.StockAdjustment{}, &domain.NegativeStockError{ProductID: p.ProductID, Available: cur, Delta: p.Delta}
	}
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	adj := domain.StockAdjustment{
		ID:        uuid.NewString(),
		ProductID: p.ProductID,
		Color:     color,
		Delta:     p.Delta,
		OldStock:  newStock - p.Delta,
		NewStock:  newStock,
		OrderID:   p.OrderID,
		Reason:    p.Reason,
		CreatedAt: now,
	}

	if color != "" {
		var vNew int
		err = tx.GetContext(ctx, &vNew, `
			UPDATE color_variants
			SET stock = stock + ?, is_available = (stock + ? > 0)
			WHERE product_id = ? AND name = ? AND stock + ? >= 0
			RETURNING stock
		`, p.Delta, p.Delta, p.ProductID, color, p.Delta)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			var vCur int
			verr := tx.GetContext(ctx, &vCur, `SELECT stock FROM color_variants WHERE product_id = ? AND name = ?`, p.ProductID, color)
			if verr == nil {
				return domain.StockAdjustment{}, &domain.NegativeStockError{ProductID: p.ProductID, Color: color, Available: vCur, Delta: p.Delta}
			}
			if !errors.Is(verr, sql.ErrNoRows) {
				return domain.StockAdjustment{}, verr
			}
			// no such variant: only the aggregate moves
		case err != nil:
			return domain.StockAdjustment{}, err
		default:
			vOld := vNew - p.Delta
			adj.VariantOld, adj.VariantNew = &vOld, &vNew
		}
	}

	if err := insertAdjustment(ctx, tx, adj); err != nil {
		return domain.StockAdjustment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.StockAdjustment{}, err
	}
	return adj, nil
}
