package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"satchel/internal/domain"
)

// LedgerRepo reads the stock_adjustments table. Rows are only ever written by
// InventoryRepo.Adjust, inside the transaction that moves the stock.
type LedgerRepo struct{ db *sqlx.DB }

func NewLedgerRepo(db *sqlx.DB) *LedgerRepo { return &LedgerRepo{db: db} }

func insertAdjustment(ctx context.Context, ex sqlx.ExecerContext, a domain.StockAdjustment) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO stock_adjustments(id, product_id, color, delta, old_stock, new_stock, order_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.ProductID, a.Color, a.Delta, a.OldStock, a.NewStock, a.OrderID, a.Reason, a.CreatedAt)
	return err
}

const ledgerCols = `id, product_id, color, delta, old_stock, new_stock, order_id, reason, created_at`

func (r *LedgerRepo) ByProduct(ctx context.Context, productID string, limit int) ([]domain.StockAdjustment, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []domain.StockAdjustment
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+ledgerCols+`
		FROM stock_adjustments
		WHERE product_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, productID, limit)
	return out, err
}

func (r *LedgerRepo) ByOrder(ctx context.Context, orderID string) ([]domain.StockAdjustment, error) {
	var out []domain.StockAdjustment
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+ledgerCols+`
		FROM stock_adjustments
		WHERE order_id = ?
		ORDER BY created_at, rowid
	`, orderID)
	return out, err
}

// NetDelta sums every recorded delta for a product; with a fully seeded
// starting point it explains the current stock.
func (r *LedgerRepo) NetDelta(ctx context.Context, productID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COALESCE(SUM(delta),0) FROM stock_adjustments WHERE product_id = ?`, productID)
	return n, err
}
