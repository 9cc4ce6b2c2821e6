package repos

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"satchel/internal/domain"
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

// ---------- Admin list summary ----------
type OrderSummary struct {
	ID            string  `db:"id" json:"id"`
	CustomerID    string  `db:"customer_id" json:"customerId,omitempty"`
	PaymentMethod string  `db:"payment_method" json:"paymentMethod"`
	Total         float64 `db:"total" json:"totalAmount"`
	Status        string  `db:"status" json:"status"`
	NeedsReview   bool    `db:"needs_review" json:"needsReview"`
	CreatedAt     string  `db:"created_at" json:"createdAt"`
}

type orderRow struct {
	ID            string  `db:"id"`
	CustomerID    string  `db:"customer_id"`
	SessionID     string  `db:"session_id"`
	ShippingJSON  string  `db:"shipping_json"`
	PaymentMethod string  `db:"payment_method"`
	Status        string  `db:"status"`
	Total         float64 `db:"total"`
	ClientTotal   float64 `db:"client_total"`
	NeedsReview   bool    `db:"needs_review"`
	StockReleased bool    `db:"stock_released"`
	CreatedAt     string  `db:"created_at"`
	UpdatedAt     string  `db:"updated_at"`
}

// Create inserts the order header and its item snapshot in one transaction.
func (r *OrderRepo) Create(ctx context.Context, o domain.Order) error {
	ship, err := json.Marshal(o.Shipping)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
	  INSERT INTO orders
	    (id, customer_id, session_id, shipping_json, payment_method, status, total, client_total,
	     needs_review, stock_released, created_at, updated_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.CustomerID, o.SessionID, string(ship), o.PaymentMethod, string(o.Status), o.Total, o.ClientTotal,
		o.NeedsReview, o.StockReleased, ts(o.CreatedAt), ts(o.UpdatedAt)); err != nil {
		return err
	}
	for i, it := range o.Items {
		if _, err := tx.ExecContext(ctx, `
		  INSERT INTO order_items(order_id, line_no, product_id, name, price, qty, color_name, color_code)
		  VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, o.ID, i+1, it.ProductID, it.Name, it.Price, it.Quantity, it.Color.Name, it.Color.Code); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get returns the order with its items, or domain.ErrOrderNotFound.
func (r *OrderRepo) Get(ctx context.Context, orderID string) (domain.Order, error) {
	var row orderRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, COALESCE(customer_id,'') AS customer_id, COALESCE(session_id,'') AS session_id,
		       shipping_json, payment_method, status, total, client_total, needs_review, stock_released,
		       created_at, updated_at
		FROM orders
		WHERE id = ?
	`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}

	var items []domain.OrderItem
	if err := r.db.SelectContext(ctx, &items, `
		SELECT product_id, name, price, qty, color_name, color_code
		FROM order_items
		WHERE order_id = ?
		ORDER BY line_no
	`, orderID); err != nil {
		return domain.Order{}, err
	}
	for i := range items {
		items[i].Color = domain.Color{Name: items[i].ColorName, Code: items[i].ColorCode}
	}
	return row.toDomain(items)
}

func (r *OrderRepo) ListLatest(ctx context.Context, limit int) ([]OrderSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []OrderSummary
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, COALESCE(customer_id,'') AS customer_id, payment_method, total, status, needs_review, created_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	return out, err
}

func (r *OrderRepo) ListByCustomer(ctx context.Context, customerID string) ([]OrderSummary, error) {
	var out []OrderSummary
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, customer_id, payment_method, total, status, needs_review, created_at
		FROM orders
		WHERE customer_id = ?
		ORDER BY created_at DESC
	`, customerID)
	return out, err
}

// UpdateStatus moves the order from one status to another. It reports false
// when the order was no longer in the from status.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), ts(time.Now()), id, string(from))
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *OrderRepo) FlagForReview(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orders SET needs_review = 1, updated_at = ? WHERE id = ?`, ts(time.Now()), id)
	return err
}

// ClaimStockRelease sets stock_released once. Only the caller that gets true
// may put the order's stock back.
func (r *OrderRepo) ClaimStockRelease(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET stock_released = 1, updated_at = ? WHERE id = ? AND stock_released = 0`,
		ts(time.Now()), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (row orderRow) toDomain(items []domain.OrderItem) (domain.Order, error) {
	var ship domain.Address
	if err := json.Unmarshal([]byte(row.ShippingJSON), &ship); err != nil {
		return domain.Order{}, err
	}
	created, _ := time.Parse(timeLayout, row.CreatedAt)
	updated, _ := time.Parse(timeLayout, row.UpdatedAt)
	return domain.Order{
		ID:            row.ID,
		CustomerID:    row.CustomerID,
		SessionID:     row.SessionID,
		Items:         items,
		Shipping:      ship,
		PaymentMethod: row.PaymentMethod,
		Status:        domain.OrderStatus(row.Status),
		Total:         row.Total,
		ClientTotal:   row.ClientTotal,
		NeedsReview:   row.NeedsReview,
		StockReleased: row.StockReleased,
		CreatedAt:     created,
		UpdatedAt:     updated,
	}, nil
}

// Fixed-width so that lexical ORDER BY matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func ts(t time.Time) string { return t.UTC().Format(timeLayout) }
