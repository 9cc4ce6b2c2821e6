package domain

const (
	ReasonOrderPlace      = "order.place"
	ReasonOrderCompensate = "order.compensate"
	ReasonOrderCancel     = "order.cancel"
	ReasonAdminEdit       = "admin.edit"
)

// StockAdjustment is one row of the append-only ledger.
type StockAdjustment struct {
	ID        string `db:"id" json:"id"`
	ProductID string `db:"product_id" json:"productId"`
	Color     string `db:"color" json:"color,omitempty"`
	Delta     int    `db:"delta" json:"delta"`
	OldStock  int    `db:"old_stock" json:"oldStock"`
	NewStock  int    `db:"new_stock" json:"newStock"`
	OrderID   string `db:"order_id" json:"orderId,omitempty"`
	Reason    string `db:"reason" json:"reason"`
	CreatedAt string `db:"created_at" json:"createdAt"`

	// set only when a color variant was touched
	VariantOld *int `db:"-" json:"variantOld,omitempty"`
	VariantNew *int `db:"-" json:"variantNew,omitempty"`
}

// AdjustmentOutcome is the per-item result reported back to callers.
type AdjustmentOutcome struct {
	ProductID string `json:"productId"`
	Color     string `json:"color,omitempty"`
	Delta     int    `json:"delta"`
	OK        bool   `json:"ok"`
	OldStock  int    `json:"oldStock,omitempty"`
	NewStock  int    `json:"newStock,omitempty"`
	Err       string `json:"error,omitempty"`
}

func OutcomeOf(adj StockAdjustment) AdjustmentOutcome {
	return AdjustmentOutcome{
		ProductID: adj.ProductID,
		Color:     adj.Color,
		Delta:     adj.Delta,
		OK:        true,
		OldStock:  adj.OldStock,
		NewStock:  adj.NewStock,
	}
}

func FailedOutcome(productID, color string, delta int, err error) AdjustmentOutcome {
	return AdjustmentOutcome{ProductID: productID, Color: color, Delta: delta, Err: err.Error()}
}
