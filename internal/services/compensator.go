package services

import (
	"context"

	"satchel/internal/domain"
	applog "satchel/internal/log"
	"satchel/internal/metrics"
	"satchel/internal/repos"
)

// Compensator puts an order's stock back, item by item. A failing item is
// logged and skipped; the rest are still restored.
type Compensator struct {
	Stock   StockAdjuster
	Metrics *metrics.Metrics
}

func NewCompensator(stock StockAdjuster, m *metrics.Metrics) *Compensator {
	return &Compensator{Stock: stock, Metrics: m}
}

func (c *Compensator) Restore(ctx context.Context, orderID string, items []domain.OrderItem, reason string) []domain.AdjustmentOutcome {
	ctx = context.WithoutCancel(ctx)
	out := make([]domain.AdjustmentOutcome, 0, len(items))
	for _, it := range items {
		adj, err := c.Stock.Adjust(ctx, repos.AdjustParams{
			ProductID: it.ProductID,
			Color:     it.Color.Name,
			Delta:     it.Quantity,
			OrderID:   orderID,
			Reason:    reason,
		})
		c.Metrics.Compensated(err == nil)
		if err != nil {
			applog.Error(nil, "order.compensate.fail", err, map[string]any{
				"order_id":   orderID,
				"product_id": it.ProductID,
				"color":      it.Color.Name,
				"qty":        it.Quantity,
			})
			out = append(out, domain.FailedOutcome(it.ProductID, it.Color.Name, it.Quantity, err))
			continue
		}
		out = append(out, domain.OutcomeOf(adj))
	}
	return out
}
