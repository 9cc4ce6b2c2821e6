package services

import (
	"context"
	"errors"

	"satchel/internal/domain"
	applog "satchel/internal/log"
	"satchel/internal/metrics"
	"satchel/internal/repos"
)

// StockAdjuster is the single path through which stock changes.
type StockAdjuster interface {
	Adjust(ctx context.Context, p repos.AdjustParams) (domain.StockAdjustment, error)
}

type InventoryService struct {
	Inv      *repos.InventoryRepo
	Ledger   *repos.LedgerRepo
	Metrics  *metrics.Metrics
	LowStock int
}

func NewInventoryService(inv *repos.InventoryRepo, ledger *repos.LedgerRepo, m *metrics.Metrics, lowStock int) *InventoryService {
	if lowStock <= 0 {
		lowStock = 5
	}
	return &InventoryService{Inv: inv, Ledger: ledger, Metrics: m, LowStock: lowStock}
}

// Adjust applies a signed delta and records the outcome.
func (s *InventoryService) Adjust(ctx context.Context, p repos.AdjustParams) (domain.StockAdjustment, error) {
	adj, err := s.Inv.Adjust(ctx, p)
	s.Metrics.StockAdjusted(p.Reason, err == nil)
	if err != nil {
		applog.Warn(nil, "stock.adjust.fail", err, map[string]any{
			"product_id": p.ProductID,
			"color":      p.Color,
			"delta":      p.Delta,
			"order_id":   p.OrderID,
			"reason":     p.Reason,
		})
		return domain.StockAdjustment{}, err
	}
	return adj, nil
}

// AdminEdit is a manual stock correction from the back office.
func (s *InventoryService) AdminEdit(ctx context.Context, productID, color string, delta int) (domain.StockAdjustment, error) {
	return s.Adjust(ctx, repos.AdjustParams{
		ProductID: productID,
		Color:     color,
		Delta:     delta,
		Reason:    domain.ReasonAdminEdit,
	})
}

// CheckAvailability converts qty to IN_STOCK / LOW_STOCK / OUT_OF_STOCK.
func (s *InventoryService) CheckAvailability(ctx context.Context, productID, color string) (domain.Availability, error) {
	qty, err := s.Inv.Qty(ctx, productID, color)
	if err != nil {
		var nf *domain.ProductNotFoundError
		if errors.As(err, &nf) {
			return domain.Availability{Status: "OUT_OF_STOCK", Qty: 0}, nil
		}
		return domain.Availability{}, err
	}
	return Availability(qty, s.LowStock), nil
}

func Availability(qty, lowStock int) domain.Availability {
	status := "OUT_OF_STOCK"
	switch {
	case qty >= lowStock:
		status = "IN_STOCK"
	case qty > 0:
		status = "LOW_STOCK"
	}
	return domain.Availability{Status: status, Qty: qty}
}

func (s *InventoryService) List(ctx context.Context) ([]repos.InventoryRow, error) {
	return s.Inv.ListAll(ctx)
}

// History returns a product's ledger, newest first.
func (s *InventoryService) History(ctx context.Context, productID string, limit int) ([]domain.StockAdjustment, error) {
	return s.Ledger.ByProduct(ctx, productID, limit)
}

// NetDelta sums every ledger delta recorded for a product.
func (s *InventoryService) NetDelta(ctx context.Context, productID string) (int, error) {
	return s.Ledger.NetDelta(ctx, productID)
}

// OrderHistory returns the adjustments an order caused, oldest first.
func (s *InventoryService) OrderHistory(ctx context.Context, orderID string) ([]domain.StockAdjustment, error) {
	return s.Ledger.ByOrder(ctx, orderID)
}
