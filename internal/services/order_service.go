package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"satchel/internal/domain"
	applog "satchel/internal/log"
	"satchel/internal/metrics"
	"satchel/internal/repos"
)

type PlaceOrderRequest struct {
	CustomerID       string
	SessionID        string
	Items            []domain.OrderLine
	Shipping         domain.Address
	PaymentMethod    string
	ClientTotal      float64
	PaymentConfirmed bool
}

type PlacementResult struct {
	Order       domain.Order
	Adjustments []domain.AdjustmentOutcome
}

type OrderService struct {
	Prods   *repos.ProductRepo
	Orders  *repos.OrderRepo
	Stock   StockAdjuster
	Comp    *Compensator
	Metrics *metrics.Metrics

	locks *productLocks
	now   func() time.Time
}

func NewOrderService(prods *repos.ProductRepo, orders *repos.OrderRepo, stock StockAdjuster, comp *Compensator, m *metrics.Metrics) *OrderService {
	return &OrderService{
		Prods:   prods,
		Orders:  orders,
		Stock:   stock,
		Comp:    comp,
		Metrics: m,
		locks:   newProductLocks(),
		now:     time.Now,
	}
}

// Place validates every line, writes the order, then decrements stock line by
// line. Nothing is mutated until all lines pass validation. If a decrement
// fails part way, the lines already applied are put back, the order is
// flagged for review and returned together with a PartialStockUpdateError.
func (s *OrderService) Place(ctx context.Context, req PlaceOrderRequest) (PlacementResult, error) {
	if len(req.Items) == 0 {
		s.Metrics.OrderFailed("empty_cart")
		return PlacementResult{}, domain.ErrEmptyOrder
	}

	ids := make([]string, 0, len(req.Items))
	for _, l := range req.Items {
		ids = append(ids, l.ProductID)
	}
	unlock := s.locks.lock(ids)
	defer unlock()

	items, err := s.validate(ctx, req.Items)
	if err != nil {
		s.Metrics.OrderFailed(failureKind(err))
		return PlacementResult{}, err
	}

	total := 0.0
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	total = math.Round(total*100) / 100

	status := domain.StatusPending
	if req.PaymentConfirmed {
		status = domain.StatusProcessing
	}
	now := s.now().UTC()
	order := domain.Order{
		ID:            uuid.NewString(),
		CustomerID:    req.CustomerID,
		SessionID:     req.SessionID,
		Items:         items,
		Shipping:      req.Shipping,
		PaymentMethod: req.PaymentMethod,
		Status:        status,
		Total:         total,
		ClientTotal:   req.ClientTotal,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if req.ClientTotal > 0 && math.Abs(req.ClientTotal-total) > 0.005 {
		applog.Security(nil, "order.total.mismatch", map[string]any{
			"order_id":     order.ID,
			"client_total": req.ClientTotal,
			"server_total": total,
		})
	}

	if err := s.Orders.Create(ctx, order); err != nil {
		s.Metrics.OrderFailed("storage")
		return PlacementResult{}, err
	}

	applied := make([]domain.AdjustmentOutcome, 0, len(items))
	for k, it := range items {
		adj, err := s.Stock.Adjust(ctx, repos.AdjustParams{
			ProductID: it.ProductID,
			Color:     it.Color.Name,
			Delta:     -it.Quantity,
			OrderID:   order.ID,
			Reason:    domain.ReasonOrderPlace,
		})
		if err != nil {
			return s.rollbackPartial(ctx, order, items[:k], applied, domain.FailedOutcome(it.ProductID, it.Color.Name, -it.Quantity, err), err)
		}
		applied = append(applied, domain.OutcomeOf(adj))
	}

	s.Metrics.OrderPlaced(string(order.Status))
	applog.Audit(nil, "order.place", map[string]any{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"items":       len(items),
		"total":       order.Total,
		"status":      string(order.Status),
	})
	return PlacementResult{Order: order, Adjustments: applied}, nil
}

func (s *OrderService) rollbackPartial(ctx context.Context, order domain.Order, done []domain.OrderItem,
	applied []domain.AdjustmentOutcome, failed domain.AdjustmentOutcome, cause error) (PlacementResult, error) {
	ctx = context.WithoutCancel(ctx)
	s.Comp.Restore(ctx, order.ID, done, domain.ReasonOrderCompensate)

	if err := s.Orders.FlagForReview(ctx, order.ID); err != nil {
		applog.Error(nil, "order.flag.fail", err, map[string]any{"order_id": order.ID})
	}
	if _, err := s.Orders.ClaimStockRelease(ctx, order.ID); err != nil {
		applog.Error(nil, "order.release.fail", err, map[string]any{"order_id": order.ID})
	}
	order.NeedsReview = true
	order.StockReleased = true

	s.Metrics.OrderFailed("partial")
	applog.Error(nil, "order.place.partial", cause, map[string]any{
		"order_id":  order.ID,
		"succeeded": len(applied),
		"failed":    failed.ProductID,
	})
	return PlacementResult{Order: order, Adjustments: append(applied, failed)},
		&domain.PartialStockUpdateError{
			OrderID:   order.ID,
			Succeeded: applied,
			Failed:    []domain.AdjustmentOutcome{failed},
			Cause:     cause,
		}
}

// validate loads the products and builds the item snapshot. Quantities for
// the same product (and the same color) are summed before comparing.
func (s *OrderService) validate(ctx context.Context, lines []domain.OrderLine) ([]domain.OrderItem, error) {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, fmt.Errorf("%w: %s has %d", domain.ErrInvalidQuantity, l.ProductID, l.Quantity)
		}
		ids = append(ids, l.ProductID)
	}
	prods, err := s.Prods.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	perProduct := map[string]int{}
	perVariant := map[string]int{}
	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		p, ok := prods[l.ProductID]
		if !ok || !p.Active {
			return nil, &domain.ProductNotFoundError{ProductID: l.ProductID}
		}
		perProduct[p.ID] += l.Quantity
		if need := perProduct[p.ID]; need > p.Stock {
			return nil, &domain.InsufficientStockError{ProductID: p.ID, Available: p.Stock, Requested: need}
		}

		color := l.Color
		if v, ok := p.Variant(color.Name); ok {
			key := p.ID + "|" + strings.ToLower(v.Name)
			perVariant[key] += l.Quantity
			if need := perVariant[key]; need > v.Stock {
				return nil, &domain.InsufficientStockError{ProductID: p.ID, Color: v.Name, Available: v.Stock, Requested: need}
			}
			color.Name = v.Name
			if color.Code == "" {
				color.Code = v.Code
			}
		}
		items = append(items, domain.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  l.Quantity,
			ColorName: color.Name,
			ColorCode: color.Code,
			Color:     color,
		})
	}
	return items, nil
}

// Cancel moves an order to cancelled and puts its stock back unless that has
// already happened. Restore failures are logged but do not block the cancel.
func (s *OrderService) Cancel(ctx context.Context, orderID string) (domain.Order, []domain.AdjustmentOutcome, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, nil, err
	}
	if !o.Status.CanTransition(domain.StatusCancelled) {
		return o, nil, domain.ErrInvalidTransition
	}
	ok, err := s.Orders.UpdateStatus(ctx, o.ID, o.Status, domain.StatusCancelled)
	if err != nil {
		return o, nil, err
	}
	if !ok {
		return o, nil, domain.ErrInvalidTransition
	}
	prev := o.Status
	o.Status = domain.StatusCancelled

	var outcomes []domain.AdjustmentOutcome
	claimed, err := s.Orders.ClaimStockRelease(ctx, o.ID)
	if err != nil {
		// cancelled but stock not put back; someone has to look at it
		applog.Error(nil, "order.release.fail", err, map[string]any{"order_id": o.ID})
		if ferr := s.Orders.FlagForReview(ctx, o.ID); ferr != nil {
			applog.Error(nil, "order.flag.fail", ferr, map[string]any{"order_id": o.ID})
		} else {
			o.NeedsReview = true
		}
	}
	if claimed {
		outcomes = s.Comp.Restore(ctx, o.ID, o.Items, domain.ReasonOrderCancel)
		o.StockReleased = true
	}

	applog.Audit(nil, "order.cancel", map[string]any{
		"order_id":       o.ID,
		"from":           string(prev),
		"stock_restored": claimed,
	})
	return o, outcomes, nil
}

// UpdateStatus applies an admin status change. Cancellation goes through
// Cancel so stock is restored.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, to domain.OrderStatus) (domain.Order, error) {
	if to == domain.StatusCancelled {
		o, _, err := s.Cancel(ctx, orderID)
		return o, err
	}
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !o.Status.CanTransition(to) {
		return o, domain.ErrInvalidTransition
	}
	ok, err := s.Orders.UpdateStatus(ctx, o.ID, o.Status, to)
	if err != nil {
		return o, err
	}
	if !ok {
		return o, domain.ErrInvalidTransition
	}
	applog.Audit(nil, "order.status", map[string]any{
		"order_id": o.ID,
		"from":     string(o.Status),
		"to":       string(to),
	})
	o.Status = to
	return o, nil
}

func (s *OrderService) Get(ctx context.Context, orderID string) (domain.Order, error) {
	return s.Orders.Get(ctx, orderID)
}

// GetOwned returns the order only to the customer or guest session that
// placed it; anyone else gets ErrOrderNotFound.
func (s *OrderService) GetOwned(ctx context.Context, orderID, customerID, sessionID string) (domain.Order, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	switch {
	case customerID != "" && o.CustomerID == customerID:
		return o, nil
	case sessionID != "" && o.SessionID == sessionID:
		return o, nil
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

func (s *OrderService) ListByCustomer(ctx context.Context, customerID string) ([]repos.OrderSummary, error) {
	return s.Orders.ListByCustomer(ctx, customerID)
}

func (s *OrderService) ListLatest(ctx context.Context, limit int) ([]repos.OrderSummary, error) {
	return s.Orders.ListLatest(ctx, limit)
}

func failureKind(err error) string {
	if errors.Is(err, domain.ErrInvalidQuantity) {
		return "invalid_quantity"
	}
	switch err.(type) {
	case *domain.InsufficientStockError:
		return "insufficient_stock"
	case *domain.ProductNotFoundError:
		return "product_not_found"
	}
	return "storage"
}
