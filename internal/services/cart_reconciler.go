package services

import (
	"context"
	"sync"
	"time"

	"satchel/internal/domain"
	applog "satchel/internal/log"
	"satchel/internal/metrics"
)

const (
	SourceLocal   = "local"
	SourceBackend = "backend"

	syncAction = "cart.reconcile.sync"
)

// CartSyncer is the backend cart as seen by the reconciler.
type CartSyncer interface {
	Replace(ctx context.Context, customerID string, items []domain.CartLineItem) error
	Clear(ctx context.Context, customerID string) error
}

type Resolution struct {
	Items         []domain.CartLineItem
	Source        string
	SyncScheduled bool
}

// CartReconciler decides which cart a checkout uses. A non-empty local cart
// always wins; the backend cart is the fallback. Background writes to the
// backend cart are chained per customer so they apply in the order scheduled.
type CartReconciler struct {
	Sync    CartSyncer
	Timeout time.Duration
	Metrics *metrics.Metrics

	wg      sync.WaitGroup
	mu      sync.Mutex
	pending map[string]chan struct{}
}

func NewCartReconciler(sync CartSyncer, timeout time.Duration, m *metrics.Metrics) *CartReconciler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CartReconciler{Sync: sync, Timeout: timeout, Metrics: m, pending: map[string]chan struct{}{}}
}

// Resolve picks the cart for checkout. backendErr is the error from loading
// the backend cart, if any; it only matters when the local cart is empty.
func (r *CartReconciler) Resolve(ctx context.Context, local, backend []domain.CartLineItem, backendErr error, customerID string) (Resolution, error) {
	if len(local) > 0 {
		res := Resolution{Items: local, Source: SourceLocal}
		if backendErr == nil && len(backend) == 0 && customerID != "" {
			items := append([]domain.CartLineItem(nil), local...)
			r.enqueue(ctx, customerID, syncAction, func(ctx context.Context) error {
				return r.Sync.Replace(ctx, customerID, items)
			})
			res.SyncScheduled = true
		}
		r.Metrics.CartReconciled(SourceLocal, syncLabel(res.SyncScheduled))
		return res, nil
	}
	if backendErr != nil {
		applog.Warn(nil, "cart.reconcile.backend.fail", backendErr, map[string]any{"customer_id": customerID})
		return Resolution{}, domain.ErrCartUnavailable
	}
	if len(backend) == 0 {
		return Resolution{}, domain.ErrEmptyOrder
	}
	r.Metrics.CartReconciled(SourceBackend, "none")
	return Resolution{Items: backend, Source: SourceBackend}, nil
}

// Settle empties the customer's backend cart after an order, once any
// pending sync for that customer has finished.
func (r *CartReconciler) Settle(ctx context.Context, customerID string) {
	if customerID == "" {
		return
	}
	r.enqueue(ctx, customerID, "cart.settle", func(ctx context.Context) error {
		return r.Sync.Clear(ctx, customerID)
	})
}

// Wait blocks until all background cart writes have finished.
func (r *CartReconciler) Wait() { r.wg.Wait() }

func (r *CartReconciler) enqueue(ctx context.Context, customerID, action string, fn func(context.Context) error) {
	done := make(chan struct{})
	r.mu.Lock()
	prev := r.pending[customerID]
	r.pending[customerID] = done
	r.mu.Unlock()

	base := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			if r.pending[customerID] == done {
				delete(r.pending, customerID)
			}
			r.mu.Unlock()
			close(done)
		}()
		if prev != nil {
			<-prev
		}
		sctx, cancel := context.WithTimeout(base, r.Timeout)
		defer cancel()
		err := fn(sctx)
		if err != nil {
			applog.Warn(nil, action+".fail", err, map[string]any{"customer_id": customerID})
		}
		if action == syncAction {
			r.Metrics.CartReconciled(SourceLocal, result(err == nil))
		}
	}()
}

func syncLabel(scheduled bool) string {
	if scheduled {
		return "scheduled"
	}
	return "none"
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}
