package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the storefront collectors. A nil *Metrics records nothing.
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	OrdersPlaced        *prometheus.CounterVec
	OrderFailures       *prometheus.CounterVec
	StockAdjustments    *prometheus.CounterVec
	Compensations       *prometheus.CounterVec
	CartReconciliations *prometheus.CounterVec
}

// New registers all collectors on reg under prefix.
func New(prefix string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		OrdersPlaced: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_orders_placed_total",
			Help: "Orders created, by initial status",
		}, []string{"status"}),
		OrderFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_order_failures_total",
			Help: "Checkout attempts rejected or partially applied, by error kind",
		}, []string{"kind"}),
		StockAdjustments: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_stock_adjustments_total",
			Help: "Stock adjustments attempted, by reason and result",
		}, []string{"reason", "result"}),
		Compensations: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_compensations_total",
			Help: "Per-item stock restorations, by result",
		}, []string{"result"}),
		CartReconciliations: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_cart_reconcile_total",
			Help: "Checkout cart resolutions, by winning source and sync result",
		}, []string{"source", "sync"}),
	}
}

func (m *Metrics) OrderPlaced(status string) {
	if m == nil {
		return
	}
	m.OrdersPlaced.WithLabelValues(status).Inc()
}

func (m *Metrics) OrderFailed(kind string) {
	if m == nil {
		return
	}
	m.OrderFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) StockAdjusted(reason string, ok bool) {
	if m == nil {
		return
	}
	m.StockAdjustments.WithLabelValues(reason, result(ok)).Inc()
}

func (m *Metrics) Compensated(ok bool) {
	if m == nil {
		return
	}
	m.Compensations.WithLabelValues(result(ok)).Inc()
}

// CartReconciled records which cart source won and what happened to the
// background sync ("none", "scheduled", "ok", "fail").
func (m *Metrics) CartReconciled(source, sync string) {
	if m == nil {
		return
	}
	m.CartReconciliations.WithLabelValues(source, sync).Inc()
}

// Middleware records request counts and latency by route pattern.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if m == nil {
			return err
		}
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		path := c.Route().Path
		statusStr := strconv.Itoa(status)
		m.HTTPRequests.WithLabelValues(c.Method(), path, statusStr).Inc()
		m.HTTPDuration.WithLabelValues(c.Method(), path, statusStr).Observe(time.Since(start).Seconds())
		return err
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}
