package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"satchel/internal/domain"
	applog "satchel/internal/log"
	"satchel/internal/repos"
	"satchel/internal/services"
	"satchel/internal/validate"
)

type OrderHandler struct {
	Cart       *services.CartService
	Order      *services.OrderService
	Reconciler *services.CartReconciler
}

type checkoutRequest struct {
	Items            []domain.CartLineItem `json:"items"`
	Shipping         domain.Address        `json:"shippingAddress"`
	PaymentMethod    string                `json:"paymentMethod"`
	TotalAmount      float64               `json:"totalAmount"`
	PaymentConfirmed bool                  `json:"paymentConfirmed"`
}

// Checkout places an order from the browser cart, falling back to the
// customer's backend cart when the browser sends none.
// POST /api/v1/checkout
func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		if errors.Is(err, domain.ErrUnsupportedColor) {
			applog.Security(c, "validation.fail", map[string]any{"field": "color"})
			return badRequest(c, "unsupported color value")
		}
		return badRequest(c, "invalid request body")
	}
	if field := checkLines(req.Items); field != "" {
		applog.Security(c, "validation.fail", map[string]any{"field": field})
		return badRequest(c, "invalid cart item: "+field)
	}
	ship, bad := validate.Address(req.Shipping)
	if bad != "" {
		applog.Security(c, "validation.fail", map[string]any{"field": "shippingAddress." + bad})
		return badRequest(c, "invalid shipping address: "+bad)
	}
	pm, ok := validate.PaymentMethod(req.PaymentMethod)
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "paymentMethod"})
		return badRequest(c, "unsupported payment method")
	}

	ctx := c.UserContext()
	cid := customerID(c)
	sid := ensureSID(c)

	var (
		backend    []domain.CartLineItem
		backendErr error
	)
	if cid != "" {
		backend, backendErr = h.Cart.Items(ctx, cid)
	}
	res, err := h.Reconciler.Resolve(ctx, req.Items, backend, backendErr, cid)
	if err != nil {
		applog.Security(c, "order.place.fail", map[string]any{"error": err.Error()})
		return apiError(c, "checkout.resolve.fail", err)
	}

	placed, err := h.Order.Place(ctx, services.PlaceOrderRequest{
		CustomerID:       cid,
		SessionID:        sid,
		Items:            domain.LinesFromCart(res.Items),
		Shipping:         ship,
		PaymentMethod:    pm,
		ClientTotal:      req.TotalAmount,
		PaymentConfirmed: req.PaymentConfirmed,
	})
	var partial *domain.PartialStockUpdateError
	if errors.As(err, &partial) {
		// the order exists and is flagged; keeping the cart would invite a duplicate
		h.Reconciler.Settle(ctx, cid)
		applog.Audit(c, "checkout.accepted", map[string]any{
			"order_id":    placed.Order.ID,
			"cart_source": res.Source,
		})
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"order":   placed.Order,
			"message": "We have received your order and will confirm it shortly.",
		})
	}
	if err != nil {
		applog.Security(c, "order.place.fail", map[string]any{"error": err.Error()})
		return apiError(c, "checkout.place.fail", err)
	}

	h.Reconciler.Settle(ctx, cid)
	applog.Audit(c, "checkout.complete", map[string]any{
		"order_id":     placed.Order.ID,
		"cart_source":  res.Source,
		"cart_synced":  res.SyncScheduled,
		"server_total": placed.Order.Total,
		"client_total": req.TotalAmount,
	})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order":       placed.Order,
		"adjustments": placed.Adjustments,
	})
}

// GET /api/v1/orders/:id
func (h *OrderHandler) View(c *fiber.Ctx) error {
	oid, ok := validate.ID(c.Params("id"))
	if !ok {
		return apiError(c, "order.view", domain.ErrOrderNotFound)
	}
	o, err := h.Order.GetOwned(c.UserContext(), oid, customerID(c), c.Cookies("sid"))
	if errors.Is(err, domain.ErrOrderNotFound) {
		applog.Security(c, "access.denied.order", map[string]any{"order_id": oid})
	}
	if err != nil {
		return apiError(c, "order.view.fail", err)
	}
	return c.JSON(o)
}

// GET /api/v1/orders
func (h *OrderHandler) History(c *fiber.Ctx) error {
	orders, err := h.Order.ListByCustomer(c.UserContext(), customerID(c))
	if err != nil {
		return apiError(c, "orders.history.fail", err)
	}
	if orders == nil {
		orders = []repos.OrderSummary{}
	}
	return c.JSON(fiber.Map{"orders": orders})
}
