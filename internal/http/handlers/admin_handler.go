package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"satchel/internal/domain"
	applog "satchel/internal/log"
	"satchel/internal/services"
	"satchel/internal/validate"
)

type AdminHandler struct {
	Orders  *services.OrderService
	Inv     *services.InventoryService
	Catalog *services.CatalogService
}

// GET /admin
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	ords, err := h.Orders.ListLatest(c.UserContext(), 10)
	if err != nil {
		applog.Error(c, "admin.dashboard.fail", err, nil)
		return notFound(c, fiber.StatusInternalServerError, "Could not load dashboard")
	}
	review := 0
	for _, o := range ords {
		if o.NeedsReview {
			review++
		}
	}
	return render(c, "admin_dashboard", fiber.Map{"Orders": ords, "NeedsReview": review})
}

// GET /admin/orders
func (h *AdminHandler) OrdersPage(c *fiber.Ctx) error {
	ords, err := h.Orders.ListLatest(c.UserContext(), 100)
	if err != nil {
		applog.Error(c, "admin.orders.list.fail", err, nil)
		return notFound(c, fiber.StatusInternalServerError, "Could not load orders")
	}
	return render(c, "admin_orders", fiber.Map{"Orders": ords})
}

// POST /admin/orders/:id/status
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	to, okStatus := domain.ParseStatus(strings.TrimSpace(c.FormValue("status")))
	if !okID || !okStatus {
		return c.Status(fiber.StatusBadRequest).SendString("missing id or status")
	}
	o, err := h.Orders.UpdateStatus(c.UserContext(), id, to)
	if err != nil {
		return h.orderUpdateFailed(c, id, string(to), err)
	}
	applog.Audit(c, "admin.orders.update", map[string]any{"order_id": id, "status": string(o.Status)})
	return c.Redirect("/admin/orders")
}

// POST /admin/orders/:id/cancel
func (h *AdminHandler) CancelOrder(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).SendString("missing id")
	}
	_, outcomes, err := h.Orders.Cancel(c.UserContext(), id)
	if err != nil {
		return h.orderUpdateFailed(c, id, string(domain.StatusCancelled), err)
	}
	failed := 0
	for _, o := range outcomes {
		if !o.OK {
			failed++
		}
	}
	applog.Audit(c, "admin.orders.cancel", map[string]any{
		"order_id": id,
		"restored": len(outcomes) - failed,
		"failed":   failed,
	})
	return c.Redirect("/admin/orders")
}

func (h *AdminHandler) orderUpdateFailed(c *fiber.Ctx, id, status string, err error) error {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return notFound(c, fiber.StatusNotFound, "Order not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		applog.Security(c, "admin.orders.update.reject", map[string]any{"order_id": id, "status": status})
		return c.Status(fiber.StatusConflict).SendString("order can not move to " + status)
	}
	applog.Error(c, "admin.orders.update.fail", err, map[string]any{"order_id": id})
	return c.Status(fiber.StatusInternalServerError).SendString("could not update status")
}

// GET /admin/inventory
func (h *AdminHandler) Inventory(c *fiber.Ctx) error {
	rows, err := h.Inv.List(c.UserContext())
	if err != nil {
		applog.Error(c, "admin.inventory.list.fail", err, nil)
		return notFound(c, fiber.StatusInternalServerError, "Could not load inventory")
	}
	return render(c, "admin_inventory", fiber.Map{"Rows": rows, "LowStock": h.Inv.LowStock})
}

// POST /admin/inventory applies a signed delta to a product or one of its
// colors.
func (h *AdminHandler) UpdateInventory(c *fiber.Ctx) error {
	pid, okID := validate.ID(c.FormValue("product_id"))
	color := strings.TrimSpace(c.FormValue("color"))
	delta, err := strconv.Atoi(strings.TrimSpace(c.FormValue("delta")))
	if !okID || err != nil || delta == 0 || len(color) > 40 {
		return c.Status(fiber.StatusBadRequest).SendString("invalid input")
	}
	adj, err := h.Inv.AdminEdit(c.UserContext(), pid, color, delta)
	if err != nil {
		var (
			neg *domain.NegativeStockError
			nf  *domain.ProductNotFoundError
		)
		fields := map[string]any{"product": pid, "color": color, "delta": delta}
		switch {
		case errors.As(err, &neg):
			applog.Security(c, "admin.inventory.save.reject", fields)
			return c.Status(fiber.StatusConflict).SendString("stock can not go below zero")
		case errors.As(err, &nf):
			return c.Status(fiber.StatusNotFound).SendString("unknown product")
		}
		applog.Error(c, "admin.inventory.save.fail", err, fields)
		return c.Status(fiber.StatusInternalServerError).SendString("could not save inventory")
	}
	applog.Audit(c, "admin.inventory.save", map[string]any{
		"product":   pid,
		"color":     color,
		"delta":     delta,
		"old_stock": adj.OldStock,
		"new_stock": adj.NewStock,
	})
	return c.Redirect("/admin/inventory")
}

// GET /admin/products/:id/adjustments
func (h *AdminHandler) Adjustments(c *fiber.Ctx) error {
	pid, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "invalid product id")
	}
	hist, err := h.Inv.History(c.UserContext(), pid, c.QueryInt("limit", 50))
	if err != nil {
		return apiError(c, "admin.adjustments.fail", err)
	}
	if hist == nil {
		hist = []domain.StockAdjustment{}
	}
	net, err := h.Inv.NetDelta(c.UserContext(), pid)
	if err != nil {
		return apiError(c, "admin.adjustments.fail", err)
	}
	return c.JSON(fiber.Map{"productId": pid, "adjustments": hist, "netDelta": net})
}

// GET /admin/orders/:id/adjustments
func (h *AdminHandler) OrderAdjustments(c *fiber.Ctx) error {
	oid, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "invalid order id")
	}
	o, err := h.Orders.Get(c.UserContext(), oid)
	if err != nil {
		return apiError(c, "admin.order.adjustments.fail", err)
	}
	hist, err := h.Inv.OrderHistory(c.UserContext(), oid)
	if err != nil {
		return apiError(c, "admin.order.adjustments.fail", err)
	}
	if hist == nil {
		hist = []domain.StockAdjustment{}
	}
	return c.JSON(fiber.Map{
		"orderId":       oid,
		"status":        o.Status,
		"needsReview":   o.NeedsReview,
		"stockReleased": o.StockReleased,
		"adjustments":   hist,
	})
}

// POST /admin/products
func (h *AdminHandler) CreateProduct(c *fiber.Ctx) error {
	var p domain.Product
	if err := c.BodyParser(&p); err != nil {
		return badRequest(c, "invalid request body")
	}
	if _, ok := validate.ID(p.ID); !ok {
		return badRequest(c, "invalid product id")
	}
	if _, ok := validate.ID(p.CategoryID); !ok {
		return badRequest(c, "invalid category id")
	}
	name, ok := validate.Name(p.Name)
	if !ok {
		return badRequest(c, "invalid product name")
	}
	p.Name = name
	created, err := h.Catalog.CreateProduct(c.UserContext(), p)
	if err != nil {
		return apiError(c, "admin.products.create.fail", err)
	}
	applog.Audit(c, "admin.products.create", map[string]any{
		"product":  created.ID,
		"stock":    created.Stock,
		"variants": len(created.ColorVariants),
	})
	return c.Status(fiber.StatusCreated).JSON(created)
}
