package handlers

import (
	"github.com/gofiber/fiber/v2"

	"satchel/internal/domain"
	applog "satchel/internal/log"
	"satchel/internal/services"
	"satchel/internal/validate"
)

// CartHandler serves the backend cart of a signed-in customer.
type CartHandler struct {
	Cart *services.CartService
}

type addItemRequest struct {
	ProductID string       `json:"productId"`
	Quantity  int          `json:"quantity"`
	Color     domain.Color `json:"color"`
}

// GET /api/v1/cart
func (h *CartHandler) View(c *fiber.Ctx) error {
	cv, err := h.Cart.View(c.UserContext(), customerID(c))
	if err != nil {
		return apiError(c, "cart.view.fail", err)
	}
	return c.JSON(cv)
}

// POST /api/v1/cart/items
func (h *CartHandler) Add(c *fiber.Ctx) error {
	var req addItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	pid, ok := validate.ID(req.ProductID)
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "productId"})
		return badRequest(c, "missing or invalid productId")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if !validate.LineQty(req.Quantity) {
		return badRequest(c, "quantity must be between 1 and 50")
	}
	if err := h.Cart.Add(c.UserContext(), customerID(c), pid, req.Quantity, req.Color); err != nil {
		return apiError(c, "cart.add.fail", err)
	}
	return h.View(c)
}

// PUT /api/v1/cart
func (h *CartHandler) Replace(c *fiber.Ctx) error {
	var req struct {
		Items []domain.CartLineItem `json:"items"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if field := checkLines(req.Items); field != "" {
		applog.Security(c, "validation.fail", map[string]any{"field": field})
		return badRequest(c, "invalid cart item: "+field)
	}
	if err := h.Cart.Replace(c.UserContext(), customerID(c), req.Items); err != nil {
		return apiError(c, "cart.replace.fail", err)
	}
	return h.View(c)
}

// DELETE /api/v1/cart
func (h *CartHandler) Clear(c *fiber.Ctx) error {
	if err := h.Cart.Clear(c.UserContext(), customerID(c)); err != nil {
		return apiError(c, "cart.clear.fail", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// checkLines returns the first offending field of a browser cart, or "".
func checkLines(items []domain.CartLineItem) string {
	for _, it := range items {
		if _, ok := validate.ID(it.ProductID); !ok {
			return "productId"
		}
		if !validate.LineQty(it.Quantity) {
			return "quantity"
		}
	}
	return ""
}
