package handlers

import (
	"github.com/gofiber/fiber/v2"

	"satchel/internal/log"
	"satchel/internal/services"
	"satchel/internal/validate"
)

type ProductHandler struct {
	Catalog  *services.CatalogService
	LowStock int
}

// GET /api/v1/products/:id
func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product_not_found", "message": "This item is no longer available."})
	}
	p, err := h.Catalog.GetProduct(c.UserContext(), id)
	if err != nil {
		return apiError(c, "product.detail.fail", err)
	}
	if !p.Active {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product_not_found", "message": "This item is no longer available."})
	}
	return c.JSON(fiber.Map{
		"product":      p,
		"availability": services.Availability(p.Stock, h.LowStock),
	})
}
