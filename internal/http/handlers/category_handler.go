package handlers

import (
	"github.com/gofiber/fiber/v2"

	"satchel/internal/log"
	"satchel/internal/services"
	"satchel/internal/validate"
)

type CategoryHandler struct {
	Catalog *services.CatalogService
}

// GET /api/v1/categories
func (h *CategoryHandler) List(c *fiber.Ctx) error {
	cats, err := h.Catalog.ListCategories(c.UserContext())
	if err != nil {
		return apiError(c, "catalog.categories.fail", err)
	}
	return c.JSON(fiber.Map{"categories": cats})
}

// GET /api/v1/categories/:id/products?page=
func (h *CategoryHandler) Products(c *fiber.Ctx) error {
	catID, ok := validate.ID(c.Params("id"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "category"})
		return badRequest(c, "invalid category")
	}
	products, err := h.Catalog.ListProductsByCategory(c.UserContext(), catID, c.QueryInt("page", 1), 12)
	if err != nil {
		return apiError(c, "catalog.products.fail", err)
	}
	return c.JSON(fiber.Map{"categoryId": catID, "products": products, "count": len(products)})
}
