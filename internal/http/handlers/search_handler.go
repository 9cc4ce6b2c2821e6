package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"satchel/internal/domain"
	"satchel/internal/log"
	"satchel/internal/services"
	"satchel/internal/validate"
)

type SearchHandler struct {
	Catalog *services.CatalogService
}

// GET /api/v1/search?q=&category=
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	rawQ := c.Query("q")
	if strings.TrimSpace(rawQ) == "" {
		return c.JSON(fiber.Map{"q": "", "products": []domain.Product{}, "count": 0})
	}
	q, ok := validate.Q(rawQ)
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "q", "value": rawQ})
		return badRequest(c, "Enter a valid keyword (letters/numbers only)")
	}
	category := strings.TrimSpace(c.Query("category"))
	if category != "" {
		if _, ok := validate.ID(category); !ok {
			log.Security(c, "validation.fail", map[string]any{"field": "category"})
			return badRequest(c, "Invalid category")
		}
	}

	products, err := h.Catalog.Search(c.UserContext(), q, category, c.QueryInt("page", 1), 20)
	if err != nil {
		return apiError(c, "search.error", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return c.JSON(fiber.Map{"q": q, "categoryId": category, "products": products, "count": len(products)})
}
