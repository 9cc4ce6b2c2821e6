package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"satchel/internal/services"
	"satchel/internal/validate"
)

type InventoryHandler struct {
	Inv *services.InventoryService
}

// GET /api/v1/availability?productId=&color=
func (h *InventoryHandler) Check(c *fiber.Ctx) error {
	productID, ok := validate.ID(c.Query("productId"))
	if !ok {
		return badRequest(c, "missing productId")
	}
	color := strings.TrimSpace(c.Query("color"))
	if len(color) > 40 {
		return badRequest(c, "invalid color")
	}
	avail, err := h.Inv.CheckAvailability(c.UserContext(), productID, color)
	if err != nil {
		return apiError(c, "availability.fail", err)
	}
	return c.JSON(avail)
}
