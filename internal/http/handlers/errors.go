package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"satchel/internal/domain"
	applog "satchel/internal/log"
	"satchel/internal/services"
)

const msgGeneric = "Something went wrong. Please try again."

// apiError maps service errors onto JSON responses. Anything unrecognised is
// logged and reported as a generic 500 without detail.
func apiError(c *fiber.Ctx, action string, err error) error {
	var (
		ins *domain.InsufficientStockError
		nf  *domain.ProductNotFoundError
		neg *domain.NegativeStockError
	)
	switch {
	case errors.Is(err, domain.ErrEmptyOrder):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "empty_cart",
			"message": "Your cart is empty.",
		})
	case errors.As(err, &ins):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":     "insufficient_stock",
			"message":   "Some items are no longer available in the quantity requested.",
			"productId": ins.ProductID,
			"color":     ins.Color,
			"available": ins.Available,
			"requested": ins.Requested,
		})
	case errors.As(err, &nf):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":     "product_not_found",
			"message":   "This item is no longer available.",
			"productId": nf.ProductID,
		})
	case errors.As(err, &neg):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":     "negative_stock",
			"message":   "Stock can not go below zero.",
			"productId": neg.ProductID,
			"available": neg.Available,
		})
	case errors.Is(err, domain.ErrCartUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "cart_unavailable",
			"message": "We could not load your cart. Please try again.",
		})
	case errors.Is(err, domain.ErrOrderNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order_not_found", "message": "Order not found."})
	case errors.Is(err, domain.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "invalid_transition", "message": "The order can not move to that status."})
	case errors.Is(err, domain.ErrUnsupportedColor), errors.Is(err, services.ErrInvalidProduct):
		return badRequest(c, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		return badRequest(c, domain.ErrInvalidQuantity.Error())
	case errors.Is(err, services.ErrBadCreds):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_credentials", "message": "Invalid email or password."})
	}
	applog.Error(c, action, err, nil)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal", "message": msgGeneric})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation", "message": msg})
}
