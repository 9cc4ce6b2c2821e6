package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"satchel/internal/jwtutil"
	applog "satchel/internal/log"
	"satchel/internal/services"
)

// RequireAdmin guards the back office with the sid session cookie.
func RequireAdmin(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies("sid")
		if sid == "" {
			return c.Redirect("/login")
		}
		u, err := auth.CurrentUser(c.UserContext(), sid)
		if err != nil || !u.IsAdmin() {
			applog.Security(c, "access.denied.admin", map[string]any{"sid": sid})
			return notFound(c, fiber.StatusForbidden, "Access denied")
		}
		c.Locals("user", u)
		return c.Next()
	}
}

// RequireCustomer rejects API calls without a valid bearer token.
func RequireCustomer(j *jwtutil.JWTUtil) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := bearer(c)
		if tok == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Sign in to continue."})
		}
		claims, err := j.ValidateToken(tok)
		if err != nil {
			applog.Security(c, "auth.token.invalid", map[string]any{"reason": err.Error()})
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Sign in to continue."})
		}
		c.Locals("user", claims.Subject)
		c.Locals("claims", claims)
		return c.Next()
	}
}

// OptionalCustomer attaches the customer when a valid token is present and
// lets guests through otherwise. A malformed token is treated as a guest.
func OptionalCustomer(j *jwtutil.JWTUtil) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tok := bearer(c); tok != "" {
			if claims, err := j.ValidateToken(tok); err == nil {
				c.Locals("user", claims.Subject)
				c.Locals("claims", claims)
			} else {
				applog.Security(c, "auth.token.invalid", map[string]any{"reason": err.Error()})
			}
		}
		return c.Next()
	}
}

func customerID(c *fiber.Ctx) string {
	if claims, ok := c.Locals("claims").(*jwtutil.CustomerClaims); ok && claims != nil {
		return claims.Subject
	}
	return ""
}

func bearer(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
