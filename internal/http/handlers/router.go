package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"satchel/internal/config"
	applog "satchel/internal/log"
	"satchel/internal/metrics"
)

var errMissingCSRF = errors.New("missing csrf token")

func isAPI(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), "/api/")
}

// errorHandler logs and returns a friendly message without internals.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := msgGeneric
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < 500 {
		code = fe.Code
		msg = statusMessage(code)
	}
	applog.Error(c, "server.error", err, map[string]any{"code": code})
	if isAPI(c) {
		return c.Status(code).JSON(fiber.Map{"error": "request_failed", "message": msg})
	}
	if rerr := c.Status(code).Render("notfound", fiber.Map{"Message": msg}); rerr != nil {
		return c.Status(code).SendString(msg)
	}
	return nil
}

func statusMessage(code int) string {
	switch code {
	case fiber.StatusRequestEntityTooLarge:
		return "Request is too large."
	case fiber.StatusNotFound:
		return "Page not found"
	}
	return "The request could not be processed."
}

// NewApp wires repositories, services and routes into a Fiber app. Metrics
// are registered on reg and served from /metrics.
func NewApp(cfg config.Config, db *sqlx.DB, reg *prometheus.Registry) (*fiber.App, *Deps) {
	m := metrics.New(cfg.MetricsPrefix, reg)
	d := NewDeps(db, cfg, m)

	engine := html.New(cfg.TemplatesDir, ".html")
	app := fiber.New(fiber.Config{
		Views:        engine,
		ErrorHandler: errorHandler,
	})
	// Global body size guard
	app.Server().MaxRequestBodySize = 1 << 20

	// ---------- Middlewares ----------
	app.Use(fiberrecover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(m.Middleware())
	// Attach the back-office user if the sid cookie is bound
	app.Use(func(c *fiber.Ctx) error {
		if sid := c.Cookies("sid"); sid != "" {
			if u, err := d.Auth.CurrentUser(c.UserContext(), sid); err == nil && u != nil {
				c.Locals("user", u)
			}
		}
		return c.Next()
	})
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitPerMin,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return p == "/healthz" || p == "/metrics"
		},
	}))
	app.Use(csrf.New(csrf.Config{
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   false, // set true behind HTTPS
		ContextKey:     "csrf",
		// the JSON API is bearer-token authenticated and carries no cookies of value
		Next: isAPI,
		Extractor: func(c *fiber.Ctx) (string, error) {
			if tok := c.Get("X-Csrf-Token"); tok != "" {
				return tok, nil
			}
			if tok := c.FormValue("csrf"); tok != "" {
				return tok, nil
			}
			return "", errMissingCSRF
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", map[string]any{"reason": err.Error()})
			return notFound(c, fiber.StatusForbidden, "Security check failed. Please refresh and try again.")
		},
	}))
	app.Use(func(c *fiber.Ctx) error {
		if tok, ok := c.Locals("csrf").(string); ok {
			c.Locals("CSRFToken", tok)
		}
		return c.Next()
	})

	// ---------- Ops ----------
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"service": "satchel", "api": "/api/v1"})
	})

	// ---------- Storefront API ----------
	api := app.Group("/api/v1")
	requireCustomer := RequireCustomer(d.JWT)
	optionalCustomer := OptionalCustomer(d.JWT)

	api.Post("/auth/token", limiter.New(limiter.Config{
		Max:        10,
		Expiration: 10 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|token"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.token.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited", "message": "Too many attempts. Please try again later."})
		},
	}), d.AuthHandler.Token)

	api.Get("/categories", d.CategoryHandler.List)
	api.Get("/categories/:id/products", d.CategoryHandler.Products)
	api.Get("/products/:id", d.ProductHandler.Detail)
	api.Get("/search", limiter.New(limiter.Config{
		Max:        20,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|search"
		},
	}), d.SearchHandler.Search)
	api.Get("/availability", d.InventoryHandler.Check)

	api.Get("/cart", requireCustomer, d.CartHandler.View)
	api.Post("/cart/items", requireCustomer, d.CartHandler.Add)
	api.Put("/cart", requireCustomer, d.CartHandler.Replace)
	api.Delete("/cart", requireCustomer, d.CartHandler.Clear)

	api.Post("/checkout", optionalCustomer, d.OrderHandler.Checkout)
	api.Get("/orders", requireCustomer, d.OrderHandler.History)
	api.Get("/orders/:id", optionalCustomer, d.OrderHandler.View)

	// ---------- Back office ----------
	app.Get("/login", d.AuthHandler.LoginForm)
	app.Post("/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|login"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).Render("login", fiber.Map{"Err": "Too many attempts. Please try again later."})
		},
	}), d.AuthHandler.Login)
	app.Post("/logout", d.AuthHandler.Logout)

	admin := app.Group("/admin", RequireAdmin(d.Auth))
	admin.Get("/", d.AdminHandler.Dashboard)
	admin.Get("/orders", d.AdminHandler.OrdersPage)
	admin.Post("/orders/:id/status", d.AdminHandler.UpdateOrderStatus)
	admin.Post("/orders/:id/cancel", d.AdminHandler.CancelOrder)
	admin.Get("/orders/:id/adjustments", d.AdminHandler.OrderAdjustments)
	admin.Get("/inventory", d.AdminHandler.Inventory)
	admin.Post("/inventory", d.AdminHandler.UpdateInventory)
	admin.Get("/products/:id/adjustments", d.AdminHandler.Adjustments)
	admin.Post("/products", d.AdminHandler.CreateProduct)

	// 404
	app.Use(func(c *fiber.Ctx) error {
		if isAPI(c) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Not found."})
		}
		return notFound(c, fiber.StatusNotFound, "Page not found")
	})

	return app, d
}
