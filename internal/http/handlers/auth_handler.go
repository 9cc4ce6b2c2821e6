package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"satchel/internal/log"
	"satchel/internal/services"
	"satchel/internal/validate"
)

type AuthHandler struct {
	Auth *services.AuthService
}

func ensureSID(c *fiber.Ctx) string {
	sid := c.Cookies("sid")
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     "sid",
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Secure:   false, // enable behind TLS
		})
	}
	return sid
}

func (h *AuthHandler) LoginForm(c *fiber.Ctx) error {
	return render(c, "login", fiber.Map{"Err": ""})
}

func (h *AuthHandler) loginFailed(c *fiber.Ctx, fields map[string]any) error {
	log.Security(c, "auth.login.fail", fields)
	return c.Status(fiber.StatusUnauthorized).Render("login", fiber.Map{
		"Err":       "Invalid email or password",
		"CSRFToken": c.Cookies("csrf_"),
	})
}

// Login signs a back-office user in and binds the sid cookie.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	sid := ensureSID(c)
	email := c.FormValue("email")
	pass := c.FormValue("password")
	if _, ok := validate.Email(email); !ok {
		return h.loginFailed(c, map[string]any{"email": email, "reason": "bad_format"})
	}
	if !validate.Password(pass) {
		return h.loginFailed(c, map[string]any{"email": email, "reason": "bad_password_format"})
	}
	u, err := h.Auth.Login(c.UserContext(), sid, email, pass)
	if err != nil {
		return h.loginFailed(c, map[string]any{"email": email})
	}
	log.Audit(c, "auth.login.success", map[string]any{"email": email, "role": u.Role})
	if u.IsAdmin() {
		return c.Redirect("/admin")
	}
	return c.Redirect("/")
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := ensureSID(c)
	_ = h.Auth.Logout(c.UserContext(), sid)
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
	log.Audit(c, "auth.logout", map[string]any{"sid": sid})
	return c.Redirect("/login")
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Token exchanges storefront credentials for a bearer token.
// POST /api/v1/auth/token
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	email, ok := validate.Email(req.Email)
	if !ok || req.Password == "" {
		log.Security(c, "auth.token.fail", map[string]any{"reason": "bad_format"})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_credentials", "message": "Invalid email or password."})
	}
	tok, u, err := h.Auth.IssueToken(c.UserContext(), email, req.Password)
	if err != nil {
		log.Security(c, "auth.token.fail", map[string]any{"email": email})
		return apiError(c, "auth.token.error", err)
	}
	log.Audit(c, "auth.token.issue", map[string]any{"user_id": u.ID})
	return c.JSON(fiber.Map{
		"token": tok,
		"user":  u,
	})
}
