package controllers

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TFVisualizer/internal/pkg/appctx"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/usercontext"
)

var validate = validator.New()

// bindJSON parses and validates a request body. ok is false when the body is
// unreadable or fails validation.
func bindJSON(c *fiber.Ctx, dst interface{}) bool {
	if err := c.BodyParser(dst); err != nil {
		return false
	}
	return validate.Struct(dst) == nil
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// setAuthCookies mirrors the issued tokens into HttpOnly cookies for browser clients.
func setAuthCookies(c *fiber.Ctx, a *appctx.App, access, refresh string) {
	now := time.Now()
	if access != "" {
		c.Cookie(authCookie(a, usercontext.AccessTokenCookie, access, now.Add(a.Config.AccessTTL)))
	}
	if refresh != "" {
		c.Cookie(authCookie(a, usercontext.RefreshTokenCookie, refresh, now.Add(a.Config.RefreshTTL)))
	}
}

func clearAuthCookies(c *fiber.Ctx, a *appctx.App) {
	expired := time.Unix(0, 0)
	c.Cookie(authCookie(a, usercontext.AccessTokenCookie, "", expired))
	c.Cookie(authCookie(a, usercontext.RefreshTokenCookie, "", expired))
}

func authCookie(a *appctx.App, name, value string, expires time.Time) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   !a.Config.IsDev(),
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}
