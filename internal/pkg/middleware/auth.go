package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TFVisualizer/app/repository"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/auth"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/usercontext"
)

// RequireAuth accepts an access token from the Authorization header or the access cookie.
func RequireAuth(tokens *auth.TokenService, users repository.UserRepository) fiber.Handler {
	return requireToken(tokens, users, auth.TokenTypeAccess, usercontext.AccessTokenCookie)
}

// RequireRefresh accepts a refresh token from the Authorization header or the refresh cookie.
func RequireRefresh(tokens *auth.TokenService, users repository.UserRepository) fiber.Handler {
	return requireToken(tokens, users, auth.TokenTypeRefresh, usercontext.RefreshTokenCookie)
}

func requireToken(tokens *auth.TokenService, users repository.UserRepository, tokenType, cookie string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := extractToken(c, cookie)
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "Authorization required",
				"message": "Missing token",
			})
		}

		userID, err := tokens.Verify(raw, tokenType)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "Invalid or expired token",
				"message": "Please log in again",
			})
		}

		user, err := users.GetByID(userID)
		if err != nil {
			if repository.IsNotFound(err) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
			}
			log.Errorf("[Auth] Failed to load user %s: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load user"})
		}

		usercontext.Set(c, user)
		return c.Next()
	}
}

func extractToken(c *fiber.Ctx, cookie string) string {
	if token, ok := auth.ExtractBearerToken(c.Get(fiber.HeaderAuthorization)); ok {
		return token
	}
	return strings.TrimSpace(c.Cookies(cookie))
}
