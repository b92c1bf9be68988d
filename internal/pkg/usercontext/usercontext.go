package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TFVisualizer/app/models"
)

// UserContext represents the authenticated caller of a request
type UserContext struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	IsLoggedIn bool   `json:"is_logged_in"`
	Tier       string `json:"tier"`
}

// Set stores the verified user on the request.
func Set(c *fiber.Ctx, user *models.User) {
	c.Locals(KeyUser, user)
	c.Locals(KeyUserID, user.ID)
	c.Locals(KeyUserContext, UserContext{
		UserID:     user.ID,
		Email:      user.Email,
		IsLoggedIn: true,
		Tier:       user.SubscriptionTier,
	})
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return ctx
	}
	return UserContext{IsLoggedIn: false}
}

// GetUser returns the authenticated user, or nil on public routes.
func GetUser(c *fiber.Ctx) *models.User {
	if u, ok := c.Locals(KeyUser).(*models.User); ok {
		return u
	}
	return nil
}

// GetUserID returns the current user's ID, or "" if not logged in
func GetUserID(c *fiber.Ctx) string {
	return GetUserContext(c).UserID
}
