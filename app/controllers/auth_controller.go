package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TFVisualizer/app/models"
	"github.com/ManuelReschke/TFVisualizer/app/repository"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/appctx"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/usercontext"
)

const minPasswordLength = 8

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthController handles registration, login and token rotation
type AuthController struct {
	app *appctx.App
}

func NewAuthController(app *appctx.App) *AuthController {
	return &AuthController{app: app}
}

// HandleRegister creates a free account and logs it in.
func (ac *AuthController) HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if !bindJSON(c, &req) {
		return errorJSON(c, fiber.StatusBadRequest, "Missing required fields")
	}

	email := models.NormalizeEmail(req.Email)
	if _, err := ac.app.Repos.User.GetByEmail(email); err == nil {
		return errorJSON(c, fiber.StatusBadRequest, "Email already registered")
	} else if !repository.IsNotFound(err) {
		log.Errorf("[Auth] Registration lookup failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Registration failed")
	}

	if len(req.Password) < minPasswordLength {
		return errorJSON(c, fiber.StatusBadRequest, "Password must be at least 8 characters")
	}

	user, err := models.CreateUser(req.Name, email, req.Password)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid registration data")
	}
	if err := ac.app.Repos.User.Create(user); err != nil {
		if repository.IsDuplicateKey(err) {
			return errorJSON(c, fiber.StatusBadRequest, "Email already registered")
		}
		log.Errorf("[Auth] Registration error: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Registration failed")
	}

	log.Infof("[Auth] New user registered: %s", user.ID)
	return ac.respondWithTokens(c, fiber.StatusCreated, user, "User registered successfully")
}

// HandleLogin exchanges email and password for a token pair.
func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if !bindJSON(c, &req) {
		return errorJSON(c, fiber.StatusBadRequest, "Missing email or password")
	}

	user, err := ac.app.Repos.User.GetByEmail(models.NormalizeEmail(req.Email))
	if err != nil && !repository.IsNotFound(err) {
		log.Errorf("[Auth] Login lookup failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Login failed")
	}
	if user == nil || !user.CheckPassword(req.Password) {
		return errorJSON(c, fiber.StatusUnauthorized, "Invalid email or password")
	}

	log.Infof("[Auth] User logged in: %s", user.ID)
	return ac.respondWithTokens(c, fiber.StatusOK, user, "Login successful")
}

func (ac *AuthController) HandleMe(c *fiber.Ctx) error {
	user := usercontext.GetUser(c)
	return c.JSON(fiber.Map{
		"success": true,
		"user":    user.ToDict(time.Now()),
	})
}

// HandleRefresh issues a new access token for a valid refresh token.
func (ac *AuthController) HandleRefresh(c *fiber.Ctx) error {
	access, err := ac.app.Tokens.IssueAccess(usercontext.GetUserID(c))
	if err != nil {
		log.Errorf("[Auth] Token refresh error: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Token refresh failed")
	}
	setAuthCookies(c, ac.app, access, "")
	return c.JSON(fiber.Map{
		"success":      true,
		"access_token": access,
	})
}

// HandleLogout clears the token cookies. Clients drop stored tokens themselves.
func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	clearAuthCookies(c, ac.app)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logout successful",
	})
}

func (ac *AuthController) respondWithTokens(c *fiber.Ctx, status int, user *models.User, message string) error {
	pair, err := ac.app.Tokens.IssuePair(user.ID)
	if err != nil {
		log.Errorf("[Auth] Failed to issue tokens for %s: %v", user.ID, err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to issue tokens")
	}
	setAuthCookies(c, ac.app, pair.AccessToken, pair.RefreshToken)
	return c.Status(status).JSON(fiber.Map{
		"success":       true,
		"message":       message,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"user":          user.ToDict(time.Now()),
	})
}
