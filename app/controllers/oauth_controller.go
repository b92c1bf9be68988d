package controllers

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/TFVisualizer/internal/pkg/appctx"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/oauth"
)

// OAuthController runs the Google sign-in flow
type OAuthController struct {
	app *appctx.App
}

func NewOAuthController(app *appctx.App) *OAuthController {
	return &OAuthController{app: app}
}

// HandleLogin redirects to the provider's consent page.
func (oc *OAuthController) HandleLogin(c *fiber.Ctx) error {
	if c.Params("provider") != oauth.ProviderGoogle {
		return errorJSON(c, fiber.StatusNotFound, "Unknown OAuth provider")
	}
	if !oc.app.Config.GoogleConfigured() {
		return errorJSON(c, fiber.StatusInternalServerError, "Google OAuth not configured")
	}
	return gothfiber.BeginAuthHandler(c)
}

// HandleCallback completes the provider flow and hands the tokens to the dashboard.
func (oc *OAuthController) HandleCallback(c *fiber.Ctx) error {
	if c.Params("provider") != oauth.ProviderGoogle {
		return errorJSON(c, fiber.StatusNotFound, "Unknown OAuth provider")
	}
	if !oc.app.Config.GoogleConfigured() {
		return oc.fail(c, "oauth_not_configured")
	}

	gu, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		log.Warnf("[OAuth] Completing Google auth failed: %v", err)
		return oc.fail(c, "oauth_failed")
	}

	user, err := oc.app.OAuth.Resolve(gu)
	switch {
	case errors.Is(err, oauth.ErrInvalidIdentity):
		return oc.fail(c, "oauth_invalid_response")
	case errors.Is(err, oauth.ErrEmailUnverified):
		return oc.fail(c, "oauth_email_unverified")
	case errors.Is(err, oauth.ErrAlreadyLinked):
		return oc.fail(c, "oauth_account_linked")
	case err != nil:
		log.Errorf("[OAuth] Google callback error: %v", err)
		return oc.fail(c, "oauth_exception")
	}

	pair, err := oc.app.Tokens.IssuePair(user.ID)
	if err != nil {
		log.Errorf("[OAuth] Failed to issue tokens for %s: %v", user.ID, err)
		return oc.fail(c, "oauth_exception")
	}

	q := url.Values{}
	q.Set("access_token", pair.AccessToken)
	q.Set("refresh_token", pair.RefreshToken)
	return c.Redirect(oc.app.Config.FrontendURL+"/dashboard?"+q.Encode(), fiber.StatusFound)
}

func (oc *OAuthController) fail(c *fiber.Ctx, code string) error {
	return c.Redirect(oc.app.Config.FrontendURL+"/login?error="+code, fiber.StatusFound)
}
