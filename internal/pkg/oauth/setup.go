package oauth

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/session"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	"github.com/redis/go-redis/v9"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/TFVisualizer/internal/pkg/config"
)

const (
	// ProviderGoogle is the goth provider name used in the auth routes.
	ProviderGoogle = "google"
	callbackPath   = "/api/auth/google/callback"
	stateDatabase  = 2
)

// Setup registers the Google provider and the store holding OAuth state.
// State lives in Redis when a client is given, otherwise in process memory.
// It is safe to call multiple times; providers will just be re-registered.
func Setup(cfg *config.Config, client *redis.Client) {
	goth.UseProviders(
		google.New(cfg.GoogleKey, cfg.GoogleSecret, cfg.PublicDomain+callbackPath, "email", "profile"),
	)

	storeCfg := session.Config{
		KeyLookup:      "cookie:" + gothic.SessionName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !cfg.IsDev(),
		Expiration:     time.Hour,
	}
	if client != nil {
		storeCfg.Storage = newStateStorage(client.Options())
	} else {
		log.Warn("[OAuth] No cache configured, keeping OAuth state in memory")
	}
	gothfiber.SessionStore = session.New(storeCfg)
}

// newStateStorage reuses the app cache connection on a separate database.
func newStateStorage(opts *redis.Options) *redisstorage.Storage {
	host, port := "127.0.0.1", 6379
	if opts.Addr != "" {
		if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
			host = h
			if parsed, e := strconv.Atoi(p); e == nil {
				port = parsed
			}
		} else {
			host = opts.Addr
		}
	}
	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Username: opts.Username,
		Password: opts.Password,
		Database: stateDatabase,
		Reset:    false,
	})
}
