package appctx

import (
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TFVisualizer/app/repository"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/assistant"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/auth"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/billing"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/cache"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/config"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/database"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/entitlements"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/mail"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/metrics"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/oauth"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/projects"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/trial"
)

// leaseWait bounds how long a save waits for a concurrent save of the same project.
const leaseWait = 2 * time.Second

// App holds every dependency the HTTP server and the CLIs share.
type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     *redis.Client
	Repos     *repository.Repositories
	Tokens    *auth.TokenService
	Projects  *projects.Service
	Billing   *billing.Service
	Assistant *assistant.Service
	Trial     *trial.Sweeper
	OAuth     *oauth.Linker
	Mailer    *mail.SMTPMailer
	Metrics   *metrics.Metrics
}

// New connects the database and cache and builds the production adapters.
func New(cfg *config.Config) (*App, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	client := cache.NewClient(cfg)

	gateway := billing.NewStripeGateway(billing.StripeConfigFromConfig(cfg))

	var streamer assistant.Streamer
	if cfg.AnthropicAPIKey != "" {
		streamer = assistant.NewClient(assistant.DefaultClientConfig(cfg.AnthropicAPIKey))
	}

	return Build(cfg, db, client, gateway, streamer), nil
}

// Build wires the services on top of already opened connections.
// A nil client disables save leases and a nil streamer disables the assistant.
func Build(cfg *config.Config, db *gorm.DB, client *redis.Client, gateway billing.Gateway, streamer assistant.Streamer) *App {
	m := metrics.New()
	repos := repository.NewFactory(db).GetRepositories()

	limits := entitlements.Limits{
		FreeProjects: cfg.FreeProjectLimit,
		ProProjects:  cfg.ProProjectLimit,
	}
	projectService := projects.NewService(repos.Project, repos.Version, limits).WithRecorder(m)
	if client != nil {
		projectService.WithLocker(cache.NewLocker(client, leaseWait))
	}

	billingService := billing.NewServiceFromDB(db, gateway).WithRecorder(m)

	mailer := mail.NewSMTPMailer(cfg)
	sweeper := trial.NewSweeper(
		repos.User,
		repos.TrialWarning,
		mail.NewTrialNotifier(mailer, cfg.FrontendURL),
		billingService,
	).WithRecorder(m)

	return &App{
		Config:    cfg,
		DB:        db,
		Redis:     client,
		Repos:     repos,
		Tokens:    auth.NewTokenService(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL),
		Projects:  projectService,
		Billing:   billingService,
		Assistant: assistant.NewService(streamer),
		Trial:     sweeper,
		OAuth:     oauth.NewLinker(repos.User),
		Mailer:    mailer,
		Metrics:   m,
	}
}

// Close releases the database and cache connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
