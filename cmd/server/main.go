package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/api"
	"github.com/bcnelson/campaign-agent-api/internal/apikey"
	"github.com/bcnelson/campaign-agent-api/internal/audit"
	"github.com/bcnelson/campaign-agent-api/internal/auth"
	"github.com/bcnelson/campaign-agent-api/internal/budget"
	"github.com/bcnelson/campaign-agent-api/internal/config"
	"github.com/bcnelson/campaign-agent-api/internal/crypto"
	"github.com/bcnelson/campaign-agent-api/internal/logger"
	"github.com/bcnelson/campaign-agent-api/internal/ratelimit"
	"github.com/bcnelson/campaign-agent-api/internal/service"
	"github.com/bcnelson/campaign-agent-api/internal/storage/sql"
	"github.com/bcnelson/campaign-agent-api/internal/web"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	// Create data directory if needed (for SQLite)
	if cfg.Database.Driver == "sqlite3" && !strings.HasPrefix(cfg.Database.DSN, ":memory:") {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0o755); err != nil {
			log.Fatal().Err(err).Msg("Failed to create data directory")
		}
	}

	// Initialize storage (runs migrations)
	store, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer store.Close()

	secret, err := cfg.Agent.GetKeyEncryptionKeyBytes()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid key encryption key")
	}
	sealer, err := crypto.NewSealer(secret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize key sealer")
	}
	keys := apikey.NewService(store, sealer)

	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	defer stopLimiter()
	limiter, err := newLimiter(limiterCtx, &cfg.Agent)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize rate limiter")
	}

	validator := budget.NewValidator(cfg.Budget.MaxMonthlyBudget)
	campaigns := service.NewCampaignService(store, validator)

	auditLogger, err := audit.NewLogger(store, audit.Config{
		PathPrefix:     api.AgentPathPrefix,
		QueueSize:      cfg.Audit.QueueSize,
		Workers:        cfg.Audit.Workers,
		MaxRetries:     cfg.Audit.MaxRetries,
		RetryBackoff:   cfg.Audit.RetryBackoff,
		MaxBodyBytes:   cfg.Audit.MaxBodyBytes,
		DeadLetterPath: cfg.Audit.DeadLetterPath,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audit logger")
	}

	dashboard := web.Config{
		BootstrapToken: cfg.Dashboard.BootstrapToken,
		BootstrapOrg:   cfg.Dashboard.BootstrapOrg,

		PostLoginRedirect: cfg.Dashboard.PostLoginRedirect,
	}
	if cfg.OIDC.Enabled {
		if err := configureOIDC(context.Background(), &cfg.OIDC, &dashboard); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize OIDC")
		}
		log.Info().Str("issuer", cfg.OIDC.IssuerURL).Msg("OIDC authentication enabled")
	}

	// Create router
	router := api.NewRouter(api.Dependencies{
		Store:              store,
		Keys:               keys,
		Campaigns:          campaigns,
		Assets:             service.NewAssetService(store),
		Audiences:          service.NewAudienceService(store),
		Limiter:            limiter,
		DefaultRateLimit:   cfg.Agent.RateLimit,
		Audit:              auditLogger,
		AuditCaptureBytes:  cfg.Server.MaxBodyBytes,
		MaxBodyBytes:       cfg.Server.MaxBodyBytes,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Dashboard:          dashboard,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Info().
		Str("addr", cfg.Server.Addr()).
		Str("db_driver", cfg.Database.Driver).
		Str("rate_strategy", cfg.Agent.RateStrategy).
		Int64("max_monthly_budget", cfg.Budget.MaxMonthlyBudget).
		Msg("Starting campaign agent API")

	// Start server in goroutine
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := auditLogger.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Audit logger did not drain in time")
	}

	stopLimiter()
	if c, ok := limiter.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close rate limiter")
		}
	}

	log.Info().Msg("Server stopped")
}

func newLimiter(ctx context.Context, cfg *config.AgentConfig) (ratelimit.Limiter, error) {
	switch cfg.RateStrategy {
	case config.RateStrategyTokenBucket:
		return ratelimit.NewTokenBucket(cfg.RateWindow), nil
	case config.RateStrategyRedis:
		return ratelimit.NewRedis(ctx, cfg.RedisURL, cfg.RateWindow)
	default:
		return ratelimit.NewFixedWindow(ctx, cfg.RateWindow), nil
	}
}

func configureOIDC(ctx context.Context, cfg *config.OIDCConfig, dashboard *web.Config) error {
	key, err := cfg.GetSessionSecretBytes()
	if err != nil {
		return err
	}

	provider, err := auth.NewOIDCProvider(
		ctx,
		cfg.IssuerURL,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.RedirectURL,
		cfg.GetScopes(),
		cfg.GetAllowedDomains(),
		cfg.OrgClaim,
	)
	if err != nil {
		return err
	}

	sessions, err := auth.NewSessionManager(key, cfg.SessionDuration, cfg.SecureCookies)
	if err != nil {
		return err
	}
	states, err := auth.NewStateStore(key, cfg.SecureCookies)
	if err != nil {
		return err
	}

	dashboard.Provider = provider
	dashboard.Sessions = sessions
	dashboard.States = states
	return nil
}
