package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Rate limit strategies.
const (
	RateStrategyFixedWindow = "fixed_window"
	RateStrategyTokenBucket = "token_bucket"
	RateStrategyRedis       = "redis"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Agent     AgentConfig
	Budget    BudgetConfig
	Audit     AuditConfig
	Dashboard DashboardConfig
	OIDC      OIDCConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host               string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port               int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout        time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout       time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout        time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	MaxBodyBytes       int64         `env:"SERVER_MAX_BODY_BYTES" envDefault:"1048576"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/campaigns.db"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// AgentConfig holds Agent API key and rate limit configuration.
type AgentConfig struct {
	KeyEncryptionKey string        `env:"AGENT_KEY_ENCRYPTION_KEY"`
	RateLimit        int           `env:"AGENT_RATE_LIMIT" envDefault:"60"`
	RateWindow       time.Duration `env:"AGENT_RATE_WINDOW" envDefault:"1m"`
	RateStrategy     string        `env:"AGENT_RATE_STRATEGY" envDefault:"fixed_window"`
	RedisURL         string        `env:"REDIS_URL"`
}

// GetKeyEncryptionKeyBytes returns the key sealing secret as bytes.
// 64 hex characters decode to 32 bytes; anything else is used raw.
func (c *AgentConfig) GetKeyEncryptionKeyBytes() ([]byte, error) {
	if c.KeyEncryptionKey == "" {
		return nil, fmt.Errorf("AGENT_KEY_ENCRYPTION_KEY is required")
	}
	if len(c.KeyEncryptionKey) == 64 {
		decoded, err := hex.DecodeString(c.KeyEncryptionKey)
		if err == nil {
			return decoded, nil
		}
	}
	if len(c.KeyEncryptionKey) < 16 {
		return nil, fmt.Errorf("AGENT_KEY_ENCRYPTION_KEY must be at least 16 bytes (or 64 hex characters)")
	}
	return []byte(c.KeyEncryptionKey), nil
}

// BudgetConfig holds the monthly budget ceiling.
type BudgetConfig struct {
	MaxMonthlyBudget int64 `env:"MAX_MONTHLY_BUDGET" envDefault:"10000"`
}

// AuditConfig holds audit pipeline configuration.
type AuditConfig struct {
	QueueSize      int           `env:"AUDIT_QUEUE_SIZE" envDefault:"1024"`
	Workers        int           `env:"AUDIT_WORKERS" envDefault:"2"`
	MaxRetries     int           `env:"AUDIT_MAX_RETRIES" envDefault:"3"`
	RetryBackoff   time.Duration `env:"AUDIT_RETRY_BACKOFF" envDefault:"200ms"`
	MaxBodyBytes   int           `env:"AUDIT_MAX_BODY_BYTES" envDefault:"10000"`
	DeadLetterPath string        `env:"AUDIT_DEAD_LETTER_PATH" envDefault:"data/audit-dead-letter.jsonl"`
}

// DashboardConfig holds headless dashboard access for bootstrapping keys.
type DashboardConfig struct {
	BootstrapToken string `env:"DASHBOARD_BOOTSTRAP_TOKEN"`
	BootstrapOrg   string `env:"DASHBOARD_BOOTSTRAP_ORG"`
	// PostLoginRedirect sends browsers here after sign-in; empty answers with JSON.
	PostLoginRedirect string `env:"DASHBOARD_POST_LOGIN_REDIRECT"`
}

// OIDCConfig holds OIDC authentication configuration.
type OIDCConfig struct {
	Enabled         bool          `env:"OIDC_ENABLED" envDefault:"false"`
	IssuerURL       string        `env:"OIDC_ISSUER_URL"`
	ClientID        string        `env:"OIDC_CLIENT_ID"`
	ClientSecret    string        `env:"OIDC_CLIENT_SECRET"`
	RedirectURL     string        `env:"OIDC_REDIRECT_URL"`
	Scopes          string        `env:"OIDC_SCOPES" envDefault:"openid,email,profile"`
	SessionSecret   string        `env:"OIDC_SESSION_SECRET"`
	SessionDuration time.Duration `env:"OIDC_SESSION_DURATION" envDefault:"24h"`
	AllowedDomains  string        `env:"OIDC_ALLOWED_DOMAINS"`
	OrgClaim        string        `env:"OIDC_ORG_CLAIM" envDefault:"org_id"`
	SecureCookies   bool          `env:"OIDC_SECURE_COOKIES" envDefault:"true"`
}

// GetScopes returns the OIDC scopes as a slice.
func (c *OIDCConfig) GetScopes() []string {
	if c.Scopes == "" {
		return []string{"openid", "email", "profile"}
	}
	return strings.Split(c.Scopes, ",")
}

// GetAllowedDomains returns the allowed domains as a slice.
func (c *OIDCConfig) GetAllowedDomains() []string {
	if c.AllowedDomains == "" {
		return nil
	}
	domains := strings.Split(c.AllowedDomains, ",")
	for i := range domains {
		domains[i] = strings.TrimSpace(domains[i])
	}
	return domains
}

// GetSessionSecretBytes returns the session secret as bytes.
func (c *OIDCConfig) GetSessionSecretBytes() ([]byte, error) {
	if c.SessionSecret == "" {
		return nil, fmt.Errorf("OIDC_SESSION_SECRET is required")
	}
	// Try to decode as hex first (64 hex chars = 32 bytes)
	if len(c.SessionSecret) == 64 {
		decoded, err := hex.DecodeString(c.SessionSecret)
		if err == nil {
			return decoded, nil
		}
	}
	// Otherwise use as raw bytes (must be exactly 32 bytes)
	if len(c.SessionSecret) != 32 {
		return nil, fmt.Errorf("OIDC_SESSION_SECRET must be 32 bytes (or 64 hex characters)")
	}
	return []byte(c.SessionSecret), nil
}

// Load loads configuration from environment variables. Values from a
// .env file in the working directory fill in anything not already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("parsing logging config: %w", err)
	}
	if err := env.Parse(&cfg.Agent); err != nil {
		return nil, fmt.Errorf("parsing agent config: %w", err)
	}
	if err := env.Parse(&cfg.Budget); err != nil {
		return nil, fmt.Errorf("parsing budget config: %w", err)
	}
	if err := env.Parse(&cfg.Audit); err != nil {
		return nil, fmt.Errorf("parsing audit config: %w", err)
	}
	if err := env.Parse(&cfg.Dashboard); err != nil {
		return nil, fmt.Errorf("parsing dashboard config: %w", err)
	}
	if err := env.Parse(&cfg.OIDC); err != nil {
		return nil, fmt.Errorf("parsing oidc config: %w", err)
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite3 or postgres, got %q", c.Database.Driver)
	}

	if _, err := c.Agent.GetKeyEncryptionKeyBytes(); err != nil {
		return err
	}
	if c.Agent.RateLimit < 1 {
		return fmt.Errorf("AGENT_RATE_LIMIT must be positive")
	}
	if c.Agent.RateWindow < time.Second {
		return fmt.Errorf("AGENT_RATE_WINDOW must be at least 1s")
	}
	switch c.Agent.RateStrategy {
	case RateStrategyFixedWindow, RateStrategyTokenBucket:
	case RateStrategyRedis:
		if c.Agent.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when AGENT_RATE_STRATEGY is redis")
		}
	default:
		return fmt.Errorf("AGENT_RATE_STRATEGY must be fixed_window, token_bucket or redis, got %q", c.Agent.RateStrategy)
	}

	if c.Budget.MaxMonthlyBudget < 1 {
		return fmt.Errorf("MAX_MONTHLY_BUDGET must be positive")
	}

	if c.Audit.QueueSize < 1 || c.Audit.Workers < 1 {
		return fmt.Errorf("AUDIT_QUEUE_SIZE and AUDIT_WORKERS must be positive")
	}
	if c.Audit.MaxRetries < 0 {
		return fmt.Errorf("AUDIT_MAX_RETRIES must not be negative")
	}

	if (c.Dashboard.BootstrapToken == "") != (c.Dashboard.BootstrapOrg == "") {
		return fmt.Errorf("DASHBOARD_BOOTSTRAP_TOKEN and DASHBOARD_BOOTSTRAP_ORG must be set together")
	}

	// Validate OIDC config when enabled
	if c.OIDC.Enabled {
		if c.OIDC.IssuerURL == "" {
			return fmt.Errorf("OIDC_ISSUER_URL is required when OIDC is enabled")
		}
		if c.OIDC.ClientID == "" {
			return fmt.Errorf("OIDC_CLIENT_ID is required when OIDC is enabled")
		}
		if c.OIDC.ClientSecret == "" {
			return fmt.Errorf("OIDC_CLIENT_SECRET is required when OIDC is enabled")
		}
		if c.OIDC.RedirectURL == "" {
			return fmt.Errorf("OIDC_REDIRECT_URL is required when OIDC is enabled")
		}
		if _, err := c.OIDC.GetSessionSecretBytes(); err != nil {
			return err
		}
	}

	return nil
}
