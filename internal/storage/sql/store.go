package sql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapError converts driver errors into domain errors: UNIQUE violations
// become ErrAlreadyExists, everything else a DatabaseError.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return domain.NewDatabaseError(op, err)
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New creates a new SQL store and applies pending migrations.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// SQLite allows a single writer; one connection also keeps :memory:
	// databases from splitting across the pool.
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// NewWithDB wraps an existing connection without running migrations.
func NewWithDB(db *sql.DB, driver string) *Store {
	return &Store{db: sqlx.NewDb(db, driver), driver: driver}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapError("begin transaction", err)
	}
	return &Tx{tx: tx, driver: s.driver}, nil
}

// Tx wraps a database transaction.
type Tx struct {
	tx     *sqlx.Tx
	driver string
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return wrapError("commit", t.tx.Commit())
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Close is a no-op for transactions (they should be committed or rolled back).
func (t *Tx) Close() error {
	return nil
}

// BeginTx is not supported within a transaction.
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

// LockOrganization takes a transaction-scoped advisory lock on postgres.
// SQLite serializes writers on its own, so there is nothing to do there.
func (t *Tx) LockOrganization(ctx context.Context, organizationID string) error {
	if t.driver != DriverPostgres {
		return nil
	}
	_, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, organizationID)
	return wrapError("lock organization", err)
}

// helper to get the correct database interface
type dbInterface interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func expectRows(op string, result sql.Result, err error) error {
	if err != nil {
		return wrapError(op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return wrapError(op, err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ============================================
// API Keys
// ============================================

const apiKeyColumns = `id, organization_id, name, key_hash, encrypted_secret, key_prefix, permissions,
	rate_limit, expires_at, revoked_at, created_at, updated_at, last_used_at`

func createAPIKey(ctx context.Context, db dbInterface, key *domain.APIKey) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO api_keys (`+apiKeyColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		key.ID, key.OrganizationID, key.Name, key.KeyHash, key.EncryptedSecret, key.KeyPrefix, key.Permissions,
		key.RateLimit, key.ExpiresAt, key.RevokedAt, key.CreatedAt, key.UpdatedAt, key.LastUsedAt)
	return wrapError("create api key", err)
}

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return createAPIKey(ctx, s.db, key)
}

func (t *Tx) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return createAPIKey(ctx, t.tx, key)
}

func getAPIKey(ctx context.Context, db dbInterface, column, value string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := db.GetContext(ctx, &key,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE `+column+` = $1`, value)
	if err != nil {
		return nil, wrapError("get api key", err)
	}
	return &key, nil
}

func (s *Store) GetAPIKey(ctx context.Context, id string) (*domain.APIKey, error) {
	return getAPIKey(ctx, s.db, "id", id)
}

func (t *Tx) GetAPIKey(ctx context.Context, id string) (*domain.APIKey, error) {
	return getAPIKey(ctx, t.tx, "id", id)
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return getAPIKey(ctx, s.db, "key_hash", keyHash)
}

func (t *Tx) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return getAPIKey(ctx, t.tx, "key_hash", keyHash)
}

func listAPIKeys(ctx context.Context, db dbInterface, organizationID string) ([]*domain.APIKey, error) {
	keys := []*domain.APIKey{}
	err := db.SelectContext(ctx, &keys,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE organization_id = $1 ORDER BY created_at DESC`,
		organizationID)
	if err != nil {
		return nil, wrapError("list api keys", err)
	}
	return keys, nil
}

func (s *Store) ListAPIKeys(ctx context.Context, organizationID string) ([]*domain.APIKey, error) {
	return listAPIKeys(ctx, s.db, organizationID)
}

func (t *Tx) ListAPIKeys(ctx context.Context, organizationID string) ([]*domain.APIKey, error) {
	return listAPIKeys(ctx, t.tx, organizationID)
}

func updateAPIKey(ctx context.Context, db dbInterface, key *domain.APIKey) error {
	key.UpdatedAt = time.Now()
	result, err := db.ExecContext(ctx,
		`UPDATE api_keys SET name = $1, permissions = $2, rate_limit = $3, expires_at = $4, revoked_at = $5, updated_at = $6
		 WHERE id = $7`,
		key.Name, key.Permissions, key.RateLimit, key.ExpiresAt, key.RevokedAt, key.UpdatedAt, key.ID)
	return expectRows("update api key", result, err)
}

func (s *Store) UpdateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return updateAPIKey(ctx, s.db, key)
}

func (t *Tx) UpdateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return updateAPIKey(ctx, t.tx, key)
}

func deleteAPIKey(ctx context.Context, db dbInterface, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	return expectRows("delete api key", result, err)
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	return deleteAPIKey(ctx, s.db, id)
}

func (t *Tx) DeleteAPIKey(ctx context.Context, id string) error {
	return deleteAPIKey(ctx, t.tx, id)
}

func updateAPIKeyLastUsed(ctx context.Context, db dbInterface, id string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, time.Now(), id)
	return wrapError("touch api key", err)
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	return updateAPIKeyLastUsed(ctx, s.db, id)
}

func (t *Tx) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	return updateAPIKeyLastUsed(ctx, t.tx, id)
}

// ============================================
// Campaigns
// ============================================

const campaignColumns = `id, organization_id, name, description, budget, start_date, end_date, status, platforms,
	created_at, updated_at`

func createCampaign(ctx context.Context, db dbInterface, c *domain.Campaign) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO campaigns (`+campaignColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.OrganizationID, c.Name, c.Description, c.Budget, c.StartDate, c.EndDate, c.Status, c.Platforms,
		c.CreatedAt, c.UpdatedAt)
	return wrapError("create campaign", err)
}

func (s *Store) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	return createCampaign(ctx, s.db, c)
}

func (t *Tx) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	return createCampaign(ctx, t.tx, c)
}

func getCampaign(ctx context.Context, db dbInterface, id string) (*domain.Campaign, error) {
	var c domain.Campaign
	err := db.GetContext(ctx, &c, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return nil, wrapError("get campaign", err)
	}
	return &c, nil
}

func (s *Store) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return getCampaign(ctx, s.db, id)
}

func (t *Tx) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return getCampaign(ctx, t.tx, id)
}

func listCampaigns(ctx context.Context, db dbInterface, f domain.CampaignFilter) ([]*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE organization_id = $1`
	args := []any{f.OrganizationID}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	campaigns := []*domain.Campaign{}
	if err := db.SelectContext(ctx, &campaigns, query, args...); err != nil {
		return nil, wrapError("list campaigns", err)
	}
	return campaigns, nil
}

func (s *Store) ListCampaigns(ctx context.Context, f domain.CampaignFilter) ([]*domain.Campaign, error) {
	return listCampaigns(ctx, s.db, f)
}

func (t *Tx) ListCampaigns(ctx context.Context, f domain.CampaignFilter) ([]*domain.Campaign, error) {
	return listCampaigns(ctx, t.tx, f)
}

func listCampaignsInRange(ctx context.Context, db dbInterface, organizationID string, from, to domain.Date) ([]*domain.Campaign, error) {
	campaigns := []*domain.Campaign{}
	err := db.SelectContext(ctx, &campaigns,
		`SELECT `+campaignColumns+` FROM campaigns
		 WHERE organization_id = $1 AND start_date <= $2 AND end_date >= $3
		 ORDER BY start_date, id`,
		organizationID, to, from)
	if err != nil {
		return nil, wrapError("list campaigns in range", err)
	}
	return campaigns, nil
}

func (s *Store) ListCampaignsInRange(ctx context.Context, organizationID string, from, to domain.Date) ([]*domain.Campaign, error) {
	return listCampaignsInRange(ctx, s.db, organizationID, from, to)
}

func (t *Tx) ListCampaignsInRange(ctx context.Context, organizationID string, from, to domain.Date) ([]*domain.Campaign, error) {
	return listCampaignsInRange(ctx, t.tx, organizationID, from, to)
}

func updateCampaign(ctx context.Context, db dbInterface, c *domain.Campaign) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	result, err := db.ExecContext(ctx,
		`UPDATE campaigns SET name = $1, description = $2, budget = $3, start_date = $4, end_date = $5,
		 status = $6, platforms = $7, updated_at = $8 WHERE id = $9`,
		c.Name, c.Description, c.Budget, c.StartDate, c.EndDate, c.Status, c.Platforms, c.UpdatedAt, c.ID)
	return expectRows("update campaign", result, err)
}

func (s *Store) UpdateCampaign(ctx context.Context, c *domain.Campaign) error {
	return updateCampaign(ctx, s.db, c)
}

func (t *Tx) UpdateCampaign(ctx context.Context, c *domain.Campaign) error {
	return updateCampaign(ctx, t.tx, c)
}

// ============================================
// Assets
// ============================================

func createAsset(ctx context.Context, db dbInterface, a *domain.Asset) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO assets (id, organization_id, name, type, url, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.OrganizationID, a.Name, a.Type, a.URL, a.CreatedAt)
	return wrapError("create asset", err)
}

func (s *Store) CreateAsset(ctx context.Context, a *domain.Asset) error {
	return createAsset(ctx, s.db, a)
}

func (t *Tx) CreateAsset(ctx context.Context, a *domain.Asset) error {
	return createAsset(ctx, t.tx, a)
}

func getAsset(ctx context.Context, db dbInterface, id string) (*domain.Asset, error) {
	var a domain.Asset
	err := db.GetContext(ctx, &a,
		`SELECT id, organization_id, name, type, url, created_at FROM assets WHERE id = $1`, id)
	if err != nil {
		return nil, wrapError("get asset", err)
	}
	return &a, nil
}

func (s *Store) GetAsset(ctx context.Context, id string) (*domain.Asset, error) {
	return getAsset(ctx, s.db, id)
}

func (t *Tx) GetAsset(ctx context.Context, id string) (*domain.Asset, error) {
	return getAsset(ctx, t.tx, id)
}

func listAssets(ctx context.Context, db dbInterface, organizationID string, opts domain.ListOptions) ([]*domain.Asset, error) {
	assets := []*domain.Asset{}
	err := db.SelectContext(ctx, &assets,
		`SELECT id, organization_id, name, type, url, created_at FROM assets
		 WHERE organization_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		organizationID, limitOrAll(opts.Limit), opts.Offset)
	if err != nil {
		return nil, wrapError("list assets", err)
	}
	return assets, nil
}

func (s *Store) ListAssets(ctx context.Context, organizationID string, opts domain.ListOptions) ([]*domain.Asset, error) {
	return listAssets(ctx, s.db, organizationID, opts)
}

func (t *Tx) ListAssets(ctx context.Context, organizationID string, opts domain.ListOptions) ([]*domain.Asset, error) {
	return listAssets(ctx, t.tx, organizationID, opts)
}

// limitOrAll maps a non-positive limit to a value large enough for both
// dialects to mean "no limit".
func limitOrAll(limit int) int {
	if limit <= 0 {
		return 1 << 31
	}
	return limit
}

// ============================================
// Audiences
// ============================================

func createAudience(ctx context.Context, db dbInterface, a *domain.Audience) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO audiences (id, organization_id, name, description, criteria, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.OrganizationID, a.Name, a.Description, a.Criteria, a.CreatedAt)
	return wrapError("create audience", err)
}

func (s *Store) CreateAudience(ctx context.Context, a *domain.Audience) error {
	return createAudience(ctx, s.db, a)
}

func (t *Tx) CreateAudience(ctx context.Context, a *domain.Audience) error {
	return createAudience(ctx, t.tx, a)
}

func getAudience(ctx context.Context, db dbInterface, id string) (*domain.Audience, error) {
	var a domain.Audience
	err := db.GetContext(ctx, &a,
		`SELECT id, organization_id, name, description, criteria, created_at FROM audiences WHERE id = $1`, id)
	if err != nil {
		return nil, wrapError("get audience", err)
	}
	return &a, nil
}

func (s *Store) GetAudience(ctx context.Context, id string) (*domain.Audience, error) {
	return getAudience(ctx, s.db, id)
}

func (t *Tx) GetAudience(ctx context.Context, id string) (*domain.Audience, error) {
	return getAudience(ctx, t.tx, id)
}

func listAudiences(ctx context.Context, db dbInterface, organizationID string, opts domain.ListOptions) ([]*domain.Audience, error) {
	audiences := []*domain.Audience{}
	err := db.SelectContext(ctx, &audiences,
		`SELECT id, organization_id, name, description, criteria, created_at FROM audiences
		 WHERE organization_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		organizationID, limitOrAll(opts.Limit), opts.Offset)
	if err != nil {
		return nil, wrapError("list audiences", err)
	}
	return audiences, nil
}

func (s *Store) ListAudiences(ctx context.Context, organizationID string, opts domain.ListOptions) ([]*domain.Audience, error) {
	return listAudiences(ctx, s.db, organizationID, opts)
}

func (t *Tx) ListAudiences(ctx context.Context, organizationID string, opts domain.ListOptions) ([]*domain.Audience, error) {
	return listAudiences(ctx, t.tx, organizationID, opts)
}

// ============================================
// Assignments
// ============================================

func assign(ctx context.Context, db dbInterface, table, column, campaignID, id string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO `+table+` (campaign_id, `+column+`, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (campaign_id, `+column+`) DO NOTHING`,
		campaignID, id, time.Now())
	return wrapError("assign "+column, err)
}

func (s *Store) AssignAsset(ctx context.Context, campaignID, assetID string) error {
	return assign(ctx, s.db, "campaign_assets", "asset_id", campaignID, assetID)
}

func (t *Tx) AssignAsset(ctx context.Context, campaignID, assetID string) error {
	return assign(ctx, t.tx, "campaign_assets", "asset_id", campaignID, assetID)
}

func (s *Store) AssignAudience(ctx context.Context, campaignID, audienceID string) error {
	return assign(ctx, s.db, "campaign_audiences", "audience_id", campaignID, audienceID)
}

func (t *Tx) AssignAudience(ctx context.Context, campaignID, audienceID string) error {
	return assign(ctx, t.tx, "campaign_audiences", "audience_id", campaignID, audienceID)
}

func listAssigned(ctx context.Context, db dbInterface, table, column, campaignID string) ([]string, error) {
	ids := []string{}
	err := db.SelectContext(ctx, &ids,
		`SELECT `+column+` FROM `+table+` WHERE campaign_id = $1 ORDER BY created_at, `+column, campaignID)
	if err != nil {
		return nil, wrapError("list "+table, err)
	}
	return ids, nil
}

func (s *Store) ListCampaignAssetIDs(ctx context.Context, campaignID string) ([]string, error) {
	return listAssigned(ctx, s.db, "campaign_assets", "asset_id", campaignID)
}

func (t *Tx) ListCampaignAssetIDs(ctx context.Context, campaignID string) ([]string, error) {
	return listAssigned(ctx, t.tx, "campaign_assets", "asset_id", campaignID)
}

func (s *Store) ListCampaignAudienceIDs(ctx context.Context, campaignID string) ([]string, error) {
	return listAssigned(ctx, s.db, "campaign_audiences", "audience_id", campaignID)
}

func (t *Tx) ListCampaignAudienceIDs(ctx context.Context, campaignID string) ([]string, error) {
	return listAssigned(ctx, t.tx, "campaign_audiences", "audience_id", campaignID)
}

// ============================================
// Audit Log
// ============================================

func createAuditLog(ctx context.Context, db dbInterface, e *domain.AuditLogEntry) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, request_id, api_key_id, organization_id, action, resource_type, resource_id,
		 method, path, request_body, response_body, status_code, error_message, duration_ms, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		e.ID, e.RequestID, e.APIKeyID, e.OrganizationID, e.Action, e.ResourceType, e.ResourceID,
		e.Method, e.Path, e.RequestBody, e.ResponseBody, e.StatusCode, e.ErrorMessage, e.DurationMS,
		e.IPAddress, e.UserAgent, e.CreatedAt)
	return wrapError("create audit log", err)
}

func (s *Store) CreateAuditLog(ctx context.Context, e *domain.AuditLogEntry) error {
	return createAuditLog(ctx, s.db, e)
}

func (t *Tx) CreateAuditLog(ctx context.Context, e *domain.AuditLogEntry) error {
	return createAuditLog(ctx, t.tx, e)
}
