package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/helioworks/support-ai-platform/pkg/logging"
)

const settingsTTL = 15 * time.Minute

// TenantSettings holds the per-company provider configuration read at
// message time. A tenant with Configured=false always takes the template
// fallback path.
type TenantSettings struct {
	Configured  bool    `json:"configured"`
	Model       string  `json:"model"`
	MaxTokens   int32   `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

// Defaults applied when a tenant has no row of its own.
type RegistryDefaults struct {
	Model     string
	MaxTokens int32
}

type registryDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Registry resolves per-tenant LLM settings, caching them in Redis.
// The cache is read-mostly after first population; Invalidate must be
// called on credential or model rotation.
type Registry struct {
	db       registryDB
	cache    *redis.Client
	defaults RegistryDefaults
	logger   *logging.Logger
}

// NewRegistry creates a tenant settings registry. The Redis client is
// optional; without it every lookup goes to the database.
func NewRegistry(pool *pgxpool.Pool, cache *redis.Client, defaults RegistryDefaults, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	var db registryDB
	if pool != nil {
		db = pool
	}
	return &Registry{db: db, cache: cache, defaults: defaults, logger: logger}
}

// NewRegistryWithDB allows injecting a mock database for testing.
func NewRegistryWithDB(db registryDB, cache *redis.Client, defaults RegistryDefaults, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{db: db, cache: cache, defaults: defaults, logger: logger}
}

func settingsKey(companyID string) string {
	return fmt.Sprintf("llm_settings:%s", companyID)
}

// Settings returns the provider settings for a tenant, falling back to the
// registry defaults when the tenant has no row.
func (r *Registry) Settings(ctx context.Context, companyID string) (TenantSettings, error) {
	if strings.TrimSpace(companyID) == "" {
		return r.defaultSettings(), nil
	}

	if r.cache != nil {
		data, err := r.cache.Get(ctx, settingsKey(companyID)).Bytes()
		if err == nil {
			var s TenantSettings
			if jsonErr := json.Unmarshal(data, &s); jsonErr == nil {
				return s, nil
			}
		} else if err != redis.Nil {
			r.logger.Warn("llm settings cache read failed", "error", err, "company_id", companyID)
		}
	}

	s, err := r.load(ctx, companyID)
	if err != nil {
		return TenantSettings{}, err
	}

	if r.cache != nil {
		if data, jsonErr := json.Marshal(s); jsonErr == nil {
			if setErr := r.cache.Set(ctx, settingsKey(companyID), data, settingsTTL).Err(); setErr != nil {
				r.logger.Warn("llm settings cache write failed", "error", setErr, "company_id", companyID)
			}
		}
	}

	return s, nil
}

// IsConfigured reports whether the tenant has a usable provider. Lookup
// errors are treated as not-configured so the caller can fall back rather
// than fail the turn.
func (r *Registry) IsConfigured(ctx context.Context, companyID string) bool {
	s, err := r.Settings(ctx, companyID)
	if err != nil {
		r.logger.Warn("llm settings lookup failed", "error", err, "company_id", companyID)
		return false
	}
	return s.Configured
}

// Invalidate drops the cached settings for a tenant.
func (r *Registry) Invalidate(ctx context.Context, companyID string) error {
	if r.cache == nil {
		return nil
	}
	if err := r.cache.Del(ctx, settingsKey(companyID)).Err(); err != nil {
		return fmt.Errorf("llm: invalidate settings cache: %w", err)
	}
	return nil
}

func (r *Registry) load(ctx context.Context, companyID string) (TenantSettings, error) {
	if r.db == nil {
		return r.defaultSettings(), nil
	}

	var s TenantSettings
	err := r.db.QueryRow(ctx, `
		SELECT enabled, model, max_tokens, temperature
		FROM llm_tenant_settings
		WHERE company_id = $1
	`, companyID).Scan(&s.Configured, &s.Model, &s.MaxTokens, &s.Temperature)
	if err == pgx.ErrNoRows {
		return r.defaultSettings(), nil
	}
	if err != nil {
		return TenantSettings{}, fmt.Errorf("llm: load tenant settings: %w", err)
	}

	if strings.TrimSpace(s.Model) == "" {
		s.Model = r.defaults.Model
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = r.defaults.MaxTokens
	}
	return s, nil
}

func (r *Registry) defaultSettings() TenantSettings {
	return TenantSettings{
		Configured: r.defaults.Model != "",
		Model:      r.defaults.Model,
		MaxTokens:  r.defaults.MaxTokens,
	}
}
