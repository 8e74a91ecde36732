package tierconf

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

const configTTL = 10 * time.Minute

// Limits are the monetary authority boundaries for one support tier.
type Limits struct {
	MaxDiscountPercent float64 `json:"max_discount_percent"`
	MaxRefundAmount    float64 `json:"max_refund_amount"`
	MaxWaiveAmount     float64 `json:"max_waive_amount"`
	MaxGoodwillCredit  float64 `json:"max_goodwill_credit"`
}

// Config is the per-company tier configuration, read-only at message time.
// Tier and channel keys use the session package's string values.
type Config struct {
	CompanyID     string            `json:"company_id"`
	TierLimits    map[string]Limits `json:"tier_limits"`
	StartingTiers map[string]string `json:"starting_tiers"` // channel -> tier
}

// DefaultLimits are applied when a company has not configured a tier.
func DefaultLimits(tier string) Limits {
	switch tier {
	case "AI_MANAGER":
		return Limits{MaxDiscountPercent: 25, MaxRefundAmount: 500, MaxWaiveAmount: 100, MaxGoodwillCredit: 50}
	case "HUMAN_AGENT":
		return Limits{MaxDiscountPercent: 100, MaxRefundAmount: 10000, MaxWaiveAmount: 10000, MaxGoodwillCredit: 1000}
	default: // AI_REP
		return Limits{MaxDiscountPercent: 10, MaxRefundAmount: 50, MaxWaiveAmount: 25, MaxGoodwillCredit: 10}
	}
}

type storeDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store loads per-company tier configuration from Postgres with a Redis
// read-through cache.
type Store struct {
	db     storeDB
	cache  *redis.Client
	logger *logging.Logger
}

// NewStore creates a tier configuration store. Both the pool and cache are
// optional; a nil pool serves defaults only.
func NewStore(pool *pgxpool.Pool, cache *redis.Client, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	var db storeDB
	if pool != nil {
		db = pool
	}
	return &Store{db: db, cache: cache, logger: logger}
}

// NewStoreWithDB allows injecting a mock database for testing.
func NewStoreWithDB(db storeDB, cache *redis.Client, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, cache: cache, logger: logger}
}

func configKey(companyID string) string {
	return fmt.Sprintf("tier_config:%s", companyID)
}

// Get returns the company's tier configuration, filling unset tiers with
// defaults so callers always see all three tiers.
func (s *Store) Get(ctx context.Context, companyID string) (*Config, error) {
	if s.cache != nil {
		data, err := s.cache.Get(ctx, configKey(companyID)).Bytes()
		if err == nil {
			var cfg Config
			if jsonErr := json.Unmarshal(data, &cfg); jsonErr == nil {
				return &cfg, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("tier config cache read failed", "error", err, "company_id", companyID)
		}
	}

	cfg, err := s.load(ctx, companyID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, jsonErr := json.Marshal(cfg); jsonErr == nil {
			if setErr := s.cache.Set(ctx, configKey(companyID), data, configTTL).Err(); setErr != nil {
				s.logger.Warn("tier config cache write failed", "error", setErr, "company_id", companyID)
			}
		}
	}

	return cfg, nil
}

// LimitsFor returns the authority limits for one tier of a company.
func (s *Store) LimitsFor(ctx context.Context, companyID, tier string) (Limits, error) {
	cfg, err := s.Get(ctx, companyID)
	if err != nil {
		return Limits{}, err
	}
	if l, ok := cfg.TierLimits[tier]; ok {
		return l, nil
	}
	return DefaultLimits(tier), nil
}

// StartingTier returns the tier a new session on the given channel opens at.
// Defaults to AI_REP when the channel has no explicit mapping.
func (s *Store) StartingTier(ctx context.Context, companyID, channel string) (string, error) {
	cfg, err := s.Get(ctx, companyID)
	if err != nil {
		return "", err
	}
	if t, ok := cfg.StartingTiers[channel]; ok && strings.TrimSpace(t) != "" {
		return t, nil
	}
	return "AI_REP", nil
}

// Invalidate drops the cached configuration for a company.
func (s *Store) Invalidate(ctx context.Context, companyID string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Del(ctx, configKey(companyID)).Err(); err != nil {
		return fmt.Errorf("tierconf: invalidate cache: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, companyID string) (*Config, error) {
	cfg := &Config{
		CompanyID: companyID,
		TierLimits: map[string]Limits{
			"AI_REP":      DefaultLimits("AI_REP"),
			"AI_MANAGER":  DefaultLimits("AI_MANAGER"),
			"HUMAN_AGENT": DefaultLimits("HUMAN_AGENT"),
		},
		StartingTiers: map[string]string{},
	}
	if s.db == nil {
		return cfg, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT tier, max_discount_percent, max_refund_amount, max_waive_amount, max_goodwill_credit
		FROM tier_limits
		WHERE company_id = $1
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("tierconf: load tier limits: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tier string
		var l Limits
		if err := rows.Scan(&tier, &l.MaxDiscountPercent, &l.MaxRefundAmount, &l.MaxWaiveAmount, &l.MaxGoodwillCredit); err != nil {
			return nil, fmt.Errorf("tierconf: scan tier limits: %w", err)
		}
		cfg.TierLimits[tier] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tierconf: iterate tier limits: %w", err)
	}

	chRows, err := s.db.Query(ctx, `
		SELECT channel, starting_tier
		FROM channel_starting_tiers
		WHERE company_id = $1
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("tierconf: load starting tiers: %w", err)
	}
	defer chRows.Close()
	for chRows.Next() {
		var channel, tier string
		if err := chRows.Scan(&channel, &tier); err != nil {
			return nil, fmt.Errorf("tierconf: scan starting tier: %w", err)
		}
		cfg.StartingTiers[channel] = tier
	}
	if err := chRows.Err(); err != nil {
		return nil, fmt.Errorf("tierconf: iterate starting tiers: %w", err)
	}

	return cfg, nil
}
