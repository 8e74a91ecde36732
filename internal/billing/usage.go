package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helioworks/support-ai-platform/pkg/logging"
)

// Rates are the base token prices in USD per million tokens.
type Rates struct {
	InputPerMillion      float64
	OutputPerMillion     float64
	DefaultMarkupPercent float64
}

// UsageRecord captures one AI-assisted turn for billing. One row per turn,
// keyed by session/company/billing period.
type UsageRecord struct {
	ID            uuid.UUID
	CompanyID     string
	SessionID     uuid.UUID
	BillingPeriod string // YYYY-MM
	Tier          string
	Model         string
	InputTokens   int32
	OutputTokens  int32
	LatencyMS     int64
	BaseCostUSD   float64
	MarkupPercent float64
	TotalCostUSD  float64
	CreatedAt     time.Time
}

type ledgerDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger writes usage records. Writes are best-effort from the caller's
// perspective: the session flow logs failures and continues.
type Ledger struct {
	db     ledgerDB
	rates  Rates
	logger *logging.Logger
}

// NewLedger creates a usage ledger. A nil pool yields a ledger that only
// computes costs, useful in tests and memory-backed bootstraps.
func NewLedger(pool *pgxpool.Pool, rates Rates, logger *logging.Logger) *Ledger {
	if logger == nil {
		logger = logging.Default()
	}
	var db ledgerDB
	if pool != nil {
		db = pool
	}
	return &Ledger{db: db, rates: rates, logger: logger}
}

// NewLedgerWithDB allows injecting a mock database for testing.
func NewLedgerWithDB(db ledgerDB, rates Rates, logger *logging.Logger) *Ledger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Ledger{db: db, rates: rates, logger: logger}
}

// BillingPeriod formats the billing period key for a point in time.
func BillingPeriod(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Cost computes the base and marked-up cost for a token count. Markup is a
// percentage on top of base; a zero markup argument applies the default.
func (l *Ledger) Cost(inputTokens, outputTokens int32, markupPercent float64) (base, total float64) {
	if markupPercent <= 0 {
		markupPercent = l.rates.DefaultMarkupPercent
	}
	base = float64(inputTokens)/1e6*l.rates.InputPerMillion +
		float64(outputTokens)/1e6*l.rates.OutputPerMillion
	total = base * (1 + markupPercent/100)
	return base, total
}

// MarkupFor looks up the tenant's markup percentage for a tier from the
// pricing config table, falling back to the default on any miss or error.
func (l *Ledger) MarkupFor(ctx context.Context, companyID, tier string) float64 {
	if l.db == nil {
		return l.rates.DefaultMarkupPercent
	}
	var markup float64
	err := l.db.QueryRow(ctx, `
		SELECT markup_percent
		FROM company_pricing
		WHERE company_id = $1 AND tier = $2
	`, companyID, tier).Scan(&markup)
	if err != nil {
		if err != pgx.ErrNoRows {
			l.logger.Warn("billing: markup lookup failed", "error", err, "company_id", companyID, "tier", tier)
		}
		return l.rates.DefaultMarkupPercent
	}
	if markup <= 0 {
		return l.rates.DefaultMarkupPercent
	}
	return markup
}

// Record computes costs and persists a usage record.
func (l *Ledger) Record(ctx context.Context, rec UsageRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.BillingPeriod == "" {
		rec.BillingPeriod = BillingPeriod(rec.CreatedAt)
	}
	if rec.MarkupPercent <= 0 {
		rec.MarkupPercent = l.MarkupFor(ctx, rec.CompanyID, rec.Tier)
	}
	rec.BaseCostUSD, rec.TotalCostUSD = l.Cost(rec.InputTokens, rec.OutputTokens, rec.MarkupPercent)

	if l.db == nil {
		return nil
	}

	_, err := l.db.Exec(ctx, `
		INSERT INTO usage_records (
			id, company_id, session_id, billing_period, tier, model,
			input_tokens, output_tokens, latency_ms,
			base_cost_usd, markup_percent, total_cost_usd, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, rec.ID, rec.CompanyID, rec.SessionID, rec.BillingPeriod, rec.Tier, rec.Model,
		rec.InputTokens, rec.OutputTokens, rec.LatencyMS,
		rec.BaseCostUSD, rec.MarkupPercent, rec.TotalCostUSD, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("billing: insert usage record: %w", err)
	}
	return nil
}

// TrackUsage records usage and swallows any failure. Usage tracking must
// never fail the parent operation.
func (l *Ledger) TrackUsage(ctx context.Context, rec UsageRecord) {
	if err := l.Record(ctx, rec); err != nil {
		l.logger.Error("billing: usage record write failed",
			"error", err,
			"company_id", rec.CompanyID,
			"session_id", rec.SessionID,
		)
	}
}
