package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helioworks/support-ai-platform/internal/customer"
)

var (
	// ErrSessionNotFound is returned when no session matches the given
	// company and ID.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrInvalidSessionState is returned when an operation is attempted
	// on a session whose status does not permit it.
	ErrInvalidSessionState = errors.New("session: invalid state for operation")
)

// ListFilter narrows a session listing. Zero values mean "any".
type ListFilter struct {
	Status     Status
	Tier       Tier
	CustomerID string
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}

// Store persists sessions. All reads and writes are scoped by company.
type Store interface {
	Create(ctx context.Context, sess *Session) error
	Get(ctx context.Context, companyID string, id uuid.UUID) (*Session, error)
	Update(ctx context.Context, sess *Session) error
	List(ctx context.Context, companyID string, filter ListFilter) ([]*Session, error)
}

type sessionDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore persists sessions to PostgreSQL. Scalar columns carry the fields
// analytics filters on; transcript and histories live in JSONB.
type PGStore struct {
	db sessionDB
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("session: pgx pool required")
	}
	return &PGStore{db: pool}
}

// NewPGStoreWithDB exists for tests that inject pgxmock.
func NewPGStoreWithDB(db sessionDB) *PGStore {
	return &PGStore{db: db}
}

type sessionBlobs struct {
	customerJSON   []byte
	sentimentJSON  []byte
	escalationJSON []byte
	messagesJSON   []byte
	resolutionJSON []byte
}

func marshalBlobs(sess *Session) (sessionBlobs, error) {
	var b sessionBlobs
	var err error
	if sess.Customer != nil {
		if b.customerJSON, err = json.Marshal(sess.Customer); err != nil {
			return b, fmt.Errorf("session: marshal customer: %w", err)
		}
	}
	if b.sentimentJSON, err = json.Marshal(sess.SentimentHistory); err != nil {
		return b, fmt.Errorf("session: marshal sentiment history: %w", err)
	}
	if b.escalationJSON, err = json.Marshal(sess.EscalationHistory); err != nil {
		return b, fmt.Errorf("session: marshal escalation history: %w", err)
	}
	if b.messagesJSON, err = json.Marshal(sess.Messages); err != nil {
		return b, fmt.Errorf("session: marshal messages: %w", err)
	}
	if sess.Resolution != nil {
		if b.resolutionJSON, err = json.Marshal(sess.Resolution); err != nil {
			return b, fmt.Errorf("session: marshal resolution: %w", err)
		}
	}
	return b, nil
}

func (s *PGStore) Create(ctx context.Context, sess *Session) error {
	b, err := marshalBlobs(sess)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO support_sessions (
			id, company_id, customer_id, channel, current_tier, status,
			issue_category, customer_sentiment, customer_profile,
			sentiment_history, escalation_history, messages, resolution,
			created_at, updated_at, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = s.db.Exec(ctx, query,
		sess.ID, sess.CompanyID, sess.CustomerID, sess.Channel,
		sess.CurrentTier, sess.Status, sess.IssueCategory, sess.CustomerSentiment,
		b.customerJSON, b.sentimentJSON, b.escalationJSON, b.messagesJSON,
		b.resolutionJSON, sess.CreatedAt, sess.UpdatedAt, sess.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("session: insert session: %w", err)
	}
	return nil
}

func (s *PGStore) Update(ctx context.Context, sess *Session) error {
	b, err := marshalBlobs(sess)
	if err != nil {
		return err
	}
	query := `
		UPDATE support_sessions SET
			current_tier = $3, status = $4, issue_category = $5,
			customer_sentiment = $6, customer_profile = $7,
			sentiment_history = $8, escalation_history = $9, messages = $10,
			resolution = $11, updated_at = $12, resolved_at = $13
		WHERE id = $1 AND company_id = $2
	`
	ct, err := s.db.Exec(ctx, query,
		sess.ID, sess.CompanyID, sess.CurrentTier, sess.Status,
		sess.IssueCategory, sess.CustomerSentiment, b.customerJSON,
		b.sentimentJSON, b.escalationJSON, b.messagesJSON, b.resolutionJSON,
		sess.UpdatedAt, sess.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("session: update session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

const sessionColumns = `
	id, company_id, customer_id, channel, current_tier, status,
	issue_category, customer_sentiment, customer_profile,
	sentiment_history, escalation_history, messages, resolution,
	created_at, updated_at, resolved_at
`

func (s *PGStore) Get(ctx context.Context, companyID string, id uuid.UUID) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM support_sessions WHERE id = $1 AND company_id = $2`
	sess, err := scanSession(s.db.QueryRow(ctx, query, id, companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: get session: %w", err)
	}
	return sess, nil
}

func (s *PGStore) List(ctx context.Context, companyID string, filter ListFilter) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM support_sessions WHERE company_id = $1`
	args := []any{companyID}

	add := func(clause string, val any) {
		args = append(args, val)
		query += fmt.Sprintf(" AND %s $%d", clause, len(args))
	}
	if filter.Status != "" {
		add("status =", filter.Status)
	}
	if filter.Tier != "" {
		add("current_tier =", filter.Tier)
	}
	if filter.CustomerID != "" {
		add("customer_id =", filter.CustomerID)
	}
	if !filter.Since.IsZero() {
		add("created_at >=", filter.Since)
	}
	if !filter.Until.IsZero() {
		add("created_at <", filter.Until)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("session: list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("session: scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func scanSession(row pgx.Row) (*Session, error) {
	var sess Session
	var customerJSON, sentimentJSON, escalationJSON, messagesJSON, resolutionJSON []byte

	err := row.Scan(
		&sess.ID, &sess.CompanyID, &sess.CustomerID, &sess.Channel,
		&sess.CurrentTier, &sess.Status, &sess.IssueCategory, &sess.CustomerSentiment,
		&customerJSON, &sentimentJSON, &escalationJSON, &messagesJSON,
		&resolutionJSON, &sess.CreatedAt, &sess.UpdatedAt, &sess.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(customerJSON) > 0 {
		sess.Customer = &customer.Profile{}
		if err := json.Unmarshal(customerJSON, sess.Customer); err != nil {
			return nil, fmt.Errorf("unmarshal customer: %w", err)
		}
	}
	if len(sentimentJSON) > 0 {
		if err := json.Unmarshal(sentimentJSON, &sess.SentimentHistory); err != nil {
			return nil, fmt.Errorf("unmarshal sentiment history: %w", err)
		}
	}
	if len(escalationJSON) > 0 {
		if err := json.Unmarshal(escalationJSON, &sess.EscalationHistory); err != nil {
			return nil, fmt.Errorf("unmarshal escalation history: %w", err)
		}
	}
	if len(messagesJSON) > 0 {
		if err := json.Unmarshal(messagesJSON, &sess.Messages); err != nil {
			return nil, fmt.Errorf("unmarshal messages: %w", err)
		}
	}
	if len(resolutionJSON) > 0 {
		sess.Resolution = &Resolution{}
		if err := json.Unmarshal(resolutionJSON, sess.Resolution); err != nil {
			return nil, fmt.Errorf("unmarshal resolution: %w", err)
		}
	}
	return &sess, nil
}
