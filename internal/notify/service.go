package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helioworks/support-ai-platform/internal/session"
	"github.com/helioworks/support-ai-platform/pkg/logging"
)

// CompanyContact is the staff-facing contact configuration for a tenant.
type CompanyContact struct {
	SupportEmail     string
	SupportName      string
	EscalationEmails bool
}

// ContactStore retrieves company contact configuration.
type ContactStore interface {
	Contact(ctx context.Context, companyID string) (*CompanyContact, error)
}

// Service emails a company's support inbox when a session reaches a human
// agent. Delivery is best-effort; callers log and continue on error.
type Service struct {
	email    EmailSender
	contacts ContactStore
	logger   *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, contacts ContactStore, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, contacts: contacts, logger: logger}
}

// NotifyEscalation alerts staff that a session now needs a human.
func (s *Service) NotifyEscalation(ctx context.Context, sess *session.Session, event session.EscalationEvent) error {
	if s.email == nil || s.contacts == nil {
		s.logger.Debug("notify: email or contacts not configured, skipping escalation alert")
		return nil
	}

	contact, err := s.contacts.Contact(ctx, sess.CompanyID)
	if err != nil {
		return fmt.Errorf("notify: get company contact: %w", err)
	}
	if contact == nil || !contact.EscalationEmails || contact.SupportEmail == "" {
		s.logger.Debug("notify: escalation emails disabled", "company_id", sess.CompanyID)
		return nil
	}

	msg := EmailMessage{
		To:      contact.SupportEmail,
		ToName:  contact.SupportName,
		Subject: fmt.Sprintf("Support session %s needs a human agent", shortID(sess.ID.String())),
		Body:    escalationBody(sess, event),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: escalation email: %w", err)
	}

	s.logger.Info("escalation alert sent",
		"company_id", sess.CompanyID,
		"session_id", sess.ID,
		"reason", event.Reason,
		"to", contact.SupportEmail)
	return nil
}

func escalationBody(sess *session.Session, event session.EscalationEvent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "A customer conversation has been escalated to a human agent.\n\n")
	fmt.Fprintf(&sb, "Session:   %s\n", sess.ID)
	fmt.Fprintf(&sb, "Customer:  %s\n", sess.CustomerID)
	fmt.Fprintf(&sb, "Channel:   %s\n", sess.Channel)
	fmt.Fprintf(&sb, "Reason:    %s\n", event.Reason)
	if event.Notes != "" {
		fmt.Fprintf(&sb, "Notes:     %s\n", event.Notes)
	}
	fmt.Fprintf(&sb, "Sentiment: %s\n", sess.CustomerSentiment)
	if sess.IssueCategory != "" {
		fmt.Fprintf(&sb, "Issue:     %s\n", sess.IssueCategory)
	}
	if last := sess.LastCustomerMessage(); last != nil {
		fmt.Fprintf(&sb, "\nLast customer message:\n%s\n", last.Content)
	}
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// PGContactStore reads company contact configuration from PostgreSQL.
type PGContactStore struct {
	pool *pgxpool.Pool
}

func NewPGContactStore(pool *pgxpool.Pool) *PGContactStore {
	if pool == nil {
		return nil
	}
	return &PGContactStore{pool: pool}
}

func (s *PGContactStore) Contact(ctx context.Context, companyID string) (*CompanyContact, error) {
	query := `
		SELECT support_email, support_name, escalation_emails
		FROM companies
		WHERE id = $1
	`
	var c CompanyContact
	err := s.pool.QueryRow(ctx, query, companyID).Scan(&c.SupportEmail, &c.SupportName, &c.EscalationEmails)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notify: query company contact: %w", err)
	}
	return &c, nil
}

// StaticContactStore serves contacts from memory, for tests and bootstrap
// deployments.
type StaticContactStore struct {
	contacts map[string]*CompanyContact
}

func NewStaticContactStore() *StaticContactStore {
	return &StaticContactStore{contacts: make(map[string]*CompanyContact)}
}

func (s *StaticContactStore) Put(companyID string, c *CompanyContact) {
	s.contacts[companyID] = c
}

func (s *StaticContactStore) Contact(_ context.Context, companyID string) (*CompanyContact, error) {
	return s.contacts[companyID], nil
}

var _ session.StaffNotifier = (*Service)(nil)
