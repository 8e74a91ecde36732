package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/helioworks/support-ai-platform/internal/customer"
	"github.com/helioworks/support-ai-platform/internal/events"
	"github.com/helioworks/support-ai-platform/internal/observability/metrics"
	"github.com/helioworks/support-ai-platform/internal/tierconf"
	"github.com/helioworks/support-ai-platform/pkg/logging"
)

// tierConfig is the slice of tierconf.Store the service needs.
type tierConfig interface {
	LimitsFor(ctx context.Context, companyID, tier string) (tierconf.Limits, error)
	StartingTier(ctx context.Context, companyID, channel string) (string, error)
}

// StaffNotifier alerts human staff when a session reaches them.
type StaffNotifier interface {
	NotifyEscalation(ctx context.Context, sess *Session, event EscalationEvent) error
}

// Service owns the session lifecycle. All mutating operations on one
// session are serialized through a per-session lock, so concurrent
// messages for the same session apply in a stable order.
type Service struct {
	store     Store
	locks     *sessionLocks
	analyzer  *Analyzer
	evaluator *Evaluator
	tiers     tierConfig
	responder *Responder
	customers customer.ReadModel
	sink      events.Sink
	notifier  StaffNotifier
	metrics   *metrics.SessionMetrics
	tracer    trace.Tracer
	logger    *logging.Logger
}

// ServiceConfig wires a Service. Store, Analyzer, Evaluator, and Responder
// are required; everything else degrades gracefully when nil.
type ServiceConfig struct {
	Store     Store
	Analyzer  *Analyzer
	Evaluator *Evaluator
	Tiers     tierConfig
	Responder *Responder
	Customers customer.ReadModel
	Sink      events.Sink
	Notifier  StaffNotifier
	Metrics   *metrics.SessionMetrics
	Logger    *logging.Logger
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Store == nil {
		panic("session: store required")
	}
	if cfg.Analyzer == nil {
		panic("session: analyzer required")
	}
	if cfg.Evaluator == nil {
		panic("session: evaluator required")
	}
	if cfg.Responder == nil {
		panic("session: responder required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:     cfg.Store,
		locks:     newSessionLocks(),
		analyzer:  cfg.Analyzer,
		evaluator: cfg.Evaluator,
		tiers:     cfg.Tiers,
		responder: cfg.Responder,
		customers: cfg.Customers,
		sink:      cfg.Sink,
		notifier:  cfg.Notifier,
		metrics:   cfg.Metrics,
		tracer:    otel.Tracer("session.service"),
		logger:    logger.Component("session"),
	}
}

// StartParams opens a new session. InitialMessage is optional; when empty
// the AI side opens with a greeting.
type StartParams struct {
	CompanyID      string
	CustomerID     string
	Channel        Channel
	IssueCategory  IssueCategory
	InitialMessage string
}

// Start opens a session on the channel's starting tier and produces the
// first AI turn.
func (s *Service) Start(ctx context.Context, p StartParams) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.start",
		trace.WithAttributes(attribute.String("channel", string(p.Channel))))
	defer span.End()

	if p.CompanyID == "" || p.CustomerID == "" {
		return nil, fmt.Errorf("session: company and customer ids required")
	}
	if p.Channel == "" {
		p.Channel = ChannelChat
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:                uuid.New(),
		CompanyID:         p.CompanyID,
		CustomerID:        p.CustomerID,
		Channel:           p.Channel,
		CurrentTier:       s.startingTier(ctx, p.CompanyID, p.Channel),
		Status:            StatusActive,
		IssueCategory:     p.IssueCategory,
		CustomerSentiment: SentimentNeutral,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if s.customers != nil {
		profile, err := s.customers.Profile(ctx, p.CompanyID, p.CustomerID)
		if err != nil {
			s.logger.Warn("customer profile lookup failed",
				"company_id", p.CompanyID, "customer_id", p.CustomerID, "error", err)
		} else {
			sess.Customer = profile
		}
	}

	if p.InitialMessage != "" {
		s.applyCustomerTurn(ctx, sess, p.InitialMessage)
	}
	s.applyAITurn(ctx, sess)

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, err
	}

	s.metrics.ObserveSessionStarted(string(sess.Channel), string(sess.CurrentTier))
	s.emit(ctx, events.New(events.SessionStarted, sess.CompanyID, sess.ID, map[string]any{
		"channel": string(sess.Channel),
		"tier":    string(sess.CurrentTier),
	}))
	return sess, nil
}

func (s *Service) startingTier(ctx context.Context, companyID string, channel Channel) Tier {
	if s.tiers == nil {
		return TierAIRep
	}
	tier, err := s.tiers.StartingTier(ctx, companyID, string(channel))
	if err != nil || tier == "" {
		return TierAIRep
	}
	return Tier(tier)
}

// SendMessage appends a customer turn, re-evaluates sentiment and
// escalation, and produces the next AI turn.
func (s *Service) SendMessage(ctx context.Context, companyID string, id uuid.UUID, content string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.send_message",
		trace.WithAttributes(attribute.String("session.id", id.String())))
	defer span.End()

	if content == "" {
		return nil, fmt.Errorf("session: message content required")
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.store.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != StatusActive && sess.Status != StatusWaitingCustomer {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidSessionState, sess.Status)
	}
	sess.Status = StatusActive

	analysis := s.applyCustomerTurn(ctx, sess, content)

	if decision := s.evaluator.Evaluate(sess, analysis); decision.ShouldEscalate {
		s.applyEscalation(ctx, sess, EscalationEvent{
			FromTier:  sess.CurrentTier,
			ToTier:    decision.TargetTier,
			Reason:    decision.Reason,
			Notes:     decision.Notes,
			Timestamp: time.Now().UTC(),
		})
	}

	s.applyAITurn(ctx, sess)

	if err := s.store.Update(ctx, sess); err != nil {
		return nil, err
	}

	s.emit(ctx, events.New(events.MessageReceived, sess.CompanyID, sess.ID, map[string]any{
		"sentiment": string(analysis.Sentiment),
		"category":  string(analysis.Category),
		"tier":      string(sess.CurrentTier),
	}))
	return sess, nil
}

// Escalate moves a session to a higher tier on request, e.g. from an
// operator console. Target must outrank the current tier.
func (s *Service) Escalate(ctx context.Context, companyID string, id uuid.UUID, target Tier, notes string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.escalate",
		trace.WithAttributes(attribute.String("session.id", id.String())))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.store.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if sess.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidSessionState, sess.Status)
	}
	if target.Rank() <= sess.CurrentTier.Rank() {
		return nil, fmt.Errorf("%w: cannot move %s to %s", ErrInvalidSessionState, sess.CurrentTier, target)
	}

	s.applyEscalation(ctx, sess, EscalationEvent{
		FromTier:  sess.CurrentTier,
		ToTier:    target,
		Reason:    ReasonManual,
		Notes:     notes,
		Timestamp: time.Now().UTC(),
	})
	s.applyAITurn(ctx, sess)

	if err := s.store.Update(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Resolve closes a session with a resolution record. Terminal: no further
// messages or escalations are accepted afterward.
func (s *Service) Resolve(ctx context.Context, companyID string, id uuid.UUID, res Resolution) (*Session, error) {
	return s.close(ctx, companyID, id, StatusResolved, &res)
}

// Abandon closes a session the customer walked away from.
func (s *Service) Abandon(ctx context.Context, companyID string, id uuid.UUID) (*Session, error) {
	return s.close(ctx, companyID, id, StatusAbandoned, nil)
}

func (s *Service) close(ctx context.Context, companyID string, id uuid.UUID, status Status, res *Resolution) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.close",
		trace.WithAttributes(attribute.String("session.id", id.String())))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.store.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if sess.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: session already %s", ErrInvalidSessionState, sess.Status)
	}

	now := time.Now().UTC()
	sess.Status = status
	sess.Resolution = res
	sess.ResolvedAt = &now
	sess.UpdatedAt = now

	if res != nil {
		sess.Messages = append(sess.Messages, Message{
			ID:        uuid.New(),
			Role:      RoleSystem,
			Content:   fmt.Sprintf("Session resolved (%s): %s", res.Type, res.Summary),
			Timestamp: now,
		})
	}

	if err := s.store.Update(ctx, sess); err != nil {
		return nil, err
	}

	resType := ""
	if res != nil {
		resType = string(res.Type)
	}
	s.metrics.ObserveResolution(resType, string(sess.CurrentTier))
	s.emit(ctx, events.New(events.SessionResolved, sess.CompanyID, sess.ID, map[string]any{
		"status":           string(status),
		"resolution_type":  resType,
		"duration_seconds": now.Sub(sess.CreatedAt).Seconds(),
	}))
	return sess, nil
}

// Get returns one session scoped to the company.
func (s *Service) Get(ctx context.Context, companyID string, id uuid.UUID) (*Session, error) {
	return s.store.Get(ctx, companyID, id)
}

// List returns sessions matching the filter, newest first.
func (s *Service) List(ctx context.Context, companyID string, filter ListFilter) ([]*Session, error) {
	return s.store.List(ctx, companyID, filter)
}

// applyCustomerTurn appends the customer message and updates sentiment
// state from its analysis.
func (s *Service) applyCustomerTurn(ctx context.Context, sess *Session, content string) Analysis {
	analysis := s.analyzer.Analyze(content)
	now := time.Now().UTC()

	sentiment := analysis.Sentiment
	sess.Messages = append(sess.Messages, Message{
		ID:        uuid.New(),
		Role:      RoleCustomer,
		Content:   content,
		Sentiment: &sentiment,
		Timestamp: now,
	})
	sess.CustomerSentiment = analysis.Sentiment
	sess.SentimentHistory = append(sess.SentimentHistory, SentimentSnapshot{
		Sentiment: analysis.Sentiment,
		Score:     analysis.Sentiment.Score(),
		Trigger:   analysis.Trigger,
		Timestamp: now,
	})
	if sess.IssueCategory == CategoryNone && analysis.Category != CategoryNone {
		sess.IssueCategory = analysis.Category
	}
	sess.UpdatedAt = now

	s.metrics.ObserveMessage(string(RoleCustomer))
	return analysis
}

// applyAITurn asks the responder for the next turn and appends it. The
// responder never fails, so neither does this.
func (s *Service) applyAITurn(ctx context.Context, sess *Session) {
	limits := s.limitsFor(ctx, sess)
	msg := s.responder.Generate(ctx, sess, sess.CurrentTier, limits)
	sess.Messages = append(sess.Messages, msg)
	if sess.Status == StatusActive {
		sess.Status = StatusWaitingCustomer
	}
	sess.UpdatedAt = time.Now().UTC()

	s.metrics.ObserveMessage(string(msg.Role))
}

func (s *Service) limitsFor(ctx context.Context, sess *Session) tierconf.Limits {
	if s.tiers == nil {
		return tierconf.DefaultLimits(string(sess.CurrentTier))
	}
	limits, err := s.tiers.LimitsFor(ctx, sess.CompanyID, string(sess.CurrentTier))
	if err != nil {
		s.logger.Warn("tier limits lookup failed, using defaults",
			"company_id", sess.CompanyID, "tier", sess.CurrentTier, "error", err)
		return tierconf.DefaultLimits(string(sess.CurrentTier))
	}
	return limits
}

// applyEscalation records the tier change, posts the transfer notice, and
// fires side effects. Side effects are best-effort.
func (s *Service) applyEscalation(ctx context.Context, sess *Session, event EscalationEvent) {
	sess.EscalationHistory = append(sess.EscalationHistory, event)
	sess.CurrentTier = event.ToTier
	sess.UpdatedAt = event.Timestamp

	notice := fmt.Sprintf("Conversation escalated from %s to %s (%s)", event.FromTier, event.ToTier, event.Reason)
	sess.Messages = append(sess.Messages, Message{
		ID:        uuid.New(),
		Role:      RoleSystem,
		Content:   notice,
		Timestamp: event.Timestamp,
	})

	if event.ToTier == TierHumanAgent {
		sess.Status = StatusEscalated
		if s.notifier != nil {
			if err := s.notifier.NotifyEscalation(ctx, sess, event); err != nil {
				s.logger.Warn("staff notification failed",
					"session_id", sess.ID, "error", err)
			}
		}
	}

	s.metrics.ObserveEscalation(string(event.Reason), string(event.ToTier))
	s.emit(ctx, events.New(events.SessionEscalated, sess.CompanyID, sess.ID, map[string]any{
		"from_tier": string(event.FromTier),
		"to_tier":   string(event.ToTier),
		"reason":    string(event.Reason),
	}))
	s.logger.Info("session escalated",
		"session_id", sess.ID,
		"company_id", sess.CompanyID,
		"from_tier", event.FromTier,
		"to_tier", event.ToTier,
		"reason", event.Reason)
}

func (s *Service) emit(ctx context.Context, evt events.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Emit(ctx, evt); err != nil {
		s.logger.Warn("event emit failed", "event_type", evt.Type, "error", err)
	}
}
