package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helioworks/support-ai-platform/internal/customer"
	"github.com/helioworks/support-ai-platform/internal/events"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []EscalationEvent
}

func (n *recordingNotifier) NotifyEscalation(_ context.Context, _ *Session, event EscalationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, event)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type serviceFixture struct {
	svc      *Service
	store    *MemoryStore
	sink     *events.MemorySink
	notifier *recordingNotifier
	profiles *customer.StaticReadModel
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store := NewMemoryStore()
	sink := events.NewMemorySink(64)
	notifier := &recordingNotifier{}
	profiles := customer.NewStaticReadModel()

	svc := NewService(ServiceConfig{
		Store:     store,
		Analyzer:  NewAnalyzer(),
		Evaluator: NewEvaluator(1000),
		Responder: NewResponder(nil, nil, NewPromptBuilder(1000, 0.75), nil, nil, nil, 1024, time.Second),
		Customers: profiles,
		Sink:      sink,
		Notifier:  notifier,
	})
	return &serviceFixture{svc: svc, store: store, sink: sink, notifier: notifier, profiles: profiles}
}

func TestStartSessionWithGreeting(t *testing.T) {
	f := newServiceFixture(t)

	sess, err := f.svc.Start(context.Background(), StartParams{
		CompanyID: "co-1", CustomerID: "c-1", Channel: ChannelChat,
	})
	require.NoError(t, err)

	assert.Equal(t, TierAIRep, sess.CurrentTier)
	assert.Equal(t, StatusWaitingCustomer, sess.Status)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, RoleAIRep, sess.Messages[0].Role)

	evts := f.sink.Drain()
	require.Len(t, evts, 1)
	assert.Equal(t, events.SessionStarted, evts[0].Type)

	// persisted
	stored, err := f.store.Get(context.Background(), "co-1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, stored.ID)
}

func TestStartSessionWithInitialMessage(t *testing.T) {
	f := newServiceFixture(t)

	sess, err := f.svc.Start(context.Background(), StartParams{
		CompanyID: "co-1", CustomerID: "c-1", Channel: ChannelEmail,
		InitialMessage: "my delivery is late",
	})
	require.NoError(t, err)

	require.Len(t, sess.Messages, 2)
	assert.Equal(t, RoleCustomer, sess.Messages[0].Role)
	assert.Equal(t, RoleAIRep, sess.Messages[1].Role)
	assert.Equal(t, CategoryShipping, sess.IssueCategory)
	require.Len(t, sess.SentimentHistory, 1)
}

func TestStartSessionKeepsGivenCategory(t *testing.T) {
	f := newServiceFixture(t)

	sess, err := f.svc.Start(context.Background(), StartParams{
		CompanyID: "co-1", CustomerID: "c-1",
		IssueCategory:  CategoryBilling,
		InitialMessage: "my delivery is late",
	})
	require.NoError(t, err)

	// Analysis does not overwrite a category supplied at start.
	assert.Equal(t, CategoryBilling, sess.IssueCategory)
}

func TestSendMessageAppendsAndAnalyzes(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Start(ctx, StartParams{CompanyID: "co-1", CustomerID: "c-1"})
	require.NoError(t, err)
	f.sink.Drain()

	got, err := f.svc.SendMessage(ctx, "co-1", sess.ID, "I'm disappointed, my order is broken")
	require.NoError(t, err)

	assert.Equal(t, SentimentFrustrated, got.CustomerSentiment)
	assert.Equal(t, CategoryProductQuality, got.IssueCategory)
	assert.Equal(t, StatusWaitingCustomer, got.Status)

	// customer turn plus AI reply appended after the greeting
	require.Len(t, got.Messages, 3)
	assert.Equal(t, RoleCustomer, got.Messages[1].Role)
	assert.Equal(t, RoleAIRep, got.Messages[2].Role)

	evts := f.sink.Drain()
	require.Len(t, evts, 1)
	assert.Equal(t, events.MessageReceived, evts[0].Type)
}

func TestSendMessageAutoEscalatesToHuman(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Start(ctx, StartParams{CompanyID: "co-1", CustomerID: "c-1"})
	require.NoError(t, err)

	got, err := f.svc.SendMessage(ctx, "co-1", sess.ID, "Fix this or I will take legal action in court")
	require.NoError(t, err)

	assert.Equal(t, TierHumanAgent, got.CurrentTier)
	assert.Equal(t, StatusEscalated, got.Status)
	require.Len(t, got.EscalationHistory, 1)
	assert.Equal(t, ReasonLegalMention, got.EscalationHistory[0].Reason)
	assert.Equal(t, TierAIRep, got.EscalationHistory[0].FromTier)
	assert.Equal(t, 1, f.notifier.count())

	// transfer notice plus handoff message follow the customer turn
	roles := []MessageRole{}
	for _, m := range got.Messages {
		roles = append(roles, m.Role)
	}
	assert.Contains(t, roles, RoleSystem)
	assert.Equal(t, RoleHumanAgent, got.Messages[len(got.Messages)-1].Role)
}

func TestSendMessageIrateEscalatesOneTierAtATime(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Start(ctx, StartParams{CompanyID: "co-1", CustomerID: "c-1"})
	require.NoError(t, err)

	got, err := f.svc.SendMessage(ctx, "co-1", sess.ID, "this is unacceptable")
	require.NoError(t, err)
	assert.Equal(t, TierAIManager, got.CurrentTier)
	assert.Equal(t, StatusWaitingCustomer, got.Status)
	require.Len(t, got.EscalationHistory, 1)
	assert.Equal(t, ReasonIrateCustomer, got.EscalationHistory[0].Reason)
	assert.Equal(t, 0, f.notifier.count())

	got, err = f.svc.SendMessage(ctx, "co-1", sess.ID, "still unacceptable, do better")
	require.NoError(t, err)
	assert.Equal(t, TierHumanAgent, got.CurrentTier)
	assert.Equal(t, StatusEscalated, got.Status)
	require.Len(t, got.EscalationHistory, 2)
	assert.Equal(t, TierAIManager, got.EscalationHistory[1].FromTier)
	assert.Equal(t, 1, f.notifier.count())
}

func TestSendMessageRejectsEscalatedSession(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Start(ctx, StartParams{CompanyID: "co-1", CustomerID: "c-1"})
	require.NoError(t, err)
	_, err = f.svc.Escalate(ctx, "co-1", sess.ID, TierHumanAgent, "customer asked for a person")
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, "co-1", sess.ID, "hello, anyone there")
	assert.ErrorIs(t, err, ErrInvalidSessionState)

	got, err := f.svc.Get(ctx, "co-1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusEscalated, got.Status)
}

func TestSendMessageRefundEscalatesToManager(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Start(ctx, StartParams{CompanyID: "co-1", CustomerID: "c-1"})
	require.NoError(t, err)

	got, err := f.svc.SendMessage(ctx, "co-1", sess.ID, "I want my money back")
	require.NoError(t, err)

	assert.Equal(t, TierAIManager, got.CurrentTier)
	assert.Equal(t, StatusWaitingCustomer, got.Status, "manager escalation keeps the AI in the loop")
	assert.Equal(t, 0, f.notifier.count())
	assert.Equal(t, RoleAIManager, got.Messages[len(got.Messages)-1].Role)
}

func TestSendMessageRejectsTerminalSession(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Start(ctx, StartParams{CompanyID: "co-1", CustomerID: "c-1"})
	require.NoError(t, err)
	_, err = f.svc.Resolve(ctx, "co-1", sess.ID, Resolution{Type: ResolutionIssueResolved, Summary: "done"})
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, "co-1", sess.ID, "one more thing")
	assert.ErrorIs(t, err, ErrInvalidSessionState)
}

func TestSendMessageUnknownSession(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.SendMessage(context.Background(), "co-1", uuid.New(), "hello?")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManualEscalate(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Start(ctx, StartParams{CompanyID: "co-1", CustomerID: "c-1"})
	require.NoError(t, err)

	got, err := f.svc.Escalate(ctx, "co-1", sess.ID, TierHumanAgent, "customer asked for a person")
	require.NoError(t, err)

	assert.Equal(t, TierHumanAgent, got.CurrentTier)
	assert.Equal(t, StatusEscalated, got.Status)
	require.Len(t, got.EscalationHistory, 1)
	assert.Equal(t, ReasonManual, got.EscalationHistory[0].Reason)

	// downgrades and sideways moves rejected
	_, err = f.svc.Escalate(ctx, "co-1", got.ID, TierAIRep, "")
	assert.ErrorIs(t, err, ErrInvalidSessionState)
}

func TestResolveAndAbandon(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Start(ctx, StartParams{CompanyID: "co-1", CustomerID: "c-1"})
	require.NoError(t, err)
	f.sink.Drain()

	resolved, err := f.svc.Resolve(ctx, "co-1", sess.ID, Resolution{
		Type: ResolutionRefundIssued, Summary: "refunded $20",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	require.NotNil(t, resolved.Resolution)
	assert.Equal(t, ResolutionRefundIssued, resolved.Resolution.Type)

	last := resolved.Messages[len(resolved.Messages)-1]
	assert.Equal(t, RoleSystem, last.Role)
	assert.Contains(t, last.Content, "REFUND_ISSUED")
	assert.Contains(t, last.Content, "refunded $20")

	evts := f.sink.Drain()
	require.Len(t, evts, 1)
	assert.Equal(t, events.SessionResolved, evts[0].Type)
	assert.Contains(t, evts[0].Data, "duration_seconds")

	// closing twice fails
	_, err = f.svc.Resolve(ctx, "co-1", sess.ID, Resolution{Type: ResolutionIssueResolved})
	assert.ErrorIs(t, err, ErrInvalidSessionState)

	other, err := f.svc.Start(ctx, StartParams{CompanyID: "co-1", CustomerID: "c-2"})
	require.NoError(t, err)
	abandoned, err := f.svc.Abandon(ctx, "co-1", other.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAbandoned, abandoned.Status)
	assert.Nil(t, abandoned.Resolution)
}

func TestTierNeverDowngradesAcrossTurns(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Start(ctx, StartParams{CompanyID: "co-1", CustomerID: "c-1"})
	require.NoError(t, err)

	got, err := f.svc.SendMessage(ctx, "co-1", sess.ID, "I want my money back")
	require.NoError(t, err)
	require.Equal(t, TierAIManager, got.CurrentTier)

	// calm follow-up does not lower the tier
	got, err = f.svc.SendMessage(ctx, "co-1", got.ID, "thanks, that works")
	require.NoError(t, err)
	assert.Equal(t, TierAIManager, got.CurrentTier)
	require.Len(t, got.EscalationHistory, 1)
}

func TestConcurrentMessagesSerialized(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Start(ctx, StartParams{CompanyID: "co-1", CustomerID: "c-1"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SendMessage(ctx, "co-1", sess.ID, "checking in on my order")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.svc.Get(ctx, "co-1", sess.ID)
	require.NoError(t, err)
	// greeting + 10 customer turns + 10 AI replies, no lost updates
	assert.Len(t, got.Messages, 21)
}

func TestStartAttachesCustomerProfile(t *testing.T) {
	f := newServiceFixture(t)
	f.profiles.Put("co-1", &customer.Profile{
		CustomerID: "vip-1", Name: "Dana Michaels", IsVIP: true, LifetimeValue: 9000,
	})

	sess, err := f.svc.Start(context.Background(), StartParams{CompanyID: "co-1", CustomerID: "vip-1"})
	require.NoError(t, err)

	require.NotNil(t, sess.Customer)
	assert.True(t, sess.Customer.IsVIP)
	assert.Contains(t, sess.Messages[0].Content, "Dana")
}
