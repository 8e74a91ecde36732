package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/helioworks/support-ai-platform/internal/billing"
	"github.com/helioworks/support-ai-platform/internal/llm"
	"github.com/helioworks/support-ai-platform/internal/observability/metrics"
	"github.com/helioworks/support-ai-platform/internal/tierconf"
	"github.com/helioworks/support-ai-platform/pkg/logging"
)

// tenantModels is the subset of llm.Registry the responder needs.
type tenantModels interface {
	IsConfigured(ctx context.Context, companyID string) bool
	Settings(ctx context.Context, companyID string) (llm.TenantSettings, error)
}

// Responder produces the AI side of the conversation. Model failures never
// surface to the caller: every Generate returns a usable message, falling
// back to canned templates when the provider is unavailable or the tenant
// has no model configured.
type Responder struct {
	client   llm.Client
	registry tenantModels
	builder  *PromptBuilder
	ledger   *billing.Ledger
	metrics  *metrics.SessionMetrics
	tracer   trace.Tracer
	logger   *logging.Logger

	maxTokensCeiling int32
	llmTimeout       time.Duration
}

// NewResponder builds a responder. client and registry may be nil, in which
// case every response comes from the template path.
func NewResponder(client llm.Client, registry tenantModels, builder *PromptBuilder,
	ledger *billing.Ledger, m *metrics.SessionMetrics, logger *logging.Logger,
	maxTokensCeiling int32, llmTimeout time.Duration) *Responder {
	if builder == nil {
		panic("session: responder requires a prompt builder")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if maxTokensCeiling <= 0 {
		maxTokensCeiling = 1024
	}
	if llmTimeout <= 0 {
		llmTimeout = 30 * time.Second
	}
	return &Responder{
		client:           client,
		registry:         registry,
		builder:          builder,
		ledger:           ledger,
		metrics:          m,
		tracer:           otel.Tracer("session.responder"),
		logger:           logger.Component("responder"),
		maxTokensCeiling: maxTokensCeiling,
		llmTimeout:       llmTimeout,
	}
}

// Generate produces the next AI turn for the session at the given tier.
func (r *Responder) Generate(ctx context.Context, sess *Session, tier Tier, limits tierconf.Limits) Message {
	ctx, span := r.tracer.Start(ctx, "responder.generate",
		trace.WithAttributes(
			attribute.String("session.id", sess.ID.String()),
			attribute.String("session.tier", string(tier)),
		))
	defer span.End()

	if tier == TierHumanAgent || r.client == nil || r.registry == nil ||
		!r.registry.IsConfigured(ctx, sess.CompanyID) {
		return r.templateMessage(sess, tier)
	}

	settings, err := r.registry.Settings(ctx, sess.CompanyID)
	if err != nil {
		r.logger.Warn("llm settings lookup failed, using template",
			"session_id", sess.ID, "error", err)
		return r.templateMessage(sess, tier)
	}

	maxTokens := settings.MaxTokens
	if maxTokens <= 0 || maxTokens > r.maxTokensCeiling {
		maxTokens = r.maxTokensCeiling
	}

	req := llm.Request{
		Model:       settings.Model,
		System:      []string{r.builder.BuildSystemPrompt(sess, tier, limits)},
		Messages:    r.builder.BuildConversationMessages(sess),
		MaxTokens:   maxTokens,
		Temperature: settings.Temperature,
	}

	callCtx, cancel := context.WithTimeout(ctx, r.llmTimeout)
	defer cancel()

	start := time.Now()
	resp, err := r.client.Complete(callCtx, req)
	latency := time.Since(start)

	if err != nil {
		r.logger.Warn("model completion failed, using template",
			"session_id", sess.ID, "model", settings.Model, "error", err)
		span.RecordError(err)
		return r.templateMessage(sess, tier)
	}
	if strings.TrimSpace(resp.Text) == "" {
		r.logger.Warn("model returned empty completion, using template",
			"session_id", sess.ID, "model", settings.Model)
		return r.templateMessage(sess, tier)
	}

	r.metrics.ObserveLLMLatency(settings.Model, string(tier), latency.Seconds())
	r.metrics.ObserveLLMTokens(settings.Model, int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens))
	r.trackUsage(ctx, sess, tier, settings.Model, resp.Usage, latency)

	return Message{
		ID:      uuid.New(),
		Role:    RoleForTier(tier),
		Content: resp.Text,
		Metadata: &MessageMetadata{
			AIGenerated:  true,
			Model:        settings.Model,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			LatencyMS:    latency.Milliseconds(),
		},
		Timestamp: time.Now().UTC(),
	}
}

func (r *Responder) trackUsage(ctx context.Context, sess *Session, tier Tier, model string, usage llm.TokenUsage, latency time.Duration) {
	if r.ledger == nil {
		return
	}
	markup := r.ledger.MarkupFor(ctx, sess.CompanyID, string(tier))
	base, total := r.ledger.Cost(usage.InputTokens, usage.OutputTokens, markup)
	r.ledger.TrackUsage(ctx, billing.UsageRecord{
		ID:            uuid.New(),
		CompanyID:     sess.CompanyID,
		SessionID:     sess.ID,
		BillingPeriod: billing.BillingPeriod(time.Now().UTC()),
		Tier:          string(tier),
		Model:         model,
		InputTokens:   usage.InputTokens,
		OutputTokens:  usage.OutputTokens,
		LatencyMS:     latency.Milliseconds(),
		BaseCostUSD:   base,
		MarkupPercent: markup,
		TotalCostUSD:  total,
		CreatedAt:     time.Now().UTC(),
	})
}

// templateMessage picks the canned response for the session's state. Order:
// opening welcome, irate de-escalation, category script, generic clarifier.
func (r *Responder) templateMessage(sess *Session, tier Tier) Message {
	r.metrics.ObserveTemplateFallback(string(tier))

	msg := Message{
		ID:        uuid.New(),
		Role:      RoleForTier(tier),
		Metadata:  &MessageMetadata{AIGenerated: false},
		Timestamp: time.Now().UTC(),
	}

	if tier == TierHumanAgent {
		msg.Content = "Thanks for your patience. I'm connecting you with a member of our support team who can take care of this personally. They'll have the full history of this conversation, so you won't need to repeat anything."
		return msg
	}

	if !sess.HasAITurn() {
		name := ""
		if sess.Customer != nil && sess.Customer.Name != "" {
			name = " " + firstName(sess.Customer.Name)
		}
		if tier == TierAIManager {
			msg.Content = fmt.Sprintf("Hi%s, you've reached our senior support team. I have full authority to resolve your issue. What can I do for you today?", name)
		} else {
			msg.Content = fmt.Sprintf("Hi%s! Thanks for reaching out to support. What can I help you with today?", name)
		}
		return msg
	}

	if sess.CustomerSentiment == SentimentIrate {
		if tier == TierAIManager {
			msg.Content = "You have every right to be upset, and I'm stepping in personally to fix this. I have the authority to issue refunds and credits on the spot. Give me one moment to review your account and I'll make this right."
		} else {
			msg.Content = "I completely understand your frustration, and I'm truly sorry for the experience you've had. I want to make this right. Let me review everything on your account and find the best way to resolve this for you right away."
		}
		msg.Metadata.SuggestedActions = []string{"offer callback", "provide compensation", "escalate to human"}
		msg.Metadata.InternalNote = "customer irate; handle with priority"
		return msg
	}

	if script, ok := categoryTemplates[sess.IssueCategory]; ok {
		msg.Content = script
		return msg
	}

	msg.Content = "Thanks for reaching out. Could you share a few more details about what you need help with, so I can point you in the right direction?"
	return msg
}

var categoryTemplates = map[IssueCategory]string{
	CategoryRefund:         "I can help with your refund. Could you confirm the order number? Once I have it, I'll check eligibility and start the process right away.",
	CategoryShipping:       "I'm sorry your delivery hasn't gone smoothly. Let me pull up the tracking details for your order and see exactly where it is.",
	CategoryCancellation:   "I can take care of that cancellation for you. Could you confirm which subscription or order you'd like to cancel?",
	CategoryBilling:        "Let's sort out that charge. Could you tell me the amount and the date it appeared? I'll walk through it with you line by line.",
	CategoryProductQuality: "I'm sorry the item didn't arrive in good condition. We can send a replacement or issue a refund, whichever you prefer.",
	CategoryTechnical:      "Let's get that working. Could you describe what happens when you try, including any error message you see?",
	CategoryAccountAccess:  "I can help you get back into your account. For security I'll send a reset link to the email on file, does that work?",
	CategoryOrderStatus:    "Let me check on that order for you. Could you confirm the order number so I can pull up its current status?",
	CategoryComplaint:      "Thank you for telling us about this. I want to make sure your concern reaches the right people. Could you walk me through what happened?",
	CategoryGeneralInquiry: "Happy to help with that. Could you give me a little more detail so I can find the right answer for you?",
}

func firstName(full string) string {
	if i := strings.IndexByte(full, ' '); i > 0 {
		return full[:i]
	}
	return full
}
