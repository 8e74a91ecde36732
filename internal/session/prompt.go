package session

import (
	"fmt"
	"strings"

	"github.com/helioworks/support-ai-platform/internal/customer"
	"github.com/helioworks/support-ai-platform/internal/llm"
	"github.com/helioworks/support-ai-platform/internal/tierconf"
)

// PromptBuilder assembles the system prompt and conversation window sent
// to the model for a given session and tier.
type PromptBuilder struct {
	vipLTV        float64
	highSentiment float64
}

// NewPromptBuilder builds a prompt builder. vipLifetimeValue is the
// lifetime-value floor for the high-value customer context note;
// highSentiment is the sentiment score at or above which the prompt
// switches to wrap-up guidance.
func NewPromptBuilder(vipLifetimeValue, highSentiment float64) *PromptBuilder {
	if highSentiment <= 0 {
		highSentiment = 0.75
	}
	return &PromptBuilder{vipLTV: vipLifetimeValue, highSentiment: highSentiment}
}

// BuildSystemPrompt composes the tier persona, authority limits, sentiment
// guidance, category guidance, and customer context into one prompt.
func (b *PromptBuilder) BuildSystemPrompt(sess *Session, tier Tier, limits tierconf.Limits) string {
	var sb strings.Builder

	sb.WriteString(b.tierBase(tier, limits))

	if len(sess.SentimentHistory) > 0 {
		latest := sess.SentimentHistory[len(sess.SentimentHistory)-1]
		sb.WriteString("\n\n")
		if latest.Score >= b.highSentiment {
			sb.WriteString("The customer's sentiment is strongly positive. Confirm the issue is fully resolved, thank them, and offer to wrap up the conversation.")
		} else {
			sb.WriteString(sentimentGuidance(latest.Sentiment))
		}
	}

	sb.WriteString("\n\n")
	sb.WriteString(categoryGuidance(sess.IssueCategory))

	if sess.Customer != nil {
		sb.WriteString("\n\n")
		sb.WriteString(b.customerBlock(sess.Customer))
	}

	return sb.String()
}

func (b *PromptBuilder) tierBase(tier Tier, limits tierconf.Limits) string {
	switch tier {
	case TierAIManager:
		return fmt.Sprintf(`You are a senior customer service manager. A conversation has been escalated to you because it needs more authority or care than a front-line representative can provide. Acknowledge the escalation, take ownership, and work toward a concrete resolution.

Your authority in this conversation:
- Discounts up to %.0f%% off
- Refunds up to $%.2f
- Fee waivers up to $%.2f
- Goodwill credits up to $%.2f

Never promise anything beyond these limits. If a fair resolution requires more, say you are bringing in a human specialist.`,
			limits.MaxDiscountPercent, limits.MaxRefundAmount,
			limits.MaxWaiveAmount, limits.MaxGoodwillCredit)
	case TierHumanAgent:
		return `You are drafting notes for a human support specialist who is taking over this conversation. Summarize the customer's issue, emotional state, and anything already promised. Do not address the customer directly.`
	default:
		return fmt.Sprintf(`You are a friendly customer service representative. Help the customer quickly and accurately. Keep replies short, warm, and specific to their question.

Your authority in this conversation:
- Discounts up to %.0f%% off
- Refunds up to $%.2f
- Fee waivers up to $%.2f
- Goodwill credits up to $%.2f

Never promise anything beyond these limits. For anything larger, tell the customer you are checking with a manager.`,
			limits.MaxDiscountPercent, limits.MaxRefundAmount,
			limits.MaxWaiveAmount, limits.MaxGoodwillCredit)
	}
}

func sentimentGuidance(s Sentiment) string {
	switch s {
	case SentimentIrate:
		return "The customer is irate. Do not argue or defend policy. Apologize sincerely, validate their frustration, and focus entirely on what you can do right now."
	case SentimentAngry:
		return "The customer is angry. Lead with an apology, keep explanations brief, and move straight to concrete next steps."
	case SentimentFrustrated:
		return "The customer is frustrated. Acknowledge the inconvenience before answering, and avoid making them repeat information."
	case SentimentSatisfied:
		return "The customer is satisfied. Keep the positive momentum, confirm everything is resolved, and thank them for their patience."
	case SentimentHappy:
		return "The customer is happy. Match their tone, wrap up efficiently, and invite them to reach out any time."
	default:
		return "The customer's tone is neutral. Be clear and efficient; do not over-apologize."
	}
}

func categoryGuidance(c IssueCategory) string {
	switch c {
	case CategoryRefund:
		return "Issue type: refund request. Confirm the order, state the refund policy plainly, and if a refund is within your authority, offer it without making the customer ask twice."
	case CategoryShipping:
		return "Issue type: shipping or delivery. Share tracking details if available, give a realistic delivery estimate, and offer a remedy when the delay is on us."
	case CategoryCancellation:
		return "Issue type: cancellation. Process the cancellation without pressure tactics. You may mention one retention offer; if declined, complete the cancellation graciously."
	case CategoryBilling:
		return "Issue type: billing. Walk through the charge line by line. If a charge is wrong, fix it within your authority and say exactly when the correction will appear."
	case CategoryProductQuality:
		return "Issue type: product quality. Apologize for the defective item and offer a replacement or refund within your authority. Ask for a photo only if it genuinely changes the remedy."
	case CategoryTechnical:
		return "Issue type: technical support. Give numbered steps, one at a time, and confirm each one before moving on."
	case CategoryAccountAccess:
		return "Issue type: account access. Follow the account-recovery flow; never ask for or repeat passwords."
	case CategoryOrderStatus:
		return "Issue type: order status. State the current status and the next milestone date. If the order is late, say so directly."
	case CategoryComplaint:
		return "Issue type: complaint. Let the customer finish, restate their concern in your own words, and explain what will change as a result."
	default:
		return "Issue type: general inquiry. Answer directly, and ask one clarifying question if the request is ambiguous."
	}
}

func (b *PromptBuilder) customerBlock(p *customer.Profile) string {
	var sb strings.Builder
	sb.WriteString("Customer context:\n")
	if p.Name != "" {
		sb.WriteString(fmt.Sprintf("- Name: %s\n", p.Name))
	}
	sb.WriteString(fmt.Sprintf("- Customer for %d months\n", p.TenureMonths))
	sb.WriteString(fmt.Sprintf("- Lifetime value: $%.2f\n", p.LifetimeValue))
	if p.PriorEscalations > 0 {
		sb.WriteString(fmt.Sprintf("- Prior escalations: %d\n", p.PriorEscalations))
	}
	for _, o := range p.RecentOrders {
		sb.WriteString(fmt.Sprintf("- Recent order %s: $%.2f, status %s, placed %s\n",
			o.OrderID, o.Total, o.Status, o.PlacedAt.Format("2006-01-02")))
	}
	if p.Subscription != nil {
		sb.WriteString(fmt.Sprintf("- Subscription: %s plan, status %s\n",
			p.Subscription.Plan, p.Subscription.Status))
	}
	if p.IsVIP || p.LifetimeValue >= b.vipLTV {
		sb.WriteString("This is a high-value customer. Err on the side of generosity within your authority limits.\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// BuildConversationMessages converts the session transcript into the
// alternating user/assistant window the model expects. System messages
// (tier-change notices) are excluded. An empty transcript gets a synthetic
// opening turn so the model always has a user message to respond to.
func (b *PromptBuilder) BuildConversationMessages(sess *Session) []llm.ChatMessage {
	var msgs []llm.ChatMessage
	for _, m := range sess.Messages {
		switch m.Role {
		case RoleCustomer:
			msgs = append(msgs, llm.ChatMessage{Role: llm.ChatRoleUser, Content: m.Content})
		case RoleAIRep, RoleAIManager, RoleHumanAgent:
			msgs = append(msgs, llm.ChatMessage{Role: llm.ChatRoleAssistant, Content: m.Content})
		}
	}
	if len(msgs) == 0 {
		msgs = append(msgs, llm.ChatMessage{
			Role:    llm.ChatRoleUser,
			Content: "A customer has opened a support conversation. Greet them and ask how you can help.",
		})
	}
	return msgs
}
