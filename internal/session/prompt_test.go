package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/helioworks/support-ai-platform/internal/customer"
	"github.com/helioworks/support-ai-platform/internal/llm"
	"github.com/helioworks/support-ai-platform/internal/tierconf"
)

func TestBuildSystemPromptRep(t *testing.T) {
	b := NewPromptBuilder(1000, 0.75)
	sess := &Session{CurrentTier: TierAIRep, IssueCategory: CategoryShipping}

	prompt := b.BuildSystemPrompt(sess, TierAIRep, tierconf.DefaultLimits("AI_REP"))

	assert.Contains(t, prompt, "customer service representative")
	assert.Contains(t, prompt, "Discounts up to 10%")
	assert.Contains(t, prompt, "Refunds up to $50.00")
	assert.Contains(t, prompt, "shipping or delivery")
}

func TestBuildSystemPromptManagerLimits(t *testing.T) {
	b := NewPromptBuilder(1000, 0.75)
	sess := &Session{CurrentTier: TierAIManager, IssueCategory: CategoryRefund}

	limits := tierconf.Limits{MaxDiscountPercent: 30, MaxRefundAmount: 750, MaxWaiveAmount: 200, MaxGoodwillCredit: 80}
	prompt := b.BuildSystemPrompt(sess, TierAIManager, limits)

	assert.Contains(t, prompt, "senior customer service manager")
	assert.Contains(t, prompt, "Discounts up to 30%")
	assert.Contains(t, prompt, "Refunds up to $750.00")
	assert.Contains(t, prompt, "refund request")
}

func TestBuildSystemPromptSentimentBlock(t *testing.T) {
	b := NewPromptBuilder(1000, 0.75)
	sess := &Session{
		CurrentTier: TierAIRep,
		SentimentHistory: []SentimentSnapshot{
			{Sentiment: SentimentNeutral, Score: 0.6, Timestamp: time.Now()},
			{Sentiment: SentimentIrate, Score: 0.0, Trigger: "lawsuit", Timestamp: time.Now()},
		},
	}

	prompt := b.BuildSystemPrompt(sess, TierAIRep, tierconf.DefaultLimits("AI_REP"))

	// latest snapshot wins
	assert.Contains(t, prompt, "irate")
	assert.NotContains(t, prompt, "tone is neutral")
}

func TestBuildSystemPromptWrapUpOnHighSentiment(t *testing.T) {
	b := NewPromptBuilder(1000, 0.75)
	sess := &Session{
		CurrentTier: TierAIRep,
		SentimentHistory: []SentimentSnapshot{
			{Sentiment: SentimentAngry, Score: 0.2, Timestamp: time.Now()},
			{Sentiment: SentimentSatisfied, Score: 0.8, Timestamp: time.Now()},
		},
	}

	prompt := b.BuildSystemPrompt(sess, TierAIRep, tierconf.DefaultLimits("AI_REP"))
	assert.Contains(t, prompt, "wrap up the conversation")

	// A higher threshold keeps the per-sentiment guidance.
	strict := NewPromptBuilder(1000, 0.9)
	prompt = strict.BuildSystemPrompt(sess, TierAIRep, tierconf.DefaultLimits("AI_REP"))
	assert.Contains(t, prompt, "satisfied")
	assert.NotContains(t, prompt, "wrap up the conversation")
}

func TestBuildSystemPromptCustomerBlock(t *testing.T) {
	b := NewPromptBuilder(1000, 0.75)
	sess := &Session{
		CurrentTier: TierAIRep,
		Customer: &customer.Profile{
			CustomerID:    "c1",
			Name:          "Dana Michaels",
			LifetimeValue: 4200,
			TenureMonths:  26,
			RecentOrders: []customer.OrderSummary{
				{OrderID: "o-9", Total: 499, Status: "delivered", PlacedAt: time.Now()},
			},
		},
	}

	prompt := b.BuildSystemPrompt(sess, TierAIRep, tierconf.DefaultLimits("AI_REP"))

	assert.Contains(t, prompt, "Dana Michaels")
	assert.Contains(t, prompt, "Recent order o-9")
	assert.Contains(t, prompt, "high-value customer")
}

func TestBuildSystemPromptNoGenerosityForSmallAccounts(t *testing.T) {
	b := NewPromptBuilder(1000, 0.75)
	sess := &Session{
		CurrentTier:     TierAIRep,
		Customer: &customer.Profile{CustomerID: "c2", Name: "Lee", LifetimeValue: 80},
	}

	prompt := b.BuildSystemPrompt(sess, TierAIRep, tierconf.DefaultLimits("AI_REP"))
	assert.NotContains(t, prompt, "high-value customer")
}

func TestBuildConversationMessages(t *testing.T) {
	b := NewPromptBuilder(1000, 0.75)
	sess := &Session{Messages: []Message{
		{Role: RoleCustomer, Content: "where is my order"},
		{Role: RoleAIRep, Content: "let me check"},
		{Role: RoleSystem, Content: "conversation escalated"},
		{Role: RoleCustomer, Content: "any update?"},
	}}

	msgs := b.BuildConversationMessages(sess)

	assert.Len(t, msgs, 3)
	assert.Equal(t, llm.ChatRoleUser, msgs[0].Role)
	assert.Equal(t, llm.ChatRoleAssistant, msgs[1].Role)
	assert.Equal(t, llm.ChatRoleUser, msgs[2].Role)
	assert.Equal(t, "any update?", msgs[2].Content)
}

func TestBuildConversationMessagesEmptyTranscript(t *testing.T) {
	b := NewPromptBuilder(1000, 0.75)

	msgs := b.BuildConversationMessages(&Session{})

	assert.Len(t, msgs, 1)
	assert.Equal(t, llm.ChatRoleUser, msgs[0].Role)
	assert.NotEmpty(t, msgs[0].Content)
}
