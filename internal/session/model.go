package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/helioworks/support-ai-platform/internal/customer"
)

// Tier represents a support level with increasing monetary authority.
type Tier string

const (
	TierAIRep      Tier = "AI_REP"
	TierAIManager  Tier = "AI_MANAGER"
	TierHumanAgent Tier = "HUMAN_AGENT"
)

// Rank orders tiers from lowest to highest authority. Unknown tiers rank
// below AI_REP so a corrupt value can never satisfy a monotonicity check.
func (t Tier) Rank() int {
	switch t {
	case TierAIRep:
		return 1
	case TierAIManager:
		return 2
	case TierHumanAgent:
		return 3
	default:
		return 0
	}
}

// Status represents the lifecycle state of a session.
type Status string

const (
	StatusActive          Status = "ACTIVE"
	StatusWaitingCustomer Status = "WAITING_CUSTOMER"
	StatusEscalated       Status = "ESCALATED"
	StatusResolved        Status = "RESOLVED"
	StatusAbandoned       Status = "ABANDONED"
)

// IsTerminal reports whether no further transitions may leave this status.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusAbandoned
}

// Channel is the medium a session arrived on.
type Channel string

const (
	ChannelVoice Channel = "voice"
	ChannelChat  Channel = "chat"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Sentiment is the discretized emotional state of the customer.
type Sentiment string

const (
	SentimentIrate      Sentiment = "IRATE"
	SentimentAngry      Sentiment = "ANGRY"
	SentimentFrustrated Sentiment = "FRUSTRATED"
	SentimentNeutral    Sentiment = "NEUTRAL"
	SentimentSatisfied  Sentiment = "SATISFIED"
	SentimentHappy      Sentiment = "HAPPY"
)

// Score maps a sentiment to a numeric value, 0.0 (IRATE) to 1.0 (HAPPY).
func (s Sentiment) Score() float64 {
	switch s {
	case SentimentIrate:
		return 0.0
	case SentimentAngry:
		return 0.2
	case SentimentFrustrated:
		return 0.4
	case SentimentNeutral:
		return 0.6
	case SentimentSatisfied:
		return 0.8
	case SentimentHappy:
		return 1.0
	default:
		return 0.6
	}
}

// MessageRole identifies the author of a conversation turn.
type MessageRole string

const (
	RoleCustomer   MessageRole = "customer"
	RoleAIRep      MessageRole = "ai_rep"
	RoleAIManager  MessageRole = "ai_manager"
	RoleHumanAgent MessageRole = "human_agent"
	RoleSystem     MessageRole = "system"
)

// RoleForTier returns the message role an AI turn generated at a tier carries.
func RoleForTier(t Tier) MessageRole {
	switch t {
	case TierAIRep:
		return RoleAIRep
	case TierAIManager:
		return RoleAIManager
	case TierHumanAgent:
		return RoleHumanAgent
	default:
		return RoleSystem
	}
}

// EscalationReason is the enumerated trigger for a tier transition.
type EscalationReason string

const (
	ReasonIrateCustomer     EscalationReason = "IRATE_CUSTOMER"
	ReasonLegalMention      EscalationReason = "LEGAL_MENTION"
	ReasonSocialMediaThreat EscalationReason = "SOCIAL_MEDIA_THREAT"
	ReasonRefundRequest     EscalationReason = "REFUND_REQUEST"
	ReasonHighValueCustomer EscalationReason = "HIGH_VALUE_CUSTOMER"
	ReasonManual            EscalationReason = "MANUAL"
)

// IssueCategory classifies what the customer is contacting about.
type IssueCategory string

const (
	CategoryNone           IssueCategory = ""
	CategoryRefund         IssueCategory = "REFUND"
	CategoryShipping       IssueCategory = "SHIPPING"
	CategoryCancellation   IssueCategory = "CANCELLATION"
	CategoryBilling        IssueCategory = "BILLING"
	CategoryProductQuality IssueCategory = "PRODUCT_QUALITY"
	CategoryTechnical      IssueCategory = "TECHNICAL_SUPPORT"
	CategoryAccountAccess  IssueCategory = "ACCOUNT_ACCESS"
	CategoryOrderStatus    IssueCategory = "ORDER_STATUS"
	CategoryComplaint      IssueCategory = "COMPLAINT"
	CategoryGeneralInquiry IssueCategory = "GENERAL_INQUIRY"
)

// ResolutionType describes how a session was closed out.
type ResolutionType string

const (
	ResolutionIssueResolved      ResolutionType = "ISSUE_RESOLVED"
	ResolutionWorkaroundProvided ResolutionType = "WORKAROUND_PROVIDED"
	ResolutionRefundIssued       ResolutionType = "REFUND_ISSUED"
	ResolutionReplacementSent    ResolutionType = "REPLACEMENT_SENT"
	ResolutionEscalatedExternal  ResolutionType = "ESCALATED_EXTERNAL"
	ResolutionNoActionNeeded     ResolutionType = "NO_ACTION_NEEDED"
)

// MessageMetadata carries optional annotations on a message. AI-generated
// turns record the model and token accounting used to produce them.
type MessageMetadata struct {
	AIGenerated      bool     `json:"ai_generated"`
	Model            string   `json:"model,omitempty"`
	InputTokens      int32    `json:"input_tokens,omitempty"`
	OutputTokens     int32    `json:"output_tokens,omitempty"`
	LatencyMS        int64    `json:"latency_ms,omitempty"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`
	InternalNote     string   `json:"internal_note,omitempty"`
}

// Message is one turn in the conversation. Created once, immutable after.
type Message struct {
	ID        uuid.UUID        `json:"id"`
	Role      MessageRole      `json:"role"`
	Content   string           `json:"content"`
	Sentiment *Sentiment       `json:"sentiment,omitempty"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// SentimentSnapshot is one append-only entry in a session's sentiment history.
type SentimentSnapshot struct {
	Sentiment Sentiment `json:"sentiment"`
	Score     float64   `json:"score"`
	Trigger   string    `json:"trigger,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EscalationEvent is one append-only entry in a session's escalation history.
type EscalationEvent struct {
	FromTier  Tier             `json:"from_tier"`
	ToTier    Tier             `json:"to_tier"`
	Reason    EscalationReason `json:"reason"`
	Notes     string           `json:"notes,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Resolution records how a session ended. Set once, terminal.
type Resolution struct {
	Type             ResolutionType `json:"type"`
	Summary          string         `json:"summary"`
	ActionsTaken     []string       `json:"actions_taken,omitempty"`
	FollowUpRequired bool           `json:"follow_up_required"`
	FollowUpDate     *time.Time     `json:"follow_up_date,omitempty"`
}

// Session is one end-to-end customer-support conversation.
type Session struct {
	ID                uuid.UUID           `json:"id"`
	CompanyID         string              `json:"company_id"`
	CustomerID        string              `json:"customer_id"`
	Channel           Channel             `json:"channel"`
	CurrentTier       Tier                `json:"current_tier"`
	Status            Status              `json:"status"`
	IssueCategory     IssueCategory       `json:"issue_category,omitempty"`
	CustomerSentiment Sentiment           `json:"customer_sentiment"`
	Customer          *customer.Profile   `json:"customer,omitempty"`
	SentimentHistory  []SentimentSnapshot `json:"sentiment_history,omitempty"`
	EscalationHistory []EscalationEvent   `json:"escalation_history,omitempty"`
	Messages          []Message           `json:"messages,omitempty"`
	Resolution        *Resolution         `json:"resolution,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	ResolvedAt        *time.Time          `json:"resolved_at,omitempty"`
}

// LastCustomerMessage returns the most recent customer turn, if any.
func (s *Session) LastCustomerMessage() *Message {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleCustomer {
			return &s.Messages[i]
		}
	}
	return nil
}

// HasAITurn reports whether any AI-authored message exists in the session.
func (s *Session) HasAITurn() bool {
	for _, m := range s.Messages {
		switch m.Role {
		case RoleAIRep, RoleAIManager:
			return true
		}
	}
	return false
}
