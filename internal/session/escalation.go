package session

import (
	"fmt"
	"strings"
)

// Decision is the outcome of evaluating the escalation rules for one
// analyzed customer message.
type Decision struct {
	ShouldEscalate bool
	Reason         EscalationReason
	TargetTier     Tier
	Notes          string
}

// Evaluator applies the escalation rules in a fixed priority order. The
// first matching rule wins; later rules are not consulted.
type Evaluator struct {
	legalTerms  []string
	socialTerms []string
	vipLTV      float64
}

// NewEvaluator builds an evaluator. vipLifetimeValue is the lifetime-value
// floor above which a non-flagged customer is still treated as high value.
func NewEvaluator(vipLifetimeValue float64) *Evaluator {
	return &Evaluator{
		legalTerms: []string{
			"lawyer", "attorney", "lawsuit", "sue", "legal action", "court",
		},
		socialTerms: []string{
			"twitter", "facebook", "review", "yelp", "post online", "tell everyone",
		},
		vipLTV: vipLifetimeValue,
	}
}

// Evaluate runs the rules against the latest analysis. The session's
// current tier is used to suppress escalations that would not move the
// session to a strictly higher tier.
func (e *Evaluator) Evaluate(sess *Session, analysis Analysis) Decision {
	kwset := make(map[string]struct{}, len(analysis.Keywords))
	for _, kw := range analysis.Keywords {
		kwset[strings.ToLower(kw)] = struct{}{}
	}

	// Rule order is significant: an irate customer who also mentions a
	// lawyer escalates for IRATE_CUSTOMER, not LEGAL_MENTION.
	if analysis.Sentiment == SentimentIrate {
		target := TierAIManager
		if sess.CurrentTier == TierAIManager {
			target = TierHumanAgent
		}
		return e.decide(sess, ReasonIrateCustomer, target,
			fmt.Sprintf("customer irate, triggered by %q", analysis.Trigger))
	}

	if term, ok := matchAny(kwset, e.legalTerms); ok {
		return e.decide(sess, ReasonLegalMention, TierHumanAgent,
			fmt.Sprintf("legal term %q mentioned", term))
	}

	if term, ok := matchAny(kwset, e.socialTerms); ok {
		return e.decide(sess, ReasonSocialMediaThreat, TierAIManager,
			fmt.Sprintf("social exposure term %q mentioned", term))
	}

	if sess.IssueCategory == CategoryRefund && sess.CurrentTier == TierAIRep {
		return e.decide(sess, ReasonRefundRequest, TierAIManager,
			"refund request beyond rep authority")
	}

	if e.highValue(sess) && sess.CurrentTier == TierAIRep {
		return e.decide(sess, ReasonHighValueCustomer, TierAIManager,
			"high-value customer routed past first tier")
	}

	return Decision{TargetTier: sess.CurrentTier}
}

func (e *Evaluator) decide(sess *Session, reason EscalationReason, target Tier, notes string) Decision {
	if sess.CurrentTier.Rank() >= target.Rank() {
		return Decision{TargetTier: sess.CurrentTier}
	}
	return Decision{
		ShouldEscalate: true,
		Reason:         reason,
		TargetTier:     target,
		Notes:          notes,
	}
}

func (e *Evaluator) highValue(sess *Session) bool {
	if sess.Customer == nil {
		return false
	}
	return sess.Customer.IsVIP || sess.Customer.LifetimeValue >= e.vipLTV
}

func matchAny(kwset map[string]struct{}, terms []string) (string, bool) {
	for _, term := range terms {
		if _, ok := kwset[term]; ok {
			return term, true
		}
	}
	return "", false
}
