package session

import (
	"context"
	"time"
)

// Report aggregates session outcomes for a company over a period.
type Report struct {
	CompanyID string    `json:"company_id"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`

	TotalSessions     int     `json:"total_sessions"`
	ResolvedSessions  int     `json:"resolved_sessions"`
	AbandonedSessions int     `json:"abandoned_sessions"`
	OpenSessions      int     `json:"open_sessions"`
	ResolutionRate    float64 `json:"resolution_rate"`

	AvgResolutionTimeSeconds float64 `json:"avg_resolution_time_seconds"`

	SessionsByTier    map[Tier]int             `json:"sessions_by_tier"`
	ResolvedByTier    map[Tier]int             `json:"resolved_by_tier"`
	SessionsByChannel map[Channel]int          `json:"sessions_by_channel"`
	EscalationReasons map[EscalationReason]int `json:"escalation_reasons"`
	SentimentCounts   map[Sentiment]int        `json:"sentiment_counts"`

	// IrateIncidents is the number of sessions whose sentiment ever
	// reached IRATE, counting each session once.
	IrateIncidents int `json:"irate_incidents"`
	// SentimentImprovementRate is the share of sessions whose final
	// sentiment scored higher than their first.
	SentimentImprovementRate float64 `json:"sentiment_improvement_rate"`
}

// Analytics computes reports from stored sessions.
type Analytics struct {
	store Store
}

func NewAnalytics(store Store) *Analytics {
	if store == nil {
		panic("session: analytics requires a store")
	}
	return &Analytics{store: store}
}

// Report aggregates all sessions the company created in [from, to).
func (a *Analytics) Report(ctx context.Context, companyID string, from, to time.Time) (*Report, error) {
	sessions, err := a.store.List(ctx, companyID, ListFilter{Since: from, Until: to})
	if err != nil {
		return nil, err
	}

	r := &Report{
		CompanyID:         companyID,
		From:              from,
		To:                to,
		SessionsByTier:    make(map[Tier]int),
		ResolvedByTier:    make(map[Tier]int),
		SessionsByChannel: make(map[Channel]int),
		EscalationReasons: make(map[EscalationReason]int),
		SentimentCounts:   make(map[Sentiment]int),
	}

	var resolutionSeconds float64
	var improved int

	for _, sess := range sessions {
		r.TotalSessions++
		r.SessionsByTier[sess.CurrentTier]++
		r.SessionsByChannel[sess.Channel]++
		r.SentimentCounts[sess.CustomerSentiment]++

		switch sess.Status {
		case StatusResolved:
			r.ResolvedSessions++
			r.ResolvedByTier[sess.CurrentTier]++
			if sess.ResolvedAt != nil {
				resolutionSeconds += sess.ResolvedAt.Sub(sess.CreatedAt).Seconds()
			}
		case StatusAbandoned:
			r.AbandonedSessions++
		default:
			r.OpenSessions++
		}

		for _, esc := range sess.EscalationHistory {
			r.EscalationReasons[esc.Reason]++
		}
		for _, snap := range sess.SentimentHistory {
			if snap.Sentiment == SentimentIrate {
				r.IrateIncidents++
				break
			}
		}
		if n := len(sess.SentimentHistory); n >= 2 {
			first := sess.SentimentHistory[0]
			last := sess.SentimentHistory[n-1]
			if last.Score > first.Score {
				improved++
			}
		}
	}

	if r.TotalSessions > 0 {
		r.ResolutionRate = float64(r.ResolvedSessions) / float64(r.TotalSessions)
	}
	if r.ResolvedSessions > 0 {
		r.AvgResolutionTimeSeconds = resolutionSeconds / float64(r.ResolvedSessions)
	}
	if r.TotalSessions > 0 {
		r.SentimentImprovementRate = float64(improved) / float64(r.TotalSessions)
	}
	return r, nil
}
