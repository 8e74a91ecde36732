package session

import "strings"

// Analysis is the result of classifying one customer message.
type Analysis struct {
	Sentiment Sentiment
	Category  IssueCategory
	Trigger   string
	Keywords  []string
}

// Analyzer classifies free-text customer messages by keyword matching.
// Pure: same input text always yields the same result.
type Analyzer struct {
	sentimentTables []sentimentTable
	categoryTables  []categoryTable
	stopWords       map[string]struct{}
	phrases         []string
}

type sentimentTable struct {
	sentiment Sentiment
	keywords  []string
}

type categoryTable struct {
	category IssueCategory
	keywords []string
}

// NewAnalyzer builds an analyzer with the fixed keyword tables. Sentiment
// tables are checked in priority order; the first match wins.
func NewAnalyzer() *Analyzer {
	a := &Analyzer{
		sentimentTables: []sentimentTable{
			{SentimentIrate, []string{
				"lawsuit", "attorney", "lawyer", "sue you", "suing",
				"bbb", "better business bureau", "unacceptable", "last time i ever",
			}},
			{SentimentAngry, []string{
				"furious", "terrible", "awful", "horrible", "angry",
				"ridiculous", "pathetic", "worst",
			}},
			{SentimentFrustrated, []string{
				"disappointed", "issue", "problem", "annoyed", "frustrat",
				"unhappy", "still waiting", "again",
			}},
			{SentimentSatisfied, []string{
				"thank", "great", "awesome", "perfect", "appreciate",
				"wonderful", "love it",
			}},
		},
		categoryTables: []categoryTable{
			{CategoryRefund, []string{"refund", "money back"}},
			{CategoryShipping, []string{"shipping", "delivery", "track"}},
			{CategoryCancellation, []string{"cancel", "subscription"}},
			{CategoryBilling, []string{"charge", "bill", "payment"}},
			{CategoryProductQuality, []string{"quality", "broken", "defect"}},
		},
		stopWords: map[string]struct{}{
			"the": {}, "and": {}, "for": {}, "you": {}, "your": {}, "with": {},
			"this": {}, "that": {}, "have": {}, "has": {}, "had": {}, "was": {},
			"are": {}, "but": {}, "not": {}, "all": {}, "can": {}, "our": {},
			"out": {}, "get": {}, "its": {}, "what": {}, "when": {}, "where": {},
			"will": {}, "would": {}, "been": {}, "they": {}, "them": {},
			"their": {}, "about": {}, "just": {}, "from": {}, "very": {},
		},
		// Multi-word triggers surfaced as keywords so downstream rule sets
		// (legal, social media) can match them alongside single tokens.
		phrases: []string{
			"legal action", "money back", "post online", "tell everyone",
			"better business bureau", "sue you",
		},
	}
	return a
}

// Analyze classifies a message. No I/O, no side effects.
func (a *Analyzer) Analyze(text string) Analysis {
	lowered := strings.ToLower(text)

	result := Analysis{Sentiment: SentimentNeutral}

	for _, table := range a.sentimentTables {
		for _, kw := range table.keywords {
			if strings.Contains(lowered, kw) {
				result.Sentiment = table.sentiment
				result.Trigger = kw
				break
			}
		}
		if result.Trigger != "" {
			break
		}
	}

	for _, table := range a.categoryTables {
		for _, kw := range table.keywords {
			if strings.Contains(lowered, kw) {
				result.Category = table.category
				break
			}
		}
		if result.Category != CategoryNone {
			break
		}
	}

	result.Keywords = a.extractKeywords(lowered)
	return result
}

// extractKeywords tokenizes the lowered text, drops short tokens and stop
// words, and appends any matched multi-word phrases.
func (a *Analyzer) extractKeywords(lowered string) []string {
	tokens := strings.FieldsFunc(lowered, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '\''
	})

	seen := make(map[string]struct{})
	var keywords []string
	for _, tok := range tokens {
		tok = strings.Trim(tok, "'")
		if len(tok) <= 2 {
			continue
		}
		if _, stop := a.stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}

	for _, phrase := range a.phrases {
		if strings.Contains(lowered, phrase) {
			if _, dup := seen[phrase]; !dup {
				seen[phrase] = struct{}{}
				keywords = append(keywords, phrase)
			}
		}
	}

	return keywords
}
