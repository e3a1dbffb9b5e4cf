package llm

import "strings"

// IntentKind is the action requested by a user utterance
type IntentKind string

const (
	IntentSummary      IntentKind = "summary"
	IntentTopicSuggest IntentKind = "topic_suggest"
	IntentQA           IntentKind = "qa"
)

// Intent is the classified form of a user utterance. Question is only set for QA.
type Intent struct {
	Kind     IntentKind
	Question string
}

// Classify maps an utterance to an intent with case-insensitive keyword checks.
// "summary" wins over "topic"; anything else is a question about the document.
func Classify(utterance string) Intent {
	lower := strings.ToLower(utterance)
	switch {
	case strings.Contains(lower, "summary"):
		return Intent{Kind: IntentSummary}
	case strings.Contains(lower, "topic"):
		return Intent{Kind: IntentTopicSuggest}
	default:
		return Intent{Kind: IntentQA, Question: utterance}
	}
}
