package llm

import "fmt"

// DefaultContextCap is the number of document characters placed in a prompt
const DefaultContextCap = 4000

const (
	summaryTemplate = "Please provide a clear summary of this document:\n\n%s"
	topicTemplate   = "Suggest 5 unique research topics based on this document:\n\n%s"
	qaTemplate      = "Answer this question based only on the document:\n\nDocument:\n%s\n\nQuestion: %s"
)

// ContextSlice returns the first limit characters of the document text.
// A non-positive limit means DefaultContextCap.
func ContextSlice(text string, limit int) string {
	if limit <= 0 {
		limit = DefaultContextCap
	}
	// fast path: byte length bounds rune count
	if len(text) <= limit {
		return text
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i]
		}
		n++
	}
	return text
}

// BuildPrompt renders the prompt for an intent over the document text
func BuildPrompt(intent Intent, docText string, limit int) string {
	context := ContextSlice(docText, limit)

	switch intent.Kind {
	case IntentSummary:
		return fmt.Sprintf(summaryTemplate, context)
	case IntentTopicSuggest:
		return fmt.Sprintf(topicTemplate, context)
	default:
		return fmt.Sprintf(qaTemplate, context, intent.Question)
	}
}
