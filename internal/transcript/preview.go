package transcript

import (
	"github.com/Rrens/doc-assistant/internal/domain"
)

const ellipsis = "..."

// PreviewTurn is a shortened turn shown in the archive view
type PreviewTurn struct {
	Role domain.MessageRole `json:"role"`
	Text string             `json:"text"`
}

// Preview summarizes one archived transcript
type Preview struct {
	Index     int           `json:"index"`
	TurnCount int           `json:"turn_count"`
	Turns     []PreviewTurn `json:"turns"`
}

// Previews returns the last count archived transcripts, newest first, each with
// its last turns turns truncated to length characters.
func (t *Transcript) Previews(count, turns, length int) []Preview {
	out := []Preview{}
	for i := len(t.archive) - 1; i >= 0 && len(out) < count; i-- {
		snap := t.archive[i]
		start := len(snap) - turns
		if start < 0 {
			start = 0
		}

		p := Preview{Index: i, TurnCount: len(snap)}
		for _, turn := range snap[start:] {
			p.Turns = append(p.Turns, PreviewTurn{
				Role: turn.Role,
				Text: Truncate(turn.Text, length),
			})
		}
		out = append(out, p)
	}
	return out
}

// Truncate shortens s to at most n characters, appending an ellipsis when cut
func Truncate(s string, n int) string {
	r := []rune(s)
	if n < 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + ellipsis
}
