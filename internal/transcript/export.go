package transcript

import (
	"strings"

	"github.com/Rrens/doc-assistant/internal/domain"
)

const paragraphSeparator = "\n\n"

var exportRoles = []domain.MessageRole{domain.RoleUser, domain.RoleAssistant}

// SnapshotForExport serializes the live transcript as plain text, one labelled
// paragraph per turn.
func (t *Transcript) SnapshotForExport() string {
	return FormatExport(t.turns)
}

// FormatExport renders turns as "User: ..." / "Assistant: ..." paragraphs
func FormatExport(turns []domain.Turn) string {
	parts := make([]string, 0, len(turns))
	for _, turn := range turns {
		parts = append(parts, turn.Role.Label()+": "+turn.Text)
	}
	return strings.Join(parts, paragraphSeparator)
}

// ParseExport splits an exported transcript back into turns. A paragraph that
// starts with a role label begins a new turn; other paragraphs belong to the
// previous turn. Text before the first label is ignored.
func ParseExport(s string) []domain.Turn {
	var turns []domain.Turn
	if s == "" {
		return turns
	}

	for _, para := range strings.Split(s, paragraphSeparator) {
		if role, text, ok := cutLabel(para); ok {
			turns = append(turns, domain.Turn{Role: role, Text: text})
			continue
		}
		if len(turns) == 0 {
			continue
		}
		last := &turns[len(turns)-1]
		last.Text += paragraphSeparator + para
	}
	return turns
}

func cutLabel(para string) (domain.MessageRole, string, bool) {
	for _, role := range exportRoles {
		if text, ok := strings.CutPrefix(para, role.Label()+": "); ok {
			return role, text, true
		}
	}
	return "", "", false
}
