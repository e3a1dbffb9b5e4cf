// Package transcript holds the live chat transcript of a session and the archive
// of transcripts cleared by "new chat".
package transcript

import (
	"errors"

	"github.com/Rrens/doc-assistant/internal/domain"
)

var ErrArchiveIndex = errors.New("archive index out of range")

// Transcript is an ordered list of committed turns plus an append-only archive of
// prior snapshots. It is not safe for concurrent use; the owning session serializes
// access.
type Transcript struct {
	turns   []domain.Turn
	archive [][]domain.Turn
}

// New creates an empty transcript
func New() *Transcript {
	return &Transcript{}
}

// Append adds a committed turn at the end of the live transcript
func (t *Transcript) Append(turn domain.Turn) error {
	if err := turn.Validate(); err != nil {
		return err
	}
	t.turns = append(t.turns, turn)
	return nil
}

// Turns returns a copy of the live turns
func (t *Transcript) Turns() []domain.Turn {
	return cloneTurns(t.turns)
}

// Len returns the number of live turns
func (t *Transcript) Len() int {
	return len(t.turns)
}

// LastUserTurn returns the most recent user turn, if any
func (t *Transcript) LastUserTurn() (domain.Turn, bool) {
	for i := len(t.turns) - 1; i >= 0; i-- {
		if t.turns[i].Role == domain.RoleUser {
			return t.turns[i], true
		}
	}
	return domain.Turn{}, false
}

// ClearIntoArchive pushes the live transcript into the archive (when non-empty)
// and resets the live transcript.
func (t *Transcript) ClearIntoArchive() {
	if len(t.turns) > 0 {
		t.archive = append(t.archive, cloneTurns(t.turns))
	}
	t.turns = nil
}

// LoadFromArchive replaces the live transcript with a copy of snapshot index.
// The archive itself is left unchanged.
func (t *Transcript) LoadFromArchive(index int) error {
	if index < 0 || index >= len(t.archive) {
		return ErrArchiveIndex
	}
	t.turns = cloneTurns(t.archive[index])
	return nil
}

// ListArchive returns copies of all archived snapshots, oldest first
func (t *Transcript) ListArchive() [][]domain.Turn {
	out := make([][]domain.Turn, len(t.archive))
	for i, snap := range t.archive {
		out[i] = cloneTurns(snap)
	}
	return out
}

// ArchiveLen returns the number of archived snapshots
func (t *Transcript) ArchiveLen() int {
	return len(t.archive)
}

// Reset drops both the live transcript and the archive
func (t *Transcript) Reset() {
	t.turns = nil
	t.archive = nil
}

func cloneTurns(turns []domain.Turn) []domain.Turn {
	if len(turns) == 0 {
		return []domain.Turn{}
	}
	out := make([]domain.Turn, len(turns))
	copy(out, turns)
	return out
}
