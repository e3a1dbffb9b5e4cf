// Package session keeps the in-memory state of each chat session.
package session

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Rrens/doc-assistant/internal/domain"
	"github.com/Rrens/doc-assistant/internal/transcript"
	"github.com/google/uuid"
)

// Session owns one active document, its extracted text, the transcript with its
// archive, and the in-progress assistant reply.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	// turn serializes chat rounds; mu guards the fields below
	turn sync.Mutex
	mu   sync.RWMutex

	document   *domain.Document
	docText    string
	transcript *transcript.Transcript
	pending    string
	streaming  bool
	lastActive time.Time
}

// New creates an empty session
func New() *Session {
	now := time.Now()
	return &Session{
		ID:         uuid.New(),
		CreatedAt:  now,
		transcript: transcript.New(),
		lastActive: now,
	}
}

// LockTurn blocks until the session is free for a new chat round and returns
// the matching unlock.
func (s *Session) LockTurn() func() {
	s.turn.Lock()
	return s.turn.Unlock
}

// Document returns the active document and its extracted text
func (s *Session) Document() (*domain.Document, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.document, s.docText
}

// SetDocument replaces the active document and its extracted text
func (s *Session) SetDocument(doc *domain.Document, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.document = doc
	s.docText = text
	s.touch()
}

// Update runs fn with exclusive access to the transcript
func (s *Session) Update(fn func(t *transcript.Transcript) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return fn(s.transcript)
}

// Read runs fn with shared access to the transcript
func (s *Session) Read(fn func(t *transcript.Transcript)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.transcript)
}

// BeginStream marks the start of an assistant reply
func (s *Session) BeginStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = ""
	s.streaming = true
	s.touch()
}

// SetPending publishes the in-progress assistant text
func (s *Session) SetPending(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = text
	s.touch()
}

// EndStream commits the reply as an assistant turn and clears the pending slot
// in one step, so readers never see the text twice or not at all.
func (s *Session) EndStream(reply domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = ""
	s.streaming = false
	s.touch()
	return s.transcript.Append(reply)
}

// LastActive returns the time of the last mutation
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.lastActive = time.Now()
}

// DocumentInfo describes the active document without its bytes
type DocumentInfo struct {
	Name       string              `json:"name"`
	Kind       domain.DocumentKind `json:"kind"`
	Size       int64               `json:"size"`
	Chars      int                 `json:"chars"`
	UploadedAt time.Time           `json:"uploaded_at"`
}

// Snapshot is a consistent read of the session for rendering
type Snapshot struct {
	ID           uuid.UUID     `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	Document     *DocumentInfo `json:"document"`
	Turns        []domain.Turn `json:"turns"`
	Pending      string        `json:"pending"`
	Streaming    bool          `json:"streaming"`
	ArchiveCount int           `json:"archive_count"`
}

// Snapshot returns the committed turns plus any in-progress reply
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		Turns:        s.transcript.Turns(),
		Pending:      s.pending,
		Streaming:    s.streaming,
		ArchiveCount: s.transcript.ArchiveLen(),
	}
	if s.document != nil {
		snap.Document = &DocumentInfo{
			Name:       s.document.Name,
			Kind:       s.document.Kind,
			Size:       s.document.Size,
			Chars:      utf8.RuneCountInString(s.docText),
			UploadedAt: s.document.UploadedAt,
		}
	}
	return snap
}
