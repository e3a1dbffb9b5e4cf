package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Rrens/doc-assistant/internal/domain"
	"github.com/Rrens/doc-assistant/internal/llm"
	"github.com/Rrens/doc-assistant/internal/session"
	"github.com/Rrens/doc-assistant/internal/transcript"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NoDocumentReply is committed as the assistant turn when no text is available
const NoDocumentReply = "⚠️ Please upload a document first!"

const uploadPreviewChars = 300

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrNothingToRegenerate = errors.New("no user message to regenerate")
	ErrNoDocument          = errors.New("no document uploaded")
)

// UpdateFunc receives the whole in-progress reply after every streamed fragment.
// Returning an error abandons the stream; the text so far is still committed.
type UpdateFunc func(partial string) error

// ProviderSource resolves the configured LLM backend
type ProviderSource interface {
	GetProvider(name string) (llm.Provider, error)
}

// TextExtractor turns a document into plain text
type TextExtractor interface {
	Extract(doc *domain.Document) (string, error)
}

// TextCache stores extracted text by document digest
type TextCache interface {
	Get(ctx context.Context, digest string) (string, bool, error)
	Set(ctx context.Context, digest, text string) error
	Invalidate(ctx context.Context, digest string) error
	FlushAll(ctx context.Context) (int64, error)
}

// ChatOptions tunes prompt construction and the archive preview
type ChatOptions struct {
	Backend      string
	Model        string
	ContextCap   int
	PreviewCount int
	PreviewTurns int
	PreviewLen   int
}

// ChatService drives document uploads and streamed chat rounds for sessions
type ChatService struct {
	store     *session.Store
	extractor TextExtractor
	providers ProviderSource
	cache     TextCache
	opts      ChatOptions
}

// NewChatService creates a new chat service. cache may be nil.
func NewChatService(
	store *session.Store,
	extractor TextExtractor,
	providers ProviderSource,
	cache TextCache,
	opts ChatOptions,
) *ChatService {
	if opts.ContextCap <= 0 {
		opts.ContextCap = llm.DefaultContextCap
	}
	if opts.PreviewCount <= 0 {
		opts.PreviewCount = 3
	}
	if opts.PreviewTurns <= 0 {
		opts.PreviewTurns = 2
	}
	if opts.PreviewLen <= 0 {
		opts.PreviewLen = 70
	}
	return &ChatService{
		store:     store,
		extractor: extractor,
		providers: providers,
		cache:     cache,
		opts:      opts,
	}
}

// CreateSession starts a new empty session
func (s *ChatService) CreateSession() session.Snapshot {
	sess := s.store.Create()
	log.Info().Str("session_id", sess.ID.String()).Msg("Session created")
	return sess.Snapshot()
}

// DeleteSession drops a session and everything it holds
func (s *ChatService) DeleteSession(id uuid.UUID) error {
	if !s.store.Delete(id) {
		return ErrSessionNotFound
	}
	log.Info().Str("session_id", id.String()).Msg("Session deleted")
	return nil
}

// View returns the committed turns, the in-progress reply and document info
func (s *ChatService) View(id uuid.UUID) (session.Snapshot, error) {
	sess, err := s.session(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// UploadResult describes a freshly extracted document
type UploadResult struct {
	Name    string              `json:"name"`
	Kind    domain.DocumentKind `json:"kind"`
	Size    int64               `json:"size"`
	Chars   int                 `json:"chars"`
	Preview string              `json:"preview"`
	Empty   bool                `json:"empty"`
	Cached  bool                `json:"cached"`
}

// UploadDocument extracts the text of an upload and makes it the session's
// active document. On failure the previous document stays active.
func (s *ChatService) UploadDocument(ctx context.Context, id uuid.UUID, name string, data []byte) (*UploadResult, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	doc, err := domain.NewDocument(name, data)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	text, cached := s.cachedText(ctx, doc)
	if !cached {
		text, err = s.extractor.Extract(doc)
		if err != nil {
			log.Warn().Err(err).Str("session_id", id.String()).Str("name", name).Msg("Document extraction failed")
			return nil, err
		}
		s.storeText(ctx, doc, text)
	}

	sess.SetDocument(doc, text)

	chars := utf8.RuneCountInString(text)
	log.Info().
		Str("session_id", id.String()).
		Str("name", name).
		Str("kind", string(doc.Kind)).
		Int("chars", chars).
		Bool("cached", cached).
		Dur("took", time.Since(start)).
		Msg("Document uploaded")

	return &UploadResult{
		Name:    doc.Name,
		Kind:    doc.Kind,
		Size:    doc.Size,
		Chars:   chars,
		Preview: transcript.Truncate(text, uploadPreviewChars),
		Empty:   text == "",
		Cached:  cached,
	}, nil
}

// SendMessage runs one chat round for a user utterance. A blank utterance is
// ignored and yields a nil turn. The committed assistant turn is returned.
func (s *ChatService) SendMessage(ctx context.Context, id uuid.UUID, utterance string, onUpdate UpdateFunc) (*domain.Turn, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil, nil
	}

	unlock := sess.LockTurn()
	defer unlock()

	if err := sess.Update(func(t *transcript.Transcript) error {
		return t.Append(domain.NewTurn(domain.RoleUser, utterance))
	}); err != nil {
		return nil, fmt.Errorf("failed to record user turn: %w", err)
	}

	return s.respond(ctx, sess, utterance, onUpdate)
}

// Regenerate answers the most recent user turn again and appends a new
// assistant turn; earlier replies are kept.
func (s *ChatService) Regenerate(ctx context.Context, id uuid.UUID, onUpdate UpdateFunc) (*domain.Turn, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	unlock := sess.LockTurn()
	defer unlock()

	var (
		last domain.Turn
		ok   bool
	)
	sess.Read(func(t *transcript.Transcript) {
		last, ok = t.LastUserTurn()
	})
	if !ok {
		return nil, ErrNothingToRegenerate
	}

	return s.respond(ctx, sess, last.Text, onUpdate)
}

// respond produces and commits the assistant turn for an utterance. The caller
// holds the session's turn lock.
func (s *ChatService) respond(ctx context.Context, sess *session.Session, utterance string, onUpdate UpdateFunc) (*domain.Turn, error) {
	_, docText := sess.Document()
	if docText == "" {
		reply := domain.NewTurn(domain.RoleAssistant, NoDocumentReply)
		if err := sess.Update(func(t *transcript.Transcript) error { return t.Append(reply) }); err != nil {
			return nil, err
		}
		return &reply, nil
	}

	intent := llm.Classify(utterance)
	prompt := llm.BuildPrompt(intent, docText, s.opts.ContextCap)

	stream := llm.ErrorStream()
	backend := s.opts.Backend
	provider, err := s.providers.GetProvider(backend)
	if err != nil {
		log.Error().Err(err).Str("backend", backend).Msg("LLM backend unavailable")
	} else {
		backend = provider.Name()
		stream = provider.Stream(ctx, prompt, s.opts.Model)
	}

	start := time.Now()
	sess.BeginStream()

	var (
		buf       strings.Builder
		fragments int
		abandoned bool
	)
	for fragment := range stream {
		buf.WriteString(fragment)
		fragments++

		partial := buf.String()
		sess.SetPending(partial)

		if onUpdate != nil {
			if err := onUpdate(partial); err != nil {
				log.Debug().Err(err).Str("session_id", sess.ID.String()).Msg("Stream abandoned by consumer")
				abandoned = true
				break
			}
		}
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		text = llm.ErrorToken
	}

	reply := domain.NewTurn(domain.RoleAssistant, text)
	if err := sess.EndStream(reply); err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", sess.ID.String()).
		Str("intent", string(intent.Kind)).
		Str("backend", backend).
		Int("prompt_chars", utf8.RuneCountInString(prompt)).
		Int("fragments", fragments).
		Int("reply_chars", utf8.RuneCountInString(text)).
		Bool("abandoned", abandoned).
		Dur("took", time.Since(start)).
		Msg("Chat round completed")

	return &reply, nil
}

// NewChat moves the live transcript into the archive
func (s *ChatService) NewChat(id uuid.UUID) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}

	unlock := sess.LockTurn()
	defer unlock()

	return sess.Update(func(t *transcript.Transcript) error {
		t.ClearIntoArchive()
		return nil
	})
}

// ClearAll empties the live transcript and the archive; the document is kept
func (s *ChatService) ClearAll(id uuid.UUID) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}

	unlock := sess.LockTurn()
	defer unlock()

	return sess.Update(func(t *transcript.Transcript) error {
		t.Reset()
		return nil
	})
}

// LoadArchived replaces the live transcript with archived snapshot index
// (0 is the oldest).
func (s *ChatService) LoadArchived(id uuid.UUID, index int) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}

	unlock := sess.LockTurn()
	defer unlock()

	return sess.Update(func(t *transcript.Transcript) error {
		return t.LoadFromArchive(index)
	})
}

// ArchivePreviews summarizes the most recent archived transcripts, newest first
func (s *ChatService) ArchivePreviews(id uuid.UUID) ([]transcript.Preview, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	var previews []transcript.Preview
	sess.Read(func(t *transcript.Transcript) {
		previews = t.Previews(s.opts.PreviewCount, s.opts.PreviewTurns, s.opts.PreviewLen)
	})
	return previews, nil
}

// ExportChat renders the live transcript as plain text
func (s *ChatService) ExportChat(id uuid.UUID) (string, error) {
	sess, err := s.session(id)
	if err != nil {
		return "", err
	}

	var out string
	sess.Read(func(t *transcript.Transcript) {
		out = t.SnapshotForExport()
	})
	return out, nil
}

// ExportExtractedText returns the text of the active document
func (s *ChatService) ExportExtractedText(id uuid.UUID) (string, error) {
	sess, err := s.session(id)
	if err != nil {
		return "", err
	}

	doc, text := sess.Document()
	if doc == nil {
		return "", ErrNoDocument
	}
	return text, nil
}

// FlushTextCache drops every cached extraction
func (s *ChatService) FlushTextCache(ctx context.Context) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.FlushAll(ctx)
}

func (s *ChatService) session(id uuid.UUID) (*session.Session, error) {
	sess, ok := s.store.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *ChatService) cachedText(ctx context.Context, doc *domain.Document) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	digest := doc.Digest()
	text, ok, err := s.cache.Get(ctx, digest)
	if err != nil {
		log.Warn().Err(err).Str("name", doc.Name).Msg("Text cache lookup failed, dropping entry")
		if err := s.cache.Invalidate(ctx, digest); err != nil {
			log.Warn().Err(err).Str("name", doc.Name).Msg("Failed to invalidate cached text")
		}
		return "", false
	}
	return text, ok
}

func (s *ChatService) storeText(ctx context.Context, doc *domain.Document, text string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, doc.Digest(), text); err != nil {
		log.Warn().Err(err).Str("name", doc.Name).Msg("Failed to cache extracted text")
	}
}
