package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Rrens/doc-assistant/internal/domain"
	"github.com/Rrens/doc-assistant/internal/llm"
	"github.com/Rrens/doc-assistant/internal/llm/ollama"
	"github.com/Rrens/doc-assistant/internal/session"
	"github.com/Rrens/doc-assistant/internal/transcript"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, provider llm.Provider, extractor TextExtractor, cache TextCache) *ChatService {
	t.Helper()
	router := llm.NewRouter(provider.Name())
	router.RegisterProvider(provider)
	return NewChatService(session.NewStore(), extractor, router, cache, ChatOptions{
		Backend:    provider.Name(),
		ContextCap: llm.DefaultContextCap,
	})
}

// withDocument creates a session whose document extracts to text
func withDocument(t *testing.T, svc *ChatService, ext *MockExtractor, text string) uuid.UUID {
	t.Helper()
	id := svc.CreateSession().ID
	ext.On("Extract", mock.AnythingOfType("*domain.Document")).Return(text, nil).Once()
	_, err := svc.UploadDocument(context.Background(), id, "paper.pdf", []byte("%PDF"))
	require.NoError(t, err)
	return id
}

func turnPairs(t *testing.T, svc *ChatService, id uuid.UUID) [][2]string {
	t.Helper()
	view, err := svc.View(id)
	require.NoError(t, err)
	out := make([][2]string, 0, len(view.Turns))
	for _, turn := range view.Turns {
		out = append(out, [2]string{string(turn.Role), turn.Text})
	}
	return out
}

func TestChatService_NoDocument(t *testing.T) {
	provider := newFakeProvider("ignored")
	svc := newTestService(t, provider, new(MockExtractor), nil)
	id := svc.CreateSession().ID

	reply, err := svc.SendMessage(context.Background(), id, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, NoDocumentReply, reply.Text)

	assert.Equal(t, [][2]string{
		{"user", "hello"},
		{"assistant", "⚠️ Please upload a document first!"},
	}, turnPairs(t, svc, id))
	assert.Empty(t, provider.Prompts())
}

func TestChatService_EmptyExtractionCountsAsNoDocument(t *testing.T) {
	provider := newFakeProvider("ignored")
	ext := new(MockExtractor)
	svc := newTestService(t, provider, ext, nil)
	id := withDocument(t, svc, ext, "")

	reply, err := svc.SendMessage(context.Background(), id, "What is this?", nil)
	require.NoError(t, err)
	assert.Equal(t, NoDocumentReply, reply.Text)
	assert.Empty(t, provider.Prompts())
}

func TestChatService_PromptByIntent(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		utterance string
		prompt    string
	}{
		{
			"summary",
			"Alpha Beta Gamma",
			"Give me a summary please",
			"Please provide a clear summary of this document:\n\nAlpha Beta Gamma",
		},
		{
			"summary beats topic",
			"Alpha Beta Gamma",
			"suggest a topic summary",
			"Please provide a clear summary of this document:\n\nAlpha Beta Gamma",
		},
		{
			"topic",
			"Alpha",
			"any topic ideas?",
			"Suggest 5 unique research topics based on this document:\n\nAlpha",
		},
		{
			"question",
			"X",
			"What is X?",
			"Answer this question based only on the document:\n\nDocument:\nX\n\nQuestion: What is X?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newFakeProvider("ok")
			ext := new(MockExtractor)
			svc := newTestService(t, provider, ext, nil)
			id := withDocument(t, svc, ext, tt.doc)

			_, err := svc.SendMessage(context.Background(), id, "  "+tt.utterance+"  ", nil)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.prompt}, provider.Prompts())
		})
	}
}

func TestChatService_StreamingUpdates(t *testing.T) {
	provider := newFakeProvider("The", " study", " finds X.", "  ")
	ext := new(MockExtractor)
	svc := newTestService(t, provider, ext, nil)
	id := withDocument(t, svc, ext, "doc")

	var partials []string
	reply, err := svc.SendMessage(context.Background(), id, "What does it find?", func(partial string) error {
		partials = append(partials, partial)

		// the in-progress text is visible to readers while streaming
		view, err := svc.View(id)
		require.NoError(t, err)
		assert.True(t, view.Streaming)
		assert.Equal(t, partial, view.Pending)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"The", "The study", "The study finds X.", "The study finds X.  "}, partials)
	assert.Equal(t, "The study finds X.", reply.Text)

	view, err := svc.View(id)
	require.NoError(t, err)
	assert.False(t, view.Streaming)
	assert.Empty(t, view.Pending)
	require.Len(t, view.Turns, 2)
	assert.Equal(t, "The study finds X.", view.Turns[1].Text)
}

func TestChatService_AbandonedStreamCommitsPartial(t *testing.T) {
	provider := newFakeProvider("one", " two", " three")
	ext := new(MockExtractor)
	svc := newTestService(t, provider, ext, nil)
	id := withDocument(t, svc, ext, "doc")

	errGone := errors.New("client went away")
	reply, err := svc.SendMessage(context.Background(), id, "count", func(partial string) error {
		if partial == "one two" {
			return errGone
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "one two", reply.Text)
	assert.Equal(t, 2, provider.Consumed())
}

func TestChatService_BlankStreamCommitsErrorToken(t *testing.T) {
	for name, chunks := range map[string][]string{
		"nothing":    nil,
		"whitespace": {" ", "\n"},
	} {
		t.Run(name, func(t *testing.T) {
			provider := newFakeProvider(chunks...)
			ext := new(MockExtractor)
			svc := newTestService(t, provider, ext, nil)
			id := withDocument(t, svc, ext, "doc")

			reply, err := svc.SendMessage(context.Background(), id, "hi", nil)
			require.NoError(t, err)
			assert.Equal(t, llm.ErrorToken, reply.Text)
		})
	}
}

func TestChatService_BackendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ext := new(MockExtractor)
	svc := newTestService(t, ollama.NewProvider(srv.URL, "tinyllama"), ext, nil)
	id := withDocument(t, svc, ext, "Some document")

	reply, err := svc.SendMessage(context.Background(), id, "What is this?", nil)
	require.NoError(t, err)
	assert.Equal(t, "❌ Error talking to LLaMA.", reply.Text)

	assert.Equal(t, [][2]string{
		{"user", "What is this?"},
		{"assistant", llm.ErrorToken},
	}, turnPairs(t, svc, id))
}

func TestChatService_UnknownBackend(t *testing.T) {
	ext := new(MockExtractor)
	store := session.NewStore()
	svc := NewChatService(store, ext, llm.NewRouter("local"), nil, ChatOptions{Backend: "local"})
	id := withDocument(t, svc, ext, "doc")

	reply, err := svc.SendMessage(context.Background(), id, "question", nil)
	require.NoError(t, err)
	assert.Equal(t, llm.ErrorToken, reply.Text)
}

func TestChatService_BlankUtteranceIgnored(t *testing.T) {
	provider := newFakeProvider("x")
	svc := newTestService(t, provider, new(MockExtractor), nil)
	id := svc.CreateSession().ID

	reply, err := svc.SendMessage(context.Background(), id, " \t\n ", nil)
	require.NoError(t, err)
	assert.Nil(t, reply)
	assert.Empty(t, turnPairs(t, svc, id))
}

func TestChatService_Regenerate(t *testing.T) {
	provider := newFakeProvider("answer")
	ext := new(MockExtractor)
	svc := newTestService(t, provider, ext, nil)
	id := withDocument(t, svc, ext, "doc")
	ctx := context.Background()

	_, err := svc.Regenerate(ctx, id, nil)
	assert.ErrorIs(t, err, ErrNothingToRegenerate)

	_, err = svc.SendMessage(ctx, id, "first question", nil)
	require.NoError(t, err)
	_, err = svc.Regenerate(ctx, id, nil)
	require.NoError(t, err)

	assert.Equal(t, [][2]string{
		{"user", "first question"},
		{"assistant", "answer"},
		{"assistant", "answer"},
	}, turnPairs(t, svc, id))

	prompts := provider.Prompts()
	require.Len(t, prompts, 2)
	assert.Equal(t, prompts[0], prompts[1])
}

func TestChatService_RegenerateWithoutDocument(t *testing.T) {
	svc := newTestService(t, newFakeProvider("x"), new(MockExtractor), nil)
	id := svc.CreateSession().ID
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, id, "hello", nil)
	require.NoError(t, err)

	reply, err := svc.Regenerate(ctx, id, nil)
	require.NoError(t, err)
	assert.Equal(t, NoDocumentReply, reply.Text)
	assert.Len(t, turnPairs(t, svc, id), 3)
}

func TestChatService_ArchiveRoundTrip(t *testing.T) {
	provider := newFakeProvider("reply")
	ext := new(MockExtractor)
	svc := newTestService(t, provider, ext, nil)
	id := withDocument(t, svc, ext, "doc")
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, id, "question", nil)
	require.NoError(t, err)
	before := turnPairs(t, svc, id)
	require.Len(t, before, 2)

	require.NoError(t, svc.NewChat(id))
	assert.Empty(t, turnPairs(t, svc, id))

	previews, err := svc.ArchivePreviews(id)
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, 0, previews[0].Index)

	require.NoError(t, svc.LoadArchived(id, 0))
	assert.Equal(t, before, turnPairs(t, svc, id))

	assert.ErrorIs(t, svc.LoadArchived(id, 5), transcript.ErrArchiveIndex)
}

func TestChatService_ClearAll(t *testing.T) {
	ext := new(MockExtractor)
	svc := newTestService(t, newFakeProvider("r"), ext, nil)
	id := withDocument(t, svc, ext, "doc text")
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, id, "q1", nil)
	require.NoError(t, err)
	require.NoError(t, svc.NewChat(id))
	_, err = svc.SendMessage(ctx, id, "q2", nil)
	require.NoError(t, err)

	require.NoError(t, svc.ClearAll(id))

	view, err := svc.View(id)
	require.NoError(t, err)
	assert.Empty(t, view.Turns)
	assert.Equal(t, 0, view.ArchiveCount)
	require.NotNil(t, view.Document)

	text, err := svc.ExportExtractedText(id)
	require.NoError(t, err)
	assert.Equal(t, "doc text", text)
}

func TestChatService_Export(t *testing.T) {
	ext := new(MockExtractor)
	svc := newTestService(t, newFakeProvider("It is a ", "report."), ext, nil)
	id := svc.CreateSession().ID

	_, err := svc.ExportExtractedText(id)
	assert.ErrorIs(t, err, ErrNoDocument)

	ext.On("Extract", mock.Anything).Return("text", nil).Once()
	_, err = svc.UploadDocument(context.Background(), id, "a.docx", []byte("zip"))
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), id, "What is it?", nil)
	require.NoError(t, err)

	out, err := svc.ExportChat(id)
	require.NoError(t, err)
	assert.Equal(t, "User: What is it?\n\nAssistant: It is a report.", out)
}

func TestChatService_SerializesRounds(t *testing.T) {
	provider := newFakeProvider("a", "b", "c", "d")
	provider.delay = 2 * time.Millisecond
	provider.tagged = true
	ext := new(MockExtractor)
	svc := newTestService(t, provider, ext, nil)
	id := withDocument(t, svc, ext, "doc")

	var wg sync.WaitGroup
	for _, q := range []string{"q1", "q2", "q3"} {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			_, err := svc.SendMessage(context.Background(), id, q, nil)
			assert.NoError(t, err)
		}(q)
	}
	wg.Wait()

	pairs := turnPairs(t, svc, id)
	require.Len(t, pairs, 6)
	for i := 0; i < len(pairs); i += 2 {
		user, reply := pairs[i], pairs[i+1]
		assert.Equal(t, "user", user[0])
		assert.Equal(t, "assistant", reply[0])

		// every token of a reply comes from the stream for that question
		tag := user[1]
		assert.Equal(t, tag+"a"+tag+"b"+tag+"c"+tag+"d", reply[1])
	}
}

func TestChatService_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported kind", func(t *testing.T) {
		svc := newTestService(t, newFakeProvider(), new(MockExtractor), nil)
		id := svc.CreateSession().ID

		_, err := svc.UploadDocument(ctx, id, "notes.txt", []byte("hi"))
		assert.ErrorIs(t, err, domain.ErrUnsupportedKind)
	})

	t.Run("failure keeps prior document", func(t *testing.T) {
		ext := new(MockExtractor)
		svc := newTestService(t, newFakeProvider(), ext, nil)
		id := withDocument(t, svc, ext, "first text")

		ext.On("Extract", mock.Anything).
			Return("", fmt.Errorf("%w: broken.xlsx: bad zip", domain.ErrExtractionFailed)).Once()
		_, err := svc.UploadDocument(ctx, id, "broken.xlsx", []byte("nope"))
		assert.ErrorIs(t, err, domain.ErrExtractionFailed)

		view, err := svc.View(id)
		require.NoError(t, err)
		assert.Equal(t, "paper.pdf", view.Document.Name)
		text, _ := svc.ExportExtractedText(id)
		assert.Equal(t, "first text", text)
	})

	t.Run("result", func(t *testing.T) {
		ext := new(MockExtractor)
		svc := newTestService(t, newFakeProvider(), ext, nil)
		id := svc.CreateSession().ID

		long := strings.Repeat("w", 400)
		ext.On("Extract", mock.Anything).Return(long, nil).Once()
		res, err := svc.UploadDocument(ctx, id, "Report.XLSX", []byte("bytes"))
		require.NoError(t, err)

		assert.Equal(t, domain.KindSpreadsheet, res.Kind)
		assert.Equal(t, 400, res.Chars)
		assert.Equal(t, int64(5), res.Size)
		assert.Equal(t, strings.Repeat("w", 300)+"...", res.Preview)
		assert.False(t, res.Empty)
		assert.False(t, res.Cached)
	})

	t.Run("cache hit skips extraction", func(t *testing.T) {
		ext := new(MockExtractor)
		cache := new(MockTextCache)
		svc := newTestService(t, newFakeProvider(), ext, cache)
		id := svc.CreateSession().ID

		cache.On("Get", ctx, mock.AnythingOfType("string")).Return("cached text", true, nil).Once()

		res, err := svc.UploadDocument(ctx, id, "paper.pdf", []byte("%PDF"))
		require.NoError(t, err)
		assert.True(t, res.Cached)
		text, _ := svc.ExportExtractedText(id)
		assert.Equal(t, "cached text", text)

		ext.AssertNotCalled(t, "Extract", mock.Anything)
		cache.AssertExpectations(t)
	})

	t.Run("cache miss stores text", func(t *testing.T) {
		ext := new(MockExtractor)
		cache := new(MockTextCache)
		svc := newTestService(t, newFakeProvider(), ext, cache)
		id := svc.CreateSession().ID

		doc, _ := domain.NewDocument("paper.pdf", []byte("%PDF"))
		cache.On("Get", ctx, doc.Digest()).Return("", false, nil).Once()
		cache.On("Set", ctx, doc.Digest(), "fresh").Return(nil).Once()
		ext.On("Extract", mock.Anything).Return("fresh", nil).Once()

		_, err := svc.UploadDocument(ctx, id, "paper.pdf", []byte("%PDF"))
		require.NoError(t, err)
		cache.AssertExpectations(t)
		ext.AssertExpectations(t)
	})

	t.Run("cache errors fall back to extraction", func(t *testing.T) {
		ext := new(MockExtractor)
		cache := new(MockTextCache)
		svc := newTestService(t, newFakeProvider(), ext, cache)
		id := svc.CreateSession().ID

		cache.On("Get", ctx, mock.Anything).Return("", false, errors.New("redis down")).Once()
		cache.On("Invalidate", ctx, mock.Anything).Return(errors.New("redis down")).Once()
		cache.On("Set", ctx, mock.Anything, "fresh").Return(errors.New("redis down")).Once()
		ext.On("Extract", mock.Anything).Return("fresh", nil).Once()

		res, err := svc.UploadDocument(ctx, id, "paper.pdf", []byte("%PDF"))
		require.NoError(t, err)
		assert.Equal(t, 5, res.Chars)
		cache.AssertExpectations(t)
	})

	t.Run("unreadable entry is dropped and re-extracted", func(t *testing.T) {
		ext := new(MockExtractor)
		cache := new(MockTextCache)
		svc := newTestService(t, newFakeProvider(), ext, cache)
		id := svc.CreateSession().ID

		doc, _ := domain.NewDocument("paper.pdf", []byte("%PDF"))
		cache.On("Get", ctx, doc.Digest()).Return("", false, errors.New("failed to unmarshal cached text")).Once()
		cache.On("Invalidate", ctx, doc.Digest()).Return(nil).Once()
		cache.On("Set", ctx, doc.Digest(), "fresh").Return(nil).Once()
		ext.On("Extract", mock.Anything).Return("fresh", nil).Once()

		res, err := svc.UploadDocument(ctx, id, "paper.pdf", []byte("%PDF"))
		require.NoError(t, err)
		assert.False(t, res.Cached)
		cache.AssertExpectations(t)
		ext.AssertExpectations(t)
	})
}

func TestChatService_SessionNotFound(t *testing.T) {
	svc := newTestService(t, newFakeProvider(), new(MockExtractor), nil)
	ctx := context.Background()
	missing := uuid.New()

	_, err := svc.SendMessage(ctx, missing, "hi", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Regenerate(ctx, missing, nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.UploadDocument(ctx, missing, "a.pdf", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.View(missing)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.NewChat(missing), ErrSessionNotFound)
	assert.ErrorIs(t, svc.ClearAll(missing), ErrSessionNotFound)
	assert.ErrorIs(t, svc.LoadArchived(missing, 0), ErrSessionNotFound)
	assert.ErrorIs(t, svc.DeleteSession(missing), ErrSessionNotFound)
}

func TestChatService_DeleteSession(t *testing.T) {
	svc := newTestService(t, newFakeProvider(), new(MockExtractor), nil)
	id := svc.CreateSession().ID

	require.NoError(t, svc.DeleteSession(id))
	_, err := svc.View(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestChatService_FlushTextCache(t *testing.T) {
	ctx := context.Background()

	svc := newTestService(t, newFakeProvider(), new(MockExtractor), nil)
	n, err := svc.FlushTextCache(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	cache := new(MockTextCache)
	cache.On("FlushAll", ctx).Return(int64(4), nil).Once()
	svc = newTestService(t, newFakeProvider(), new(MockExtractor), cache)
	n, err = svc.FlushTextCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

// fakeProvider streams fixed chunks and records prompts. With tagged set each
// chunk is prefixed with the question so interleaving is detectable.
type fakeProvider struct {
	chunks []string
	delay  time.Duration
	tagged bool

	mu       sync.Mutex
	prompts  []string
	consumed int
}

func newFakeProvider(chunks ...string) *fakeProvider {
	return &fakeProvider{chunks: chunks}
}

func (f *fakeProvider) Name() string              { return "fake" }
func (f *fakeProvider) AvailableModels() []string { return []string{"fake-1"} }
func (f *fakeProvider) DefaultModel() string      { return "fake-1" }
func (f *fakeProvider) IsConfigured() bool        { return true }

func (f *fakeProvider) Stream(_ context.Context, prompt, _ string) iter.Seq[string] {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	tag := ""
	if f.tagged {
		tag = prompt[strings.LastIndex(prompt, "Question: ")+len("Question: "):]
	}

	return func(yield func(string) bool) {
		for _, c := range f.chunks {
			if f.delay > 0 {
				time.Sleep(f.delay)
			}
			f.mu.Lock()
			f.consumed++
			f.mu.Unlock()
			if !yield(tag + c) {
				return
			}
		}
	}
}

func (f *fakeProvider) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func (f *fakeProvider) Consumed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consumed
}
