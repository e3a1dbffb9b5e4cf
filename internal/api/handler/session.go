package handler

import (
	"net/http"
	"strconv"

	"github.com/Rrens/doc-assistant/internal/api/response"
	"github.com/Rrens/doc-assistant/internal/service"
	"github.com/go-chi/chi/v5"
)

// SessionHandler handles session lifecycle, archive and transcript endpoints
type SessionHandler struct {
	chat *service.ChatService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(chat *service.ChatService) *SessionHandler {
	return &SessionHandler{chat: chat}
}

// Create starts a new session
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	response.Created(w, h.chat.CreateSession())
}

// Get returns the session view including any in-progress reply
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	view, err := h.chat.View(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.OK(w, view)
}

// Delete deletes a session
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	if err := h.chat.DeleteSession(sessionID); err != nil {
		writeError(w, err)
		return
	}

	response.OK(w, map[string]string{"message": "Session deleted"})
}

// NewChat archives the live transcript and starts an empty one
func (h *SessionHandler) NewChat(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	if err := h.chat.NewChat(sessionID); err != nil {
		writeError(w, err)
		return
	}

	h.Get(w, r)
}

// Clear empties the live transcript and the archive
func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	if err := h.chat.ClearAll(sessionID); err != nil {
		writeError(w, err)
		return
	}

	h.Get(w, r)
}

// Archive lists previews of recently archived chats
func (h *SessionHandler) Archive(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	previews, err := h.chat.ArchivePreviews(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.OK(w, map[string]any{"archive": previews})
}

// LoadArchive restores an archived chat as the live transcript
func (h *SessionHandler) LoadArchive(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		response.BadRequest(w, "invalid archive index")
		return
	}

	if err := h.chat.LoadArchived(sessionID, index); err != nil {
		writeError(w, err)
		return
	}

	h.Get(w, r)
}

// ExportTranscript downloads the live chat as chat_history.txt
func (h *SessionHandler) ExportTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	text, err := h.chat.ExportChat(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Attachment(w, "chat_history.txt", text)
}
