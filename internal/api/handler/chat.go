package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Rrens/doc-assistant/internal/api/response"
	"github.com/Rrens/doc-assistant/internal/domain"
	"github.com/Rrens/doc-assistant/internal/service"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ChatHandler streams chat rounds as Server-Sent Events
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatRequest struct {
	Message string `json:"message" validate:"max=20000"`
}

// Send posts a user message and streams the assistant reply.
// Events: ack (user message), token (appended text), done (committed turn), error.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	var input chatRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationMessages(err))
		return
	}

	message := strings.TrimSpace(input.Message)
	if message == "" {
		response.OK(w, map[string]any{"ignored": true})
		return
	}

	if _, err := h.chat.View(sessionID); err != nil {
		writeError(w, err)
		return
	}

	ack := map[string]any{"message": message}
	h.stream(w, r, sessionID, ack, func(onUpdate service.UpdateFunc) (*domain.Turn, error) {
		return h.chat.SendMessage(r.Context(), sessionID, message, onUpdate)
	})
}

// Regenerate answers the last user message again as a new assistant turn
func (h *ChatHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	view, err := h.chat.View(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !hasUserTurn(view.Turns) {
		writeError(w, service.ErrNothingToRegenerate)
		return
	}

	ack := map[string]any{"regenerate": true}
	h.stream(w, r, sessionID, ack, func(onUpdate service.UpdateFunc) (*domain.Turn, error) {
		return h.chat.Regenerate(r.Context(), sessionID, onUpdate)
	})
}

func (h *ChatHandler) stream(
	w http.ResponseWriter,
	r *http.Request,
	sessionID uuid.UUID,
	ack any,
	run func(onUpdate service.UpdateFunc) (*domain.Turn, error),
) {
	sse, err := newSSEWriter(w)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}

	if err := sse.send("ack", ack); err != nil {
		return
	}

	// partial only ever grows, so each token event carries just the new suffix
	sent := 0
	turn, err := run(func(partial string) error {
		delta := partial[sent:]
		sent = len(partial)
		if delta == "" {
			return nil
		}
		return sse.send("token", map[string]string{"delta": delta})
	})
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Chat round failed")
		_ = sse.send("error", map[string]string{"message": err.Error()})
		return
	}

	_ = sse.send("done", map[string]any{"turn": turn})
}

func hasUserTurn(turns []domain.Turn) bool {
	for _, t := range turns {
		if t.Role == domain.RoleUser {
			return true
		}
	}
	return false
}
