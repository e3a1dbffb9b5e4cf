package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Rrens/doc-assistant/internal/api/response"
	"github.com/Rrens/doc-assistant/internal/domain"
	"github.com/Rrens/doc-assistant/internal/service"
	"github.com/Rrens/doc-assistant/internal/transcript"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

// validationMessages turns validator errors into a field → message map
func validationMessages(err error) any {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	messages := make(map[string]string)
	for _, e := range validationErrors {
		field := e.Field()
		tag := e.Tag()
		switch tag {
		case "required":
			messages[field] = "field is required"
		case "min":
			messages[field] = "must be at least " + e.Param() + " characters"
		case "max":
			messages[field] = "must be at most " + e.Param() + " characters"
		default:
			messages[field] = "validation failed on " + tag
		}
	}
	return messages
}

// sessionIDParam parses the {sessionID} path parameter, answering 400 when invalid
func sessionIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		response.BadRequest(w, "invalid session ID")
		return uuid.Nil, false
	}
	return sessionID, true
}

// writeError maps service and domain errors onto the JSON envelope
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(w, "session not found")
	case errors.Is(err, service.ErrNoDocument):
		response.NotFound(w, "no document uploaded")
	case errors.Is(err, transcript.ErrArchiveIndex):
		response.NotFound(w, "archived chat not found")
	case errors.Is(err, service.ErrNothingToRegenerate):
		response.BadRequest(w, "no message to regenerate")
	case errors.Is(err, domain.ErrUnsupportedKind):
		response.BadRequest(w, "invalid file type. Allowed: "+strings.Join(domain.SupportedExtensions(), ", "))
	case errors.Is(err, domain.ErrExtractionFailed):
		response.UnprocessableEntity(w, err.Error())
	default:
		log.Error().Err(err).Msg("Unhandled request error")
		response.InternalError(w, "internal server error")
	}
}
