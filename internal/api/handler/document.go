package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/Rrens/doc-assistant/internal/api/response"
	"github.com/Rrens/doc-assistant/internal/service"
)

const multipartMemory = 32 << 20

// DocumentHandler handles document upload and extracted-text download
type DocumentHandler struct {
	chat           *service.ChatService
	maxUploadBytes int64
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(chat *service.ChatService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{chat: chat, maxUploadBytes: maxUploadBytes}
}

// Upload accepts a multipart "file" field and makes it the session's document
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		response.BadRequest(w, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "no file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.BadRequest(w, "failed to read uploaded file")
		return
	}

	result, err := h.chat.UploadDocument(r.Context(), sessionID, header.Filename, data)
	if err != nil {
		writeError(w, err)
		return
	}

	response.OK(w, result)
}

// DownloadText returns the extracted text as extracted_text.txt
func (h *DocumentHandler) DownloadText(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	text, err := h.chat.ExportExtractedText(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Attachment(w, "extracted_text.txt", text)
}
