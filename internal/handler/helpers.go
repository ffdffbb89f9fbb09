package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iseevalue/chat/internal/conversation"
	"github.com/iseevalue/chat/internal/logger"
	"github.com/iseevalue/chat/internal/storage"
	"github.com/iseevalue/chat/internal/ws"
)

// maxJSONBody — лимит тела JSON-запросов.
const maxJSONBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return false
	}
	return true
}

// writeStoreError переводит ошибки стора и хранилища вложений в HTTP-статус.
func writeStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, conversation.ErrConversationNotFound),
		errors.Is(err, conversation.ErrMessageNotFound),
		errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, conversation.ErrEmptyMessage),
		errors.Is(err, conversation.ErrUnsupportedAttachment),
		errors.Is(err, conversation.ErrEmptyTitle),
		errors.Is(err, conversation.ErrInvalidTransition):
		status = http.StatusBadRequest
	case errors.Is(err, conversation.ErrConversationExists):
		status = http.StatusConflict
	case errors.Is(err, conversation.ErrClosed):
		status = http.StatusServiceUnavailable
	default:
		logger.Errorf("handler: %v", err)
	}
	writeError(w, status, ws.UserMessage(err))
}
