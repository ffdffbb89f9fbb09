package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iseevalue/chat/internal/conversation"
	"github.com/iseevalue/chat/internal/logger"
	"github.com/iseevalue/chat/internal/storage"
)

type MessageHandler struct {
	store *conversation.Store
	files storage.AttachmentStore
}

func NewMessageHandler(store *conversation.Store, files storage.AttachmentStore) *MessageHandler {
	return &MessageHandler{store: store, files: files}
}

type SendMessageRequest struct {
	Content      string `json:"content"`
	AttachmentID string `json:"attachment_id"`
}

func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.store.Messages(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// SendMessage ставит сообщение в конвейер статусов; дальнейшие изменения приходят по /ws.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("http.SendMessage", time.Now())()
	var req SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	att, err := storage.Lookup(ctx, h.files, req.AttachmentID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	msg, err := h.store.Submit(chi.URLParam(r, "id"), req.Content, att)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
