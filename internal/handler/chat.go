package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iseevalue/chat/internal/conversation"
	"github.com/iseevalue/chat/internal/model"
)

type ChatHandler struct {
	store *conversation.Store
}

func NewChatHandler(store *conversation.Store) *ChatHandler {
	return &ChatHandler{store: store}
}

type CreateChatRequest struct {
	Title     string `json:"title"`
	AgentName string `json:"agent_name"`
}

// ListChats — GET /api/chats?category=recent|archived&q=...
func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	f := conversation.Filter{
		Category: model.ChatCategory(r.URL.Query().Get("category")),
		Query:    r.URL.Query().Get("q"),
	}
	if f.Category != "" && !f.Category.Valid() {
		writeError(w, http.StatusBadRequest, "unknown category")
		return
	}
	writeJSON(w, http.StatusOK, h.store.Conversations(f))
}

func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sum, err := h.store.Create(req.Title, req.AgentName)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sum)
}

func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	sum, err := h.store.Conversation(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// OpenChat делает беседу активной и сбрасывает её непрочитанные.
func (h *ChatHandler) OpenChat(w http.ResponseWriter, r *http.Request) {
	sum, err := h.store.Activate(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
