package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iseevalue/chat/internal/fileserver"
)

type FileHandler struct {
	fileSvc *fileserver.Service
}

func NewFileHandler(fileSvc *fileserver.Service) *FileHandler {
	return &FileHandler{fileSvc: fileSvc}
}

func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	h.fileSvc.Upload(w, r)
}

func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	h.fileSvc.Serve(w, r, chi.URLParam(r, "id"))
}
