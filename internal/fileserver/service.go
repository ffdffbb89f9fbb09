package fileserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/iseevalue/chat/internal/conversation"
	"github.com/iseevalue/chat/internal/logger"
	"github.com/iseevalue/chat/internal/model"
	"github.com/iseevalue/chat/internal/storage"
)

// URLPrefix — путь, по которому раздаются вложения.
const URLPrefix = "/api/files/"

// multipartOverhead — запас на заголовки частей сверх лимита самого файла.
const multipartOverhead = 64 << 10

// Service обрабатывает загрузку и раздачу вложений чата.
type Service struct {
	store         storage.AttachmentStore
	MaxUploadSize int64
}

// New создаёт сервис поверх хранилища вложений с лимитом размера (в байтах).
func New(store storage.AttachmentStore, maxUploadSize int64) *Service {
	return &Service{store: store, MaxUploadSize: maxUploadSize}
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("fileserver writeJSON: %v", err)
	}
}

func (s *Service) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}

// Upload обрабатывает POST multipart/form-data с полем "file" и отвечает метаданными вложения.
// Принимается только application/pdf (по заявленному типу, содержимое не проверяется).
func (s *Service) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadSize+multipartOverhead)

	if err := r.ParseMultipartForm(s.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logger.Debugf("fileserver: cleanup multipart: %v", err)
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	// В ряде клиентов/прокси пробел в имени кодируется как "+"
	rawFilename := strings.ReplaceAll(header.Filename, "+", " ")
	displayName := safeFilename(filepath.Base(rawFilename))

	// octet-stream — тип не заявлен, берём по расширению
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(rawFilename)))
	}
	if err := conversation.ValidateAttachment(displayName, contentType); err != nil {
		logger.Debugf("fileserver: rejected %q: %v", displayName, err)
		s.writeError(w, http.StatusBadRequest, conversation.UnsupportedAttachmentNotice)
		return
	}

	var buf bytes.Buffer
	if err := copyWithContext(ctx, &buf, file); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	if int64(buf.Len()) > s.MaxUploadSize {
		s.writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	id := uuid.New().String()
	if displayName == "" {
		displayName = id + ".pdf"
	}
	att := model.Attachment{
		ID:          id,
		Name:        displayName,
		ContentType: conversation.PDFContentType,
		Size:        int64(buf.Len()),
		URL:         URLPrefix + id,
	}
	if err := s.store.Put(ctx, att, buf.Bytes()); err != nil {
		logger.Errorf("fileserver: store %s: %v", id, err)
		s.writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}
	s.writeJSON(w, http.StatusCreated, att)
}

// Serve отдаёт вложение по id; браузер открывает его inline под исходным именем.
func (s *Service) Serve(w http.ResponseWriter, r *http.Request, id string) {
	att, data, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "file not found")
			return
		}
		logger.Errorf("fileserver: get %s: %v", id, err)
		s.writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", contentDisposition(att.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.Debugf("fileserver: write %s: %v", id, err)
	}
}

func contentDisposition(name string) string {
	safe := safeFilename(name)
	if safe == "" {
		return "inline"
	}
	disp := "inline; filename*=UTF-8''" + url.PathEscape(safe)
	// Legacy filename= с ASCII искажает кириллицу — добавляем его только для ASCII-имён.
	if ascii := asciiFallbackFilename(safe); ascii == safe {
		disp = "inline; filename=\"" + ascii + "\"; " + disp
	}
	return disp
}

// safeFilename оставляет имя файла безопасным для Content-Disposition (без управляющих символов и кавычек).
// Поддерживается UTF-8, чтобы сохранять кириллицу и другие языки.
func safeFilename(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return ""
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\r', '\n', '"', '\\', '/', '\x00':
			continue
		}
		if unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// asciiFallbackFilename возвращает имя только из ASCII для legacy filename=.
// Пробелы и не-ASCII заменяются на подчёркивание.
func asciiFallbackFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("upload cancelled: %w", ctx.Err())
		default:
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read: %w", readErr)
		}
	}
}
