package fileserver

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/iseevalue/chat/internal/conversation"
	"github.com/iseevalue/chat/internal/model"
	"github.com/iseevalue/chat/internal/storage/memory"
)

func multipartBody(t *testing.T, name, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

func upload(t *testing.T, svc *Service, name, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, name, contentType, data)
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	svc.Upload(rec, req)
	return rec
}

func TestUploadAndServePDF(t *testing.T) {
	store := memory.New(time.Hour)
	svc := New(store, 1<<20)

	rec := upload(t, svc, "Отчёт 2026.pdf", "application/pdf", []byte("%PDF-1.7 test"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status %d: %s", rec.Code, rec.Body)
	}
	var att model.Attachment
	if err := json.NewDecoder(rec.Body).Decode(&att); err != nil {
		t.Fatal(err)
	}
	if att.Name != "Отчёт 2026.pdf" || att.ContentType != conversation.PDFContentType || att.Size != 13 {
		t.Fatalf("attachment: %+v", att)
	}
	if att.URL != URLPrefix+att.ID {
		t.Fatalf("url: %s", att.URL)
	}

	rec = httptest.NewRecorder()
	svc.Serve(rec, httptest.NewRequest(http.MethodGet, att.URL, nil), att.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("serve status %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content type: %s", got)
	}
	disp := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(disp, "inline; filename*=UTF-8''") || strings.Contains(disp, `filename="`) {
		t.Fatalf("disposition: %s", disp)
	}
	if rec.Body.String() != "%PDF-1.7 test" {
		t.Fatalf("body: %q", rec.Body.String())
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	store := memory.New(time.Hour)
	svc := New(store, 1<<20)

	for _, tc := range []struct{ name, ct string }{
		{"photo.png", "image/png"},
		{"notes.txt", ""},
		{"fake.pdf", "text/plain"},
	} {
		rec := upload(t, svc, tc.name, tc.ct, []byte("data"))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d", tc.name, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), conversation.UnsupportedAttachmentNotice) {
			t.Fatalf("%s: body %s", tc.name, rec.Body)
		}
	}
	if store.Len() != 0 {
		t.Fatalf("rejected files must not be stored, len=%d", store.Len())
	}
}

func TestUploadInfersTypeFromExtension(t *testing.T) {
	svc := New(memory.New(time.Hour), 1<<20)
	rec := upload(t, svc, "scan.PDF", "application/octet-stream", []byte("x"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
}

func TestUploadTooLarge(t *testing.T) {
	svc := New(memory.New(time.Hour), 1024)
	rec := upload(t, svc, "big.pdf", "application/pdf", bytes.Repeat([]byte("a"), 4096))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	svc := New(memory.New(time.Hour), 1<<20)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("other", "1"); err != nil {
		t.Fatal(err)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	svc.Upload(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestServeMissing(t *testing.T) {
	svc := New(memory.New(time.Hour), 1<<20)
	rec := httptest.NewRecorder()
	svc.Serve(rec, httptest.NewRequest(http.MethodGet, "/api/files/nope", nil), "nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestContentDispositionASCII(t *testing.T) {
	got := contentDisposition("report.pdf")
	want := `inline; filename="report.pdf"; filename*=UTF-8''report.pdf`
	if got != want {
		t.Fatalf("got %s", got)
	}
}
