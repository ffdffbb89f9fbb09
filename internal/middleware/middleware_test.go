package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimitAPIPerIP(t *testing.T) {
	h := RateLimitAPI(1, 2)(okHandler)

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
		req.RemoteAddr = ip + ":4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if do("10.0.0.1") != http.StatusOK || do("10.0.0.1") != http.StatusOK {
		t.Fatal("burst should pass")
	}
	if code := do("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("want 429, got %d", code)
	}
	if code := do("10.0.0.2"); code != http.StatusOK {
		t.Fatalf("other ip limited: %d", code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimitAPI(0, 0)(okHandler)
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, rec.Code)
		}
	}
}

func TestLimiterPoolEvictsIdle(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := newLimiterPool(1, 1)
	p.now = func() time.Time { return now }

	p.allow("a")
	p.allow("b")
	if p.size() != 2 {
		t.Fatalf("size %d", p.size())
	}
	now = now.Add(limiterIdleTTL + time.Second)
	p.allow("c")
	if p.size() != 1 {
		t.Fatalf("idle limiters not evicted, size %d", p.size())
	}
}

func TestInternalOnly(t *testing.T) {
	h := InternalOnly("s3cret")(okHandler)
	cases := []struct {
		name   string
		remote string
		secret string
		want   int
	}{
		{"loopback", "127.0.0.1:5000", "", http.StatusOK},
		{"private", "192.168.1.10:5000", "", http.StatusOK},
		{"public", "8.8.8.8:5000", "", http.StatusForbidden},
		{"public with secret", "8.8.8.8:5000", "s3cret", http.StatusOK},
		{"public with spoofed real ip", "8.8.8.8:5000", "", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			req.RemoteAddr = tc.remote
			if tc.secret != "" {
				req.Header.Set("X-Internal-Secret", tc.secret)
			}
			if tc.name == "public with spoofed real ip" {
				req.Header.Set("X-Real-Ip", "127.0.0.1")
				req.Header.Set("X-Forwarded-For", "10.0.0.1")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("want %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestRecoverJSON(t *testing.T) {
	h := RecoverJSON(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("content type %s", ct)
	}
}

func TestRecoverJSONAfterWrite(t *testing.T) {
	h := RecoverJSON(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("partial"))
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "partial" {
		t.Fatalf("started response must not be replaced: %d %q", rec.Code, rec.Body.String())
	}
}

func TestRequestLogCapturesStatus(t *testing.T) {
	var got *responseWriter
	h := RequestLog(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		got = w.(*responseWriter)
		w.WriteHeader(http.StatusCreated)
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chats", nil))
	if rec.Code != http.StatusCreated || got.status != http.StatusCreated {
		t.Fatalf("recorder %d, captured %d", rec.Code, got.status)
	}

	w := wrapWriter(httptest.NewRecorder())
	w.Write([]byte("ok"))
	if w.status != http.StatusOK || !w.wrote {
		t.Fatalf("implicit 200: %+v", w)
	}
	if wrapWriter(w) != w {
		t.Fatal("wrapper must not be nested")
	}
}

func TestRequestLineUsesRoutePattern(t *testing.T) {
	lines := map[string]string{}
	r := chi.NewRouter()
	record := func(status int) http.HandlerFunc {
		return func(w http.ResponseWriter, req *http.Request) {
			lines[req.URL.Path] = requestLine(req, status)
		}
	}
	r.Post("/api/chats/{id}/messages", record(http.StatusCreated))
	r.Get("/api/files/{id}", record(http.StatusNotFound))

	for _, path := range []string{"/api/chats/7/messages", "/api/files/abc"} {
		method := http.MethodGet
		if strings.HasSuffix(path, "/messages") {
			method = http.MethodPost
		}
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, nil))
	}

	if got, want := lines["/api/chats/7/messages"], "http POST /api/chats/{id}/messages status=201 chat=7"; got != want {
		t.Fatalf("chat route:\n got %s\nwant %s", got, want)
	}
	if got, want := lines["/api/files/abc"], "http GET /api/files/{id} status=404"; got != want {
		t.Fatalf("file route:\n got %s\nwant %s", got, want)
	}

	plain := requestLine(httptest.NewRequest(http.MethodGet, "/health", nil), http.StatusOK)
	if plain != "http GET /health status=200" {
		t.Fatalf("without router: %s", plain)
	}
}

func TestSecureHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecureHeaders(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("nosniff missing")
	}
}
