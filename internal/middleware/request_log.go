package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iseevalue/chat/internal/logger"
)

// RequestLog логирует каждый HTTP-запрос: route, статус ответа, chat id и время выполнения.
// 5xx пишутся как WARN на любом уровне, остальные через LogDuration.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrap := wrapWriter(w)
		next.ServeHTTP(wrap, r)

		line := requestLine(r, wrap.status)
		if wrap.status >= http.StatusInternalServerError {
			logger.Warnf("%s duration_ms=%d", line, time.Since(start).Milliseconds())
			return
		}
		logger.LogDuration(line, start)
	})
}

// requestLine: "http POST /api/chats/{id}/messages status=201 chat=1".
// Шаблон маршрута вместо пути, чтобы строки группировались по handler.
func requestLine(r *http.Request, status int) string {
	route := r.URL.Path
	chatID := ""
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			route = p
		}
		if strings.HasPrefix(route, "/api/chats/{id}") {
			chatID = rctx.URLParam("id")
		}
	}

	var b strings.Builder
	b.WriteString("http ")
	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(route)
	b.WriteString(" status=")
	b.WriteString(strconv.Itoa(status))
	if chatID != "" {
		b.WriteString(" chat=")
		b.WriteString(chatID)
	}
	return b.String()
}
