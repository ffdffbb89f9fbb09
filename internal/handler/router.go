package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/iseevalue/chat/internal/config"
	"github.com/iseevalue/chat/internal/conversation"
	"github.com/iseevalue/chat/internal/fileserver"
	"github.com/iseevalue/chat/internal/middleware"
	"github.com/iseevalue/chat/internal/storage"
	"github.com/iseevalue/chat/internal/ws"
)

// Deps — зависимости HTTP API.
type Deps struct {
	Store   *conversation.Store
	Files   storage.AttachmentStore
	Hub     *ws.Hub
	Metrics http.Handler
}

// NewRouter собирает chi-роутер сервиса чата.
func NewRouter(cfg *config.Config, d Deps) http.Handler {
	chatH := NewChatHandler(d.Store)
	msgH := NewMessageHandler(d.Store, d.Files)
	fileH := NewFileHandler(fileserver.New(d.Files, cfg.MaxUploadSize()))
	configH := NewConfigHandler(cfg)
	wsH := NewWSHandler(d.Hub, cfg.CORSAllowedOrigins, ws.ClientOptions{
		WriteTimeout:   cfg.WS.WriteTimeout,
		PongTimeout:    cfg.WS.PongTimeout,
		MaxMessageSize: cfg.WS.MaxMessageSize,
		SendBufferSize: cfg.WS.SendBufferSize,
	})

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(middleware.RecoverJSON)
	// Не сжимать WebSocket — иначе ResponseWriter не реализует http.Hijacker и upgrade даёт 500.
	r.Use(func(next http.Handler) http.Handler {
		compress := chimw.Compress(5)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			compress.ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.SecureHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: splitOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Get("/ws", wsH.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimitAPI(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		r.Get("/config", configH.GetConfig)
		r.Get("/chats", chatH.ListChats)
		r.Post("/chats", chatH.CreateChat)
		r.Get("/chats/{id}", chatH.GetChat)
		r.Post("/chats/{id}/open", chatH.OpenChat)
		r.Get("/chats/{id}/messages", msgH.GetMessages)
		r.Post("/chats/{id}/messages", msgH.SendMessage)
		r.Post("/files/upload", fileH.Upload)
		r.Get("/files/{id}", fileH.Serve)
	})

	if d.Metrics == nil {
		return r
	}
	// /metrics вне RealIP: доступ решается по настоящему адресу соединения
	root := chi.NewRouter()
	root.With(middleware.InternalOnly(cfg.MetricsSecret)).Method(http.MethodGet, "/metrics", d.Metrics)
	root.Mount("/", r)
	return root
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
