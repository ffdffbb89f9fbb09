package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iseevalue/chat/internal/config"
	"github.com/iseevalue/chat/internal/conversation"
	"github.com/iseevalue/chat/internal/handler"
	"github.com/iseevalue/chat/internal/logger"
	"github.com/iseevalue/chat/internal/metrics"
	"github.com/iseevalue/chat/internal/scheduler"
	"github.com/iseevalue/chat/internal/startup"
	"github.com/iseevalue/chat/internal/storage"
	"github.com/iseevalue/chat/internal/storage/memory"
	"github.com/iseevalue/chat/internal/ws"
)

const (
	redisConnectTimeout = 30 * time.Second
	shutdownTimeout     = 10 * time.Second
)

func main() {
	logger.SetPrefix("chat")
	logger.Info("starting chat service")

	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("config: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Errorf("chat service: %v", err)
		os.Exit(1)
	}
	logger.Info("chat service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	loop := scheduler.NewLoop(cfg.Pipeline.QueueSize)
	m := metrics.New()

	store, err := conversation.NewStore(loop, conversation.Options{
		SentDelay:      cfg.Pipeline.SentDelay,
		DeliveredDelay: cfg.Pipeline.DeliveredDelay,
		ReplyDelay:     cfg.Pipeline.ReplyDelay,
		EventBuffer:    cfg.Pipeline.EventBuffer,
		Observer:       m,
	})
	if err != nil {
		return err
	}
	if cfg.SeedConversations {
		if err := store.SeedDefaults(); err != nil {
			return err
		}
		logger.Info("seed conversations loaded")
	}

	files, err := openAttachments(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := files.Close(); err != nil {
			logger.Errorf("attachments close: %v", err)
		}
	}()

	hub := ws.NewHub(store, files, cfg.WS.MaxConnections, m)
	srv := &http.Server{
		Addr: cfg.ServerAddr,
		Handler: handler.NewRouter(cfg, handler.Deps{
			Store:   store,
			Files:   files,
			Hub:     hub,
			Metrics: m.Handler(),
		}),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Цикл и хаб останавливаются явно, после сервера и стора
	loopCtx, loopCancel := context.WithCancel(context.Background())
	hubCtx, hubCancel := context.WithCancel(context.Background())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loop.Run(loopCtx)
		logger.Info("scheduler stopped")
		return nil
	})
	g.Go(func() error {
		hub.Run(hubCtx)
		logger.Info("hub stopped")
		return nil
	})
	g.Go(func() error {
		logger.Infof("server listening on %s", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("server shutdown: %v", err)
		}
		logger.Info("server stopped accepting connections")

		hubCancel()
		store.Close()
		loopCancel()
		return nil
	})
	return g.Wait()
}

// openAttachments — Redis при заданном REDIS_URL, иначе память процесса.
func openAttachments(ctx context.Context, cfg *config.Config) (storage.AttachmentStore, error) {
	if cfg.Redis.URL == "" {
		logger.Info("attachments: in-memory store")
		return memory.New(cfg.Attachments.TTL), nil
	}
	cli, err := startup.ConnectRedisWithRetry(ctx, cfg.Redis.URL, cfg.Attachments.TTL, redisConnectTimeout)
	if err != nil {
		return nil, err
	}
	logger.Info("attachments: redis store")
	return cli, nil
}
