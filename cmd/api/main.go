package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/luxbus/backend/internal/config"
	"github.com/zhouzirui/luxbus/backend/internal/handler"
	"github.com/zhouzirui/luxbus/backend/internal/repository"
	"github.com/zhouzirui/luxbus/backend/internal/service/ai"
	"github.com/zhouzirui/luxbus/backend/internal/service/chat"
	"github.com/zhouzirui/luxbus/backend/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	if envErr != nil {
		log.Infof("no .env file loaded (%v), continuing with system environment variables only", envErr)
	}

	stores, err := repository.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("failed to open %s storage: %v", cfg.Storage.Driver, err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("failed to close storage", err)
		}
	}()
	log.Infof("storage driver: %s", cfg.Storage.Driver)

	opts := []chat.Option{chat.WithResponderTimeout(cfg.AI.Timeout)}
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Warnf("failed to initialize AI service, answering with keyword fallback only: %v", err)
		} else {
			opts = append(opts, chat.WithResponder(aiService))
			log.Infow("AI service initialized", "model", cfg.AI.Model, "stream", cfg.AI.StreamResponse)
		}
	} else {
		log.Info("Ark credentials not configured, answering with keyword fallback only")
	}

	chatService := chat.NewService(stores.Buses, stores.Messages, opts...)
	router := handler.NewRouter(stores.Buses, chatService, stores.DB, cfg.Server, cfg.Live)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Infof("LuxBus backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Errorf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
