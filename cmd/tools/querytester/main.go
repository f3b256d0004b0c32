package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/luxbus/backend/internal/analysis/busquery"
	"github.com/zhouzirui/luxbus/backend/internal/config"
	"github.com/zhouzirui/luxbus/backend/internal/repository"
	"github.com/zhouzirui/luxbus/backend/internal/service/ai"
	"github.com/zhouzirui/luxbus/backend/internal/service/chat"
	"github.com/zhouzirui/luxbus/backend/pkg/log"
)

func main() {
	mode := flag.String("mode", "full", "full: run the query service; fallback: keyword answer only")
	query := flag.String("query", "", "question to ask")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] no .env loaded, using system environment: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *query == "" {
		flag.Usage()
		log.Fatalf("a question is required, pass -query")
	}
	if *mode != "full" && *mode != "fallback" {
		flag.Usage()
		log.Fatalf("unknown mode %q, use -mode=full or -mode=fallback", *mode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	stores, err := repository.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("failed to open %s storage: %v", cfg.Storage.Driver, err)
	}
	defer stores.Close()

	started := time.Now()
	switch *mode {
	case "fallback":
		buses, err := stores.Buses.List(ctx)
		if err != nil {
			log.Fatalf("failed to list buses: %v", err)
		}
		log.Infof("intent=%s", busquery.Classify(*query))
		fmt.Println(busquery.Synthesize(*query, buses))
	case "full":
		runFull(ctx, cfg, stores, *query)
	}
	log.Infof("done in %s", time.Since(started).Round(time.Millisecond))
}

func runFull(ctx context.Context, cfg *config.Config, stores *repository.Stores, query string) {
	opts := []chat.Option{chat.WithResponderTimeout(cfg.AI.Timeout)}
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Warnf("AI service unavailable, keyword fallback will answer: %v", err)
		} else {
			opts = append(opts, chat.WithResponder(aiService))
		}
	} else {
		log.Info("Ark credentials not configured, keyword fallback will answer")
	}

	svc := chat.NewService(stores.Buses, stores.Messages, opts...)
	reply, err := svc.StreamQuery(ctx, query, func(chunk chat.Chunk) {
		if chunk.Replace {
			fmt.Print("\n[model stream failed, fallback answer]\n")
		}
		fmt.Print(chunk.Text)
	})
	fmt.Println()
	if err != nil {
		log.Fatalf("query failed: %v", err)
	}
	log.Infof("reply length=%d", len(reply.Text))
}
