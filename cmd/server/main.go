// Package main provides the battle server binary that pairs players into
// rooms and relays game state between them over WebSocket.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/blockbattle/server/internal/config"
	"github.com/blockbattle/server/internal/observability"
	"github.com/blockbattle/server/internal/relay"
	"github.com/blockbattle/server/internal/server"
	"github.com/blockbattle/server/internal/transport"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	registry := relay.NewRegistry()
	handler := relay.NewHandler(registry, cfg.Game.StartDelay, logger)
	ws := transport.NewServer(cfg.Server, cfg.Transport, handler, logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("transport", &server.FuncService{
		StartFn: ws.ListenAndServe,
		StopFn:  ws.Stop,
	})

	logger.Info("battle server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Server.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
