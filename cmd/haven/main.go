// cmd/haven/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rexlx/mindhaven/internal/config"
	"github.com/rexlx/mindhaven/internal/server"
)

func main() {
	addr := flag.String("addr", "", "listen address, overrides HAVEN_ADDR")
	flag.Parse()

	logger := log.New(os.Stderr, "[HAVEN] ", log.LstdFlags)
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Could not load configuration: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if cfg.CompletionAPIKey() == "" {
		logger.Println("No completion API key is set, AI chat requests will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, logger); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
}
