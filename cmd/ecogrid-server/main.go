package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	cfg, err := loadServerConfig(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ecogrid-server: %v\n", err)
		os.Exit(2)
	}

	logger := NewLogger(cfg.LogLevel)
	logger.Infof("Starting ecogrid-server: addr=%s log_level=%s static_dir=%s workers=%d", cfg.Addr, cfg.LogLevel, cfg.StaticDir, cfg.Workers)

	srv, err := NewServer(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx, cfg.Addr); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
}
