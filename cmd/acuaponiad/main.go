// Package main implements the entry point for the acuaponia telemetry
// pipeline: it ingests tank sensor readings from the pub-sub broker,
// evaluates them against threshold bands, and fans results out to live
// clients and administrators.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/Kevin-Teran/acuaponia-sub001/config"
	"github.com/Kevin-Teran/acuaponia-sub001/service"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "acuaponiad"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "path to the JSON configuration file")
		validate    = flag.Bool("validate", false, "validate the configuration and exit")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", appName, Version)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := buildLogger(cfg.Logging)
	slog.SetDefault(logger)

	if *validate {
		logger.Info("configuration is valid")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := service.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("assemble pipeline: %w", err)
	}

	if err := svc.Start(ctx); err != nil {
		svc.Stop()
		return fmt.Errorf("start pipeline: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig.String())

	cancel()
	svc.Stop()
	return nil
}

// buildLogger creates the process logger from the logging section.
func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
