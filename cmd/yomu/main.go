// Command yomu is the main entry point for the Yomu pronunciation practice
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yomu-app/yomu/internal/app"
	"github.com/yomu-app/yomu/internal/config"
	"github.com/yomu-app/yomu/internal/observe"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("yomu", version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "yomu: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "yomu: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("yomu starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "yomu",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	printStartupSummary(cfg, application)

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if err := shutdownMetrics(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}

	stats := application.Engine().Stats()
	if stats.Total > 0 {
		fmt.Printf("session: %d reviewed, %d correct, %d incorrect (%d%%)\n",
			stats.Total, stats.Correct, stats.Incorrect, stats.Accuracy())
	}
	slog.Info("goodbye")
	return 0
}

func printStartupSummary(cfg *config.Config, application *app.App) {
	snap := application.Engine().Snapshot()

	voice := "unavailable"
	if application.Engine().VoiceAvailable() {
		voice = string(cfg.Capture.Recognizer)
	}
	playbackState := "disabled"
	if cfg.Playback.Enabled {
		playbackState = "enabled"
	}

	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║           Yomu — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Deck size", fmt.Sprintf("%d", snap.DeckSize))
	printRow("Filter", string(cfg.Practice.Filter))
	printRow("Mode", string(cfg.Practice.Mode))
	printRow("Recognizer", voice)
	printRow("Language", cfg.Capture.Language)
	printRow("Playback", playbackState)
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(key, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", key, value)
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
