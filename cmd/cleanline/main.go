package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/harunnryd/cleanline/pkg/cleanline"
	"github.com/harunnryd/cleanline/pkg/logging"
)

func main() {
	configPath := flag.String("config", "configs/cleanline.yaml", "")
	dialTo := flag.String("dial_to", "", "destination number for an outbound call placed at startup")
	dialFrom := flag.String("dial_from", "", "caller ID for the outbound call")
	company := flag.String("company", "", "company name spoken in the outbound greeting")
	flag.Parse()

	cfg, err := cleanline.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logger := logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	slog.SetDefault(logger)

	app, err := cleanline.NewEngine(cleanline.EngineOptions{Config: cfg, Logger: logger})
	if err != nil {
		logger.Error("engine_init_failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := app.Start(ctx); err != nil {
		logger.Error("engine_start_failed", "error", err)
		os.Exit(1)
	}

	if *dialTo != "" && *dialFrom != "" {
		callSID, err := app.Dialer().Dial(ctx, *dialTo, *dialFrom, *company)
		if err != nil {
			logger.Error("outbound_dial_failed", "error", err)
		} else {
			logger.Info("outbound_dial_started", "call_sid", callSID)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	if err := app.Stop(); err != nil {
		logger.Warn("shutdown_incomplete", "error", err)
	}
}
