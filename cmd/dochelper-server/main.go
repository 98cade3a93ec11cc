package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dochelper/internal/config"
	"dochelper/internal/engine"
	"dochelper/internal/gateway"
	"dochelper/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("server init failed: %v", err)
	}

	logger := logging.NewStderrLogger(cfg.Debug)
	fileLog, logErr := logging.NewFileLogger(cfg.DataDir, cfg.Debug)
	if logErr != nil {
		logger.Warn("server.log_setup_failed", "error", logErr.Error())
	}
	if fileLog.Enabled {
		logger.Info("server.file_logging_enabled", "path", fileLog.Path)
	}
	if fileLog.Close != nil {
		defer fileLog.Close()
	}
	logger.Debug("server.config_loaded",
		"addr", cfg.Addr,
		"download_dir", cfg.DownloadDir,
		"api_key", logging.RedactValue(cfg.AnthropicAPIKey),
		"fake_ai", cfg.FakeAI,
	)

	opts := []engine.Option{engine.WithLogger(logger.With("component", "engine"))}
	if cfg.NotifyURL != "" {
		opts = append(opts, engine.WithNotifier(
			gateway.NewWebhookNotifier(cfg.NotifyURL, logger.With("component", "notify"))))
	}
	eng, err := engine.New(cfg, opts...)
	if err != nil {
		logger.Error("server.init_failed", "error", err.Error())
		log.Fatalf("server init failed: %v", err)
	}
	defer eng.Close()

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go eng.RunSweeper(sweepCtx)

	srv := gateway.New(cfg, eng, gateway.WithLogger(logger.With("component", "gateway")))

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-done
		logger.Info("server.shutdown", "signal", sig.String())
		stopSweeper()
		if err := srv.Shutdown(); err != nil {
			logger.Warn("server.shutdown_failed", "error", err.Error())
		}
	}()

	if err := srv.Listen(cfg.Addr); err != nil {
		stopSweeper()
		logger.Error("server.listen_failed", "error", err.Error())
		os.Exit(1)
	}
}
