package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisefido-firewatch/internal/config"
	httpapi "wisefido-firewatch/internal/httpapi"
	logpkg "wisefido-firewatch/internal/logger"
	"wisefido-firewatch/internal/models"
	"wisefido-firewatch/internal/service"

	"go.uber.org/zap"
)

func main() {
	mode := flag.String("mode", "serve", "run mode: serve | detect")
	filePath := flag.String("file", "", "detect mode: specific file (relative to DATA_DIR)")
	pattern := flag.String("pattern", "", "detect mode: glob pattern (default FILE_PATTERN)")
	flag.Parse()

	// 在创建连接之前校验，os.Exit 不会执行 defer
	if !validMode(*mode) {
		fmt.Fprintf(os.Stderr, "unknown mode %q (expected serve or detect)\n", *mode)
		os.Exit(2)
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-firewatch")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := service.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create firewatch service", zap.Error(err))
	}
	defer app.Close()

	switch *mode {
	case "detect":
		report := app.Detection.RunCycle(ctx, models.DetectionCriteria{FilePath: *filePath, Pattern: *pattern})
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Error("Failed to write report", zap.Error(err))
		}
	case "serve":
		serve(ctx, cancel, cfg, app, log)
	}
}

func validMode(mode string) bool {
	return mode == "serve" || mode == "detect"
}

func serve(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, app *service.App, log *zap.Logger) {
	router := httpapi.NewRouter(log)
	router.RegisterFirewatchRoutes(httpapi.NewFirewatchHandler(app.Detection, app.Classifier, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server error", zap.Error(err))
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping server", zap.Error(err))
	}
	log.Info("Service stopped")
}
