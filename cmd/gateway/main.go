package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vibeproxy/vibeproxy-go/internal/api/router"
	"github.com/vibeproxy/vibeproxy-go/internal/app/bootstrap"
	appconfig "github.com/vibeproxy/vibeproxy-go/internal/config"
	"github.com/vibeproxy/vibeproxy-go/internal/http/handlers"
	"github.com/vibeproxy/vibeproxy-go/internal/observability/metrics"
	"github.com/vibeproxy/vibeproxy-go/pkg/conversation"
	"github.com/vibeproxy/vibeproxy-go/pkg/logging"
	"github.com/vibeproxy/vibeproxy-go/pkg/vibeproxy"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()

	logger := logging.NewWithWriter(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info("starting vibeproxy gateway",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsHandler, completionMetrics := setupMetrics()

	client := vibeproxy.New(vibeproxy.Config{},
		vibeproxy.WithLogger(logger),
		vibeproxy.WithMetrics(completionMetrics),
		vibeproxy.WithModelCacheTTL(cfg.ModelCacheTTL),
	)
	vpCfg := client.Config()
	logger.Info("vibeproxy backend configured",
		"base_url", vpCfg.BaseURL,
		"model", vpCfg.Model,
		"timeout", vpCfg.Timeout,
	)

	history, closeHistory := bootstrap.BuildHistoryStore(ctx, cfg, logger)
	defer func() {
		if err := closeHistory(); err != nil {
			logger.Warn("failed to close session history", "error", err)
		}
	}()

	sessions := conversation.NewManager(client,
		conversation.WithHistoryStore(history),
		conversation.WithLogger(logger),
		conversation.WithMetrics(completionMetrics),
	)
	registry := vibeproxy.NewRegistry()
	gateway := handlers.NewGatewayHandler(client, sessions, registry, cfg.DefaultSystemPrompt, logger)

	limiter := bootstrap.BuildRateLimiter(cfg)
	if limiter != nil {
		go limiter.Run(ctx)
		logger.Info("rate limiting enabled", "rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Gateway:            gateway,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
	})

	// No WriteTimeout: streamed completions and websocket sessions outlive it.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers completion metrics on a dedicated registry that also
// carries the Go runtime and process collectors.
func setupMetrics() (http.Handler, *metrics.CompletionMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewCompletionMetrics(reg)
}
