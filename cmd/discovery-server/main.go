// cmd/discovery-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"service-discovery/internal/common/camunda"
	"service-discovery/internal/common/config"
	"service-discovery/internal/common/logger"
	"service-discovery/internal/common/observability"
	"service-discovery/internal/session"
	"service-discovery/internal/transport/httpapi"

	pcq "service-discovery/internal/workers/discovery/process-citizen-query"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting discovery server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, cfg.App.Version)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := connect(ctx, cfg, zapLog)
	defer b.Close(zapLog)
	if err != nil {
		zapLog.Fatal("backend connection failed", zap.Error(err))
	}

	orch, err := buildOrchestrator(ctx, cfg, b, obs, log)
	if err != nil {
		zapLog.Fatal("orchestrator setup failed", zap.Error(err))
	}

	store, err := buildSessionStore(cfg, b, log)
	if err != nil {
		zapLog.Fatal("session store setup failed", zap.Error(err))
	}
	sessions := session.NewManager(store, orch, session.ConfigFromSessions(cfg.Sessions), log,
		session.WithTurnMetrics(obs, cfg.Sessions.Store))

	// --- Zeebe workers ---
	var zeebe *camunda.Client
	if cfg.Server.EnableWorkers {
		zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress, log)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		wcfg := config.GetWorkerConfig(cfg, pcq.TaskType)
		handler := pcq.NewHandler(&pcq.Config{Timeout: config.GetDuration(wcfg.Timeout)}, sessions, log)
		zeebe.StartWorker(pcq.TaskType, wcfg, handler.Handle)
	}

	// --- HTTP API ---
	health := httpapi.NewHealth(cfg.App.Version)
	registerChecks(health, b, sessions)
	if zeebe != nil {
		health.RegisterCheck("zeebe", zeebe.HealthCheck)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpapi.NewRouter(httpapi.NewHandler(sessions, log), health, log, config.GetDuration(cfg.Server.WriteTimeout)),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- Graceful Shutdown ---
	select {
	case <-ctx.Done():
		zapLog.Info("Shutdown signal received, draining requests...")
	case err := <-errCh:
		zapLog.Error("HTTP server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Discovery server stopped gracefully")
}
