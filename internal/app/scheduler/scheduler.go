// Package scheduler запускает плановый обход напоминаний по таймеру.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/app/infra"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/config"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/services/dispatcher"
)

// Sweeper выполняет один обход.
type Sweeper interface {
	RunAutomatic(ctx context.Context) (models.SweepReport, error)
}

// App представляет приложение планировщика.
type App struct {
	sweeper    Sweeper
	interval   time.Duration
	runOnStart bool
	metrics    *http.Server
	infra      *infra.Infra
	logger     *slog.Logger
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	inf, err := infra.Open(ctx, cfg, infra.Options{}, logger)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &App{
		sweeper:    inf.Dispatcher,
		interval:   cfg.SweepInterval,
		runOnStart: cfg.RunOnStart,
		metrics: &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		infra:  inf,
		logger: logger,
	}, nil
}

// Run запускает обходы до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	go func() {
		a.logger.Info("metrics server starting on", slog.String("address", a.metrics.Addr))
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", sl.Err(err))
		}
	}()

	loop(ctx, a.sweeper, a.interval, a.runOnStart, a.logger)

	a.logger.Info("shutting down scheduler service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.metrics.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to stop metrics server", sl.Err(err))
	}
	a.infra.Close()
	return nil
}

// loop вызывает обход каждые interval до отмены ctx. Обходы не перекрываются:
// следующий тик ждёт окончания текущего обхода.
func loop(ctx context.Context, s Sweeper, interval time.Duration, runOnStart bool, logger *slog.Logger) {
	if runOnStart {
		runOnce(ctx, s, logger)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce(ctx, s, logger)
		}
	}
}

func runOnce(ctx context.Context, s Sweeper, logger *slog.Logger) {
	const op = "scheduler.runOnce"
	log := logger.With(sl.Op(op))

	report, err := s.RunAutomatic(ctx)
	switch {
	case errors.Is(err, dispatcher.ErrSweepInProgress):
		log.Info("sweep skipped, another instance holds the lock")
	case err != nil:
		log.Error("sweep failed", sl.Err(err))
	default:
		log.Info("sweep finished",
			slog.Int("scanned", report.Scanned),
			slog.Int("sent", report.Sent),
			slog.Int("failed", report.Failed),
			slog.Int("skipped", report.Skipped),
		)
	}
}
