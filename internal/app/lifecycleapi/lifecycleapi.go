package lifecycleapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/app/infra"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/config"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/handlers/reminders/bulk"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/services/accesscheck"
)

// App HTTP-сервер API.
type App struct {
	server *http.Server
	logger *slog.Logger
	infra  *infra.Infra
}

// New собирает приложение: миграции, подключения, сервисы и маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	inf, err := infra.Open(ctx, cfg, infra.Options{Migrate: true}, logger)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Deps{
		Tokens:         jwt.NewJWTMaker(cfg.JWTSecretKey),
		Users:          inf.Storage,
		Clock:          inf.Clock,
		Access:         accesscheck.New(inf.Storage, inf.Clock),
		Dispatcher:     inf.Dispatcher,
		DB:             inf.Storage.DB,
		AdminRateLimit: cfg.AdminRateLimit,
		AdminRateBurst: cfg.AdminRateBurst,
		BulkMaxBatch:   bulk.MaxBatch(cfg.BulkRatePerSecond, cfg.BulkBurst, cfg.TimeoutHTTP),
		SweepWait:      cfg.TimeoutHTTP / 2,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		infra:  inf,
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем корректно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.infra.Close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.infra.Close()
		return err
	}
}
