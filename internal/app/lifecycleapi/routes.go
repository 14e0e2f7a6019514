// Package lifecycleapi собирает HTTP API проверки доступа и административной рассылки напоминаний.
package lifecycleapi

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/access"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/handlers/access/me"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/handlers/access/user"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/handlers/app/profile"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/handlers/health"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/handlers/reminders/bulk"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/handlers/reminders/lastsweep"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/handlers/reminders/logs"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/handlers/reminders/preview"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/handlers/reminders/send"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/handlers/reminders/sweep"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/services/accesscheck"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/services/dispatcher"
)

// Deps зависимости маршрутов.
type Deps struct {
	Tokens         middlewarectx.TokenParser
	Users          middlewarectx.UserGetter
	Clock          clock.Clock
	Access         *accesscheck.Service
	Dispatcher     *dispatcher.Service
	DB             health.Pinger
	AdminRateLimit float64
	AdminRateBurst int
	// BulkMaxBatch получателей в одном запросе массовой рассылки, 0: MaxUserUIDs.
	BulkMaxBatch   int
	// SweepWait сколько ручной запуск обхода ждёт итог до ответа 202.
	SweepWait      time.Duration
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Get("/health", health.New(logger, d.DB).ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.JWTMiddleware(d.Tokens, logger))

		r.Get("/me/access", me.New(logger, d.Access).ServeHTTP)

		// Закрытые маршруты приложения
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.AccessGate(logger, d.Users, access.NewEvaluator(d.Clock.Location()), d.Clock))
			r.Get("/app/profile", profile.New(logger).ServeHTTP)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewarectx.AdminOnly(logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, d.AdminRateLimit, d.AdminRateBurst))

			r.Get("/access/{user_id}", user.New(logger, d.Access).ServeHTTP)
			r.Post("/reminders/send", send.New(logger, d.Dispatcher).ServeHTTP)
			r.Post("/reminders/bulk", bulk.New(logger, d.Dispatcher, d.BulkMaxBatch).ServeHTTP)
			r.Post("/reminders/sweep", sweep.New(logger, d.Dispatcher, d.SweepWait).ServeHTTP)
			r.Get("/reminders/sweep/last", lastsweep.New(logger, d.Dispatcher).ServeHTTP)
			r.Get("/reminders/logs", logs.New(logger, d.Dispatcher).ServeHTTP)
			r.Get("/reminders/preview", preview.New(logger, d.Dispatcher).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
