package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/access"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/response"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/storage/repository"
)

// UserGetter загружает пользователя по UID.
type UserGetter interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// Evaluator вычисляет решение о доступе.
type Evaluator interface {
	Evaluate(u models.User, today civil.Date) access.Decision
}

// Today источник текущей бизнес-даты.
type Today interface {
	Today() civil.Date
}

// AccessGate пропускает запрос, только если у пользователя из контекста есть доступ на сегодня.
//
// Решение вычисляется заново на каждом запросе. Закрытый доступ даёт 403 с кодом причины,
// неизвестный пользователь даёт 401. Решение кладётся в контекст под ключом Access.
func AccessGate(log *slog.Logger, users UserGetter, evaluator Evaluator, clock Today) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.AccessGate"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			userUID, ok := UserUIDFrom(r.Context())
			if !ok {
				log.Error("user identification missing")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("user identification missing"))
				return
			}

			u, err := users.GetUser(r.Context(), userUID)
			if err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					log.Warn("user from token not found", slog.String("user_uid", userUID))
					render.Status(r, http.StatusUnauthorized)
					render.JSON(w, r, response.Error("user not found"))
					return
				}
				log.Error("failed to load user", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal service error"))
				return
			}

			decision := evaluator.Evaluate(*u, clock.Today())
			if !decision.HasAccess {
				log.Info("access denied",
					slog.String("user_uid", userUID),
					slog.String("reason_code", string(decision.Reason)),
				)
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.AccessDenied(string(decision.Reason)))
				return
			}

			ctx := context.WithValue(r.Context(), Access, decision)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
