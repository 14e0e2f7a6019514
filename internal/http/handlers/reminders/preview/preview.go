// Package preview рендерит письмо напоминания без отправки.
package preview

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/response"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/reminder"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/services/dispatcher"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/templates"
)

// Query параметры предпросмотра.
type Query struct {
	UserUID string `validate:"required,uuid"`
	Bucket  string `validate:"required"`
}

// Service рендерит письмо.
type Service interface {
	Preview(ctx context.Context, userUID string, bucket reminder.Bucket) (templates.Message, error)
}

// Handler обработчик GET /api/v1/admin/reminders/preview.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Предпросмотр письма
// @Tags Reminders
// @Produce json
// @Security BearerAuth
// @Param user_id query string true "UID пользователя"
// @Param bucket query string true "Корзина напоминания"
// @Success 200 {object} templates.Message
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/admin/reminders/preview [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.reminders.preview"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	q := Query{
		UserUID: r.URL.Query().Get("user_id"),
		Bucket:  r.URL.Query().Get("bucket"),
	}
	if err := h.validate.Struct(q); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}
	bucket, err := reminder.Parse(q.Bucket)
	if err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}

	msg, err := h.service.Preview(r.Context(), q.UserUID, bucket)
	if err != nil {
		if errors.Is(err, dispatcher.ErrUserNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to render preview", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not render preview"))
		return
	}

	render.JSON(w, r, response.OKWithData(msg))
}
