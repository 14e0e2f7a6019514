// Package send реализует ручную отправку напоминания одному пользователю.
//
// Ручная отправка не проверяет журнал: оператор может повторить письмо сколько угодно раз.
// Каждая попытка записывается в журнал с sent_by = manual.
package send

import (
	"context"
	"encoding/json"
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
)

// Request тело запроса ручной отправки.
type Request struct {
	UserUID string `json:"user_id" validate:"required,uuid"`
	Bucket  string `json:"bucket" validate:"required"`
}

// Service отправляет одно письмо.
type Service interface {
	SendManual(ctx context.Context, userUID string, bucket reminder.Bucket) (dispatcher.Outcome, error)
}

// Handler обработчик POST /api/v1/admin/reminders/send.
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
// @Summary Ручная отправка напоминания
// @Description Отправляет письмо корзины bucket пользователю без проверки журнала. Неудачная отправка возвращает 502 и запись журнала в data.
// @Tags Reminders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Получатель и корзина"
// @Success 200 {object} dispatcher.Outcome
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 502 {object} response.Response
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/admin/reminders/send [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.reminders.send"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	bucket, err := reminder.Parse(req.Bucket)
	if err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}

	out, err := h.service.SendManual(r.Context(), req.UserUID, bucket)
	if err != nil {
		switch {
		case errors.Is(err, dispatcher.ErrUserNotFound):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
		default:
			log.Error("failed to send reminder", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not send reminder"))
		}
		return
	}

	log.Info("manual reminder dispatched",
		slog.String("user_uid", req.UserUID),
		slog.String("bucket", string(bucket)),
		slog.String("status", string(out.Record.Status)),
	)
	if !out.Success() {
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, response.Response{
			Status: response.StatusError,
			Error:  "email delivery failed",
			Data:   out,
		})
		return
	}
	render.JSON(w, r, response.OKWithData(out))
}
