// Package bulk реализует ручную массовую рассылку напоминания списку пользователей.
package bulk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/response"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/reminder"
)

// MaxUserUIDs верхняя граница списка получателей независимо от скорости рассылки.
const MaxUserUIDs = 1000

// Request тело запроса массовой рассылки.
type Request struct {
	UserUIDs []string `json:"user_ids" validate:"required,min=1,max=1000,dive,uuid"`
	Bucket   string   `json:"bucket" validate:"required"`
}

// Service выполняет массовую рассылку.
type Service interface {
	SendBulk(ctx context.Context, userUIDs []string, bucket reminder.Bucket) (models.BulkReport, error)
}

// Handler обработчик POST /api/v1/admin/reminders/bulk.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
	maxBatch int
}

// New создаёт Handler. maxBatch ограничивает число получателей в одном запросе.
func New(log *slog.Logger, service Service, maxBatch int) *Handler {
	if maxBatch <= 0 || maxBatch > MaxUserUIDs {
		maxBatch = MaxUserUIDs
	}
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
		maxBatch: maxBatch,
	}
}

// MaxBatch число писем, которое ограничитель успеет пропустить за половину budget.
// Вторая половина остаётся на сами отправки и запись в журнал.
func MaxBatch(ratePerSecond float64, burst int, budget time.Duration) int {
	if ratePerSecond <= 0 || budget <= 0 {
		return 1
	}
	n := max(burst, 1) + int(ratePerSecond*budget.Seconds()/2)
	return min(n, MaxUserUIDs)
}

// ServeHTTP godoc
// @Summary Массовая рассылка напоминания
// @Description Письма уходят последовательно с ограничением скорости. Частичные ошибки не меняют код ответа: итог в отчёте.
// @Description Список длиннее допустимого для текущей скорости отклоняется с 422, его нужно разбить на части.
// @Tags Reminders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Получатели и корзина"
// @Success 200 {object} models.BulkReport
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/admin/reminders/bulk [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.reminders.bulk"
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

	if len(req.UserUIDs) > h.maxBatch {
		log.Warn("bulk batch too large",
			slog.Int("requested", len(req.UserUIDs)),
			slog.Int("max", h.maxBatch),
		)
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(fmt.Sprintf("too many recipients: at most %d per request", h.maxBatch)))
		return
	}

	bucket, err := reminder.Parse(req.Bucket)
	if err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}

	report, err := h.service.SendBulk(r.Context(), req.UserUIDs, bucket)
	if err != nil {
		log.Error("bulk send failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not send reminders"))
		return
	}

	log.Info("bulk send completed",
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
	)
	render.JSON(w, r, response.OKWithData(report))
}
