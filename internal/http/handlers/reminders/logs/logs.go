// Package logs реализует просмотр журнала отправок для аудита.
package logs

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/response"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
)

const defaultLimit = 50

// Query параметры запроса журнала.
type Query struct {
	Email string `validate:"omitempty,email"`
	Limit int    `validate:"min=1,max=500"`
}

// Service читает журнал.
type Service interface {
	ListLogs(ctx context.Context, f models.DispatchListFilter) ([]models.DispatchRecord, error)
}

// Handler обработчик GET /api/v1/admin/reminders/logs.
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
// @Summary Журнал отправок
// @Description Последние записи журнала, новые первыми.
// @Tags Reminders
// @Produce json
// @Security BearerAuth
// @Param email query string false "Email получателя"
// @Param limit query int false "Количество записей (1-500)" default(50)
// @Success 200 {array} models.DispatchRecord
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/admin/reminders/logs [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.reminders.logs"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	q := Query{Email: r.URL.Query().Get("email"), Limit: defaultLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("limit must be an integer"))
			return
		}
		q.Limit = limit
	}
	if err := h.validate.Struct(q); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	records, err := h.service.ListLogs(r.Context(), models.DispatchListFilter{
		RecipientEmail: q.Email,
		Limit:          q.Limit,
	})
	if err != nil {
		log.Error("failed to list logs", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list logs"))
		return
	}
	if records == nil {
		records = []models.DispatchRecord{}
	}

	render.JSON(w, r, response.OKWithData(records))
}
