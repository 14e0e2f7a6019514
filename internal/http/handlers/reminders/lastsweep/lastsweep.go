// Package lastsweep возвращает отчёт последнего планового обхода.
package lastsweep

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/response"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
)

// Service читает сохранённый отчёт.
type Service interface {
	LastSweep(ctx context.Context) (*models.SweepReport, bool, error)
}

// Handler обработчик GET /api/v1/admin/reminders/sweep/last.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Отчёт последнего обхода
// @Tags Reminders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SweepReport
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/admin/reminders/sweep/last [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.reminders.lastsweep"

	report, ok, err := h.service.LastSweep(r.Context())
	if err != nil {
		h.log.Error("failed to read last sweep",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err),
		)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read last sweep"))
		return
	}
	if !ok {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("no sweep has finished yet"))
		return
	}

	render.JSON(w, r, response.OKWithData(report))
}
