// Package sweep реализует ручной запуск планового обхода.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/response"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/services/dispatcher"
)

// Service запускает обход.
type Service interface {
	RunAutomatic(ctx context.Context) (models.SweepReport, error)
}

// Accepted ответ на обход, не уложившийся в ожидание обработчика.
type Accepted struct {
	Message    string `json:"message" example:"sweep is running"`
	ReportPath string `json:"report_path" example:"/api/v1/admin/reminders/sweep/last"`
}

const lastReportPath = "/api/v1/admin/reminders/sweep/last"

type result struct {
	report models.SweepReport
	err    error
}

// Handler обработчик POST /api/v1/admin/reminders/sweep.
type Handler struct {
	log     *slog.Logger
	service Service
	wait    time.Duration
}

// New создаёт Handler. wait сколько обработчик ждёт итог, прежде чем ответить 202.
// Обход при этом продолжается и сохраняет отчёт, доступный через sweep/last.
func New(log *slog.Logger, service Service, wait time.Duration) *Handler {
	return &Handler{log: log, service: service, wait: wait}
}

// ServeHTTP godoc
// @Summary Запустить плановый обход
// @Description Обход выполняется в фоне. Если он завершается быстро, отчёт приходит в ответе (200), иначе 202 и отчёт позже доступен через sweep/last. Если обход уже идёт, возвращается 409.
// @Tags Reminders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SweepReport
// @Success 202 {object} Accepted
// @Failure 409 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/admin/reminders/sweep [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.reminders.sweep"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	done := make(chan result, 1)
	go func() {
		report, err := h.service.RunAutomatic(context.WithoutCancel(r.Context()))
		if err != nil && !errors.Is(err, dispatcher.ErrSweepInProgress) {
			log.Error("background sweep failed", sl.Err(err))
		}
		done <- result{report: report, err: err}
	}()

	timer := time.NewTimer(h.wait)
	defer timer.Stop()

	var res result
	select {
	case res = <-done:
	case <-timer.C:
		log.Info("sweep continues in background")
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, response.OKWithData(Accepted{Message: "sweep is running", ReportPath: lastReportPath}))
		return
	}

	if res.err != nil {
		if errors.Is(res.err, dispatcher.ErrSweepInProgress) {
			log.Warn("sweep already running")
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error(dispatcher.ErrSweepInProgress.Error()))
			return
		}
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("sweep failed"))
		return
	}

	render.JSON(w, r, response.OKWithData(res.report))
}
