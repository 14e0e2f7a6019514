// Package profile реализует пример закрытого маршрута приложения за AccessGate.
package profile

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/access"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/http/response"
)

// Profile данные профиля, доступные только при открытом доступе.
type Profile struct {
	Username   string            `json:"username"`
	UserUID    string            `json:"user_id"`
	Role       string            `json:"role"`
	HasAccess  bool              `json:"has_access"`
	ReasonCode access.ReasonCode `json:"reason_code"`
}

// Handler обработчик GET /api/v1/app/profile.
type Handler struct {
	log *slog.Logger
}

// New создаёт Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// ServeHTTP godoc
// @Summary Профиль пользователя
// @Description Закрытый маршрут: без действующего доступа возвращается 403 с reason_code.
// @Tags App
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Profile
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.AccessDeniedResponse
// @Router /api/v1/app/profile [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.app.profile"
	ctx := r.Context()

	decision, ok := ctx.Value(middlewarectx.Access).(access.Decision)
	if !ok {
		h.log.Error("access decision not found in context",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(ctx)),
		)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	username, _ := ctx.Value(middlewarectx.User).(string)
	role, _ := ctx.Value(middlewarectx.Role).(string)
	uid, _ := middlewarectx.UserUIDFrom(ctx)

	render.JSON(w, r, response.OKWithData(Profile{
		Username:   username,
		UserUID:    uid,
		Role:       role,
		HasAccess:  decision.HasAccess,
		ReasonCode: decision.Reason,
	}))
}
