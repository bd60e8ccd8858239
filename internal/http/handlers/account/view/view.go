// Package view реализует HTTP-обработчик страницы аккаунта: действующее
// членство и представление поля даты выписки. Для редактируемого поля
// дополнительно выдается одноразовый токен формы.
package view

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/discharge-sync/internal/http/middlewarectx"
	"github.com/magabrotheeeer/discharge-sync/internal/http/response"
	"github.com/magabrotheeeer/discharge-sync/internal/lib/sl"
	"github.com/magabrotheeeer/discharge-sync/internal/models"
)

// Handler управляет HTTP-запросами на просмотр страницы аккаунта.
type Handler struct {
	log         *slog.Logger
	discharge   DischargeService
	memberships MembershipService
}

// DischargeService описывает операции даты выписки для страницы аккаунта.
type DischargeService interface {
	FieldView(ctx context.Context, userUID string, levelID int, submitted string, isAdmin bool) (models.DischargeFieldView, error)
	IssueFormToken(userUID string) (string, error)
}

// MembershipService описывает чтение действующего членства.
type MembershipService interface {
	GetMembership(ctx context.Context, userUID string) (*models.Membership, error)
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, discharge DischargeService, memberships MembershipService) *Handler {
	return &Handler{
		log:         log,
		discharge:   discharge,
		memberships: memberships,
	}
}

// ServeHTTP godoc
// @Summary Страница аккаунта
// @Description Возвращает действующее членство и поле даты выписки с одноразовым токеном формы.
// @Security BearerAuth
// @Tags Account
// @Produce  json
// @Success 200 {object} map[string]any "Членство и поле даты выписки"
// @Failure 401 {object} response.ErrorResponse "Пользователь не найден в контексте"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /account [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.view"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	membership, err := h.memberships.GetMembership(r.Context(), userUID)
	if err != nil {
		log.Error("failed to read membership", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read account"))
		return
	}

	levelID := 0
	if membership != nil {
		levelID = membership.LevelID
	}

	view, err := h.discharge.FieldView(r.Context(), userUID, levelID, "", false)
	if err != nil {
		log.Error("failed to build discharge field view", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read account"))
		return
	}

	if view.Mode == models.FieldModeEditable {
		token, err := h.discharge.IssueFormToken(userUID)
		if err != nil {
			log.Error("failed to issue form token", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not read account"))
			return
		}
		view.FormToken = token
	}

	log.Info("account page built", sl.UID(userUID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"membership":     membership,
		"discharge_date": view,
	}))
}
