// Package profile реализует HTTP-обработчик административного просмотра
// профиля пользователя: учётные данные и дата выписки. Поле даты
// для администратора всегда редактируемо.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/discharge-sync/internal/http/response"
	"github.com/magabrotheeeer/discharge-sync/internal/lib/sl"
	"github.com/magabrotheeeer/discharge-sync/internal/models"
)

// Handler управляет HTTP-запросами на административный просмотр профиля.
type Handler struct {
	log     *slog.Logger
	service Service
	users   UserDirectory
}

// Service описывает интерфейс построения представления поля.
type Service interface {
	FieldView(ctx context.Context, userUID string, levelID int, submitted string, isAdmin bool) (models.DischargeFieldView, error)
	UserHasTargetLevel(ctx context.Context, userUID string) (bool, error)
}

// UserDirectory описывает чтение учётных данных пользователя.
type UserDirectory interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// New создает новый Handler с переданными логгером, сервисом и хранилищем пользователей.
func New(log *slog.Logger, service Service, users UserDirectory) *Handler {
	return &Handler{log: log, service: service, users: users}
}

// ServeHTTP godoc
// @Summary Профиль пользователя с датой выписки
// @Description Возвращает учётные данные пользователя и редактируемое поле даты выписки.
// @Security BearerAuth
// @Tags Admin
// @Produce  json
// @Param uid path string true "UID пользователя"
// @Success 200 {object} map[string]any "Профиль пользователя"
// @Failure 400 {object} response.ErrorResponse "Некорректный uid"
// @Failure 403 {object} response.ErrorResponse "Нет прав администратора"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/users/{uid}/discharge-date [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.profile"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	targetUID := chi.URLParam(r, "uid")
	if _, err := uuid.Parse(targetUID); err != nil {
		log.Error("failed to decode uid from url", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid user uid"))
		return
	}

	user, err := h.users.GetUser(r.Context(), targetUID)
	if errors.Is(err, sql.ErrNoRows) {
		log.Info("user not found", sl.UID(targetUID))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	}
	if err != nil {
		log.Error("failed to read user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read user profile"))
		return
	}

	view, err := h.service.FieldView(r.Context(), targetUID, 0, "", true)
	if err != nil {
		log.Error("failed to build discharge field view", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read user profile"))
		return
	}

	holdsTarget, err := h.service.UserHasTargetLevel(r.Context(), targetUID)
	if err != nil {
		log.Error("failed to check target level", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read user profile"))
		return
	}

	log.Info("admin profile built", sl.UID(targetUID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user": map[string]any{
			"uid":      user.UID,
			"username": user.Username,
			"email":    user.Email,
			"role":     user.Role,
		},
		"discharge_date":     view,
		"holds_target_level": holdsTarget,
	}))
}
