// Package assign реализует HTTP-обработчик административного назначения
// уровня членства. Страховочный хук после смены уровня подтягивает дату
// окончания членства к сохранённой дате выписки.
package assign

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/discharge-sync/internal/http/response"
	"github.com/magabrotheeeer/discharge-sync/internal/lib/sl"
	"github.com/magabrotheeeer/discharge-sync/internal/models"
)

// Handler управляет HTTP-запросами на назначение уровня членства.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс назначения уровня.
type Service interface {
	AssignLevel(ctx context.Context, userUID string, levelID int) (int, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Назначить уровень членства
// @Description Назначает пользователю уровень членства в обход оформления.
// @Security BearerAuth
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body models.AssignLevelRequest true "Пользователь и уровень"
// @Success 200 {object} map[string]any "Уровень назначен"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "Нет прав администратора"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/memberships [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.assign"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.AssignLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	membershipID, err := h.service.AssignLevel(r.Context(), req.UserUID, req.LevelID)
	if err != nil {
		log.Error("failed to assign membership level", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not assign membership level"))
		return
	}

	log.Info("membership level assigned", sl.UID(req.UserUID), slog.Int("level_id", req.LevelID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"membership_id": membershipID,
	}))
}
