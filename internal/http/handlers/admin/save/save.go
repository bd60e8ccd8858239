// Package save реализует HTTP-обработчик административного редактирования
// даты выписки: перезапись без бизнес-проверки диапазона либо удаление
// пустым значением, с немедленной синхронизацией даты окончания членства.
package save

import (
	"context"
	"encoding/json"
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

// Handler управляет HTTP-запросами на административное сохранение даты выписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс административного сохранения.
type Service interface {
	AdminSave(ctx context.Context, targetUID, raw string) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Сохранить дату выписки пользователя
// @Description Перезаписывает дату выписки пользователя или удаляет её при пустом значении.
// @Security BearerAuth
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param uid path string true "UID пользователя"
// @Param request body models.AdminSaveRequest true "Новое значение даты выписки"
// @Success 200 {object} response.Response "Значение сохранено"
// @Failure 400 {object} response.ErrorResponse "Некорректный uid или JSON"
// @Failure 403 {object} response.ErrorResponse "Нет прав администратора"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/users/{uid}/discharge-date [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.save"
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

	var req models.AdminSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.service.AdminSave(r.Context(), targetUID, req.DischargeDate); err != nil {
		log.Error("failed to save discharge date", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not save discharge date"))
		return
	}

	log.Info("discharge date saved by administrator", sl.UID(targetUID),
		slog.String("value", req.DischargeDate))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"discharge_date": req.DischargeDate,
	}))
}
