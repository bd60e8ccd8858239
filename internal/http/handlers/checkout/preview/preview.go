// Package preview реализует HTTP-обработчик представления поля даты выписки
// на форме оформления: для целевого уровня поле редактируемо с границами
// допустимых дат, при уже сохранённой дате — только для чтения.
package preview

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/discharge-sync/internal/http/middlewarectx"
	"github.com/magabrotheeeer/discharge-sync/internal/http/response"
	"github.com/magabrotheeeer/discharge-sync/internal/lib/sl"
	"github.com/magabrotheeeer/discharge-sync/internal/models"
)

// Handler управляет HTTP-запросами на представление поля оформления.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс построения представления поля.
type Service interface {
	FieldView(ctx context.Context, userUID string, levelID int, submitted string, isAdmin bool) (models.DischargeFieldView, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Поле даты выписки на оформлении
// @Description Возвращает режим, значение и границы поля даты выписки для выбранного уровня.
// @Security BearerAuth
// @Tags Checkout
// @Produce  json
// @Param level_id query int true "Идентификатор уровня"
// @Param discharge_date query string false "Значение из неудавшейся отправки"
// @Success 200 {object} models.DischargeFieldView "Представление поля"
// @Failure 400 {object} response.ErrorResponse "Некорректный level_id"
// @Failure 401 {object} response.ErrorResponse "Пользователь не найден в контексте"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /checkout/field [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.preview"
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

	levelID, err := strconv.Atoi(r.URL.Query().Get("level_id"))
	if err != nil {
		log.Error("failed to decode level_id from query", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid level_id"))
		return
	}
	submitted := r.URL.Query().Get("discharge_date")

	view, err := h.service.FieldView(r.Context(), userUID, levelID, submitted, false)
	if err != nil {
		log.Error("failed to build discharge field view", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not build discharge field"))
		return
	}

	log.Info("discharge field view built", sl.UID(userUID), slog.Int("level_id", levelID))
	render.JSON(w, r, response.StatusOKWithData(view))
}
