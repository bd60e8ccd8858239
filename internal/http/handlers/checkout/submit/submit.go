// Package submit реализует HTTP-обработчик оформления членства.
//
// Handler проводит запрос через шлюз проверки даты выписки, выполняет смену
// уровня и завершает оформление сохранением даты. Некорректная дата целевого
// уровня блокирует оформление до исправления.
package submit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/discharge-sync/internal/http/middlewarectx"
	"github.com/magabrotheeeer/discharge-sync/internal/http/response"
	"github.com/magabrotheeeer/discharge-sync/internal/lib/sl"
	"github.com/magabrotheeeer/discharge-sync/internal/models"
)

// Handler управляет HTTP-запросами на оформление членства.
type Handler struct {
	log         *slog.Logger
	discharge   DischargeService
	memberships MembershipService
	validate    *validator.Validate
}

// DischargeService описывает операции даты выписки в жизненном цикле оформления.
type DischargeService interface {
	CheckoutGate(ctx context.Context, userUID string, levelID int, raw string) ([]string, error)
	CompleteCheckout(ctx context.Context, userUID string, levelID int, raw string) error
}

// MembershipService описывает процедуру смены уровня.
type MembershipService interface {
	ChangeLevel(ctx context.Context, userUID string, levelID int, submitted string) (int, error)
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, discharge DischargeService, memberships MembershipService) *Handler {
	return &Handler{
		log:         log,
		discharge:   discharge,
		memberships: memberships,
		validate:    validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Оформить членство
// @Description Проверяет дату выписки для целевого уровня, меняет уровень и сохраняет дату.
// @Security BearerAuth
// @Tags Checkout
// @Accept  json
// @Produce  json
// @Param request body models.CheckoutRequest true "Уровень и дата выписки"
// @Success 200 {object} map[string]any "Членство оформлено"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не найден в контексте"
// @Failure 422 {object} response.ErrorResponse "Дата выписки не прошла проверку"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /checkout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.submit"
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

	var req models.CheckoutRequest
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

	errs, err := h.discharge.CheckoutGate(r.Context(), userUID, req.LevelID, req.DischargeDate)
	if err != nil {
		log.Error("failed to run checkout gate", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not process checkout"))
		return
	}
	if len(errs) > 0 {
		log.Info("checkout blocked by discharge date validation", slog.Any("errors", errs))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Errors(errs))
		return
	}

	membershipID, err := h.memberships.ChangeLevel(r.Context(), userUID, req.LevelID, req.DischargeDate)
	if err != nil {
		log.Error("failed to change membership level", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not process checkout"))
		return
	}

	if err := h.discharge.CompleteCheckout(r.Context(), userUID, req.LevelID, req.DischargeDate); err != nil {
		log.Error("failed to store discharge date after checkout", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("membership created but discharge date was not stored"))
		return
	}

	log.Info("checkout completed", sl.UID(userUID), slog.Int("level_id", req.LevelID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"membership_id": membershipID,
	}))
}
