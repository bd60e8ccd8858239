// Package submit реализует HTTP-обработчик самостоятельного сохранения
// даты выписки со страницы аккаунта. Запрос принимается только с валидным
// одноразовым токеном формы и только пока дата ещё не сохранена.
package submit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/discharge-sync/internal/http/middlewarectx"
	"github.com/magabrotheeeer/discharge-sync/internal/http/response"
	"github.com/magabrotheeeer/discharge-sync/internal/lib/sl"
	"github.com/magabrotheeeer/discharge-sync/internal/models"
	services "github.com/magabrotheeeer/discharge-sync/internal/services/discharge"
)

// Handler управляет HTTP-запросами на сохранение даты выписки из аккаунта.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс сохранения даты со страницы аккаунта.
type Service interface {
	AccountSubmit(ctx context.Context, userUID, raw, token string) ([]string, error)
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
// @Summary Сохранить дату выписки из аккаунта
// @Description Однократно сохраняет дату выписки владельца токена формы и синхронизирует дату окончания членства.
// @Security BearerAuth
// @Tags Account
// @Accept  json
// @Produce  json
// @Param request body models.AccountSubmitRequest true "Дата выписки и токен формы"
// @Success 200 {object} response.Response "Дата сохранена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не найден в контексте"
// @Failure 403 {object} response.ErrorResponse "Невалидный токен формы или нет целевого уровня"
// @Failure 409 {object} response.ErrorResponse "Дата уже сохранена"
// @Failure 422 {object} response.ErrorResponse "Дата не прошла проверку"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /account/discharge-date [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.submit"
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

	var req models.AccountSubmitRequest
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

	errs, err := h.service.AccountSubmit(r.Context(), userUID, req.DischargeDate, req.FormToken)
	switch {
	case errors.Is(err, services.ErrInvalidFormToken):
		log.Error("invalid form token", sl.UID(userUID))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("invalid or expired form token"))
		return
	case errors.Is(err, services.ErrNotEligible):
		log.Error("user does not hold the target level", sl.UID(userUID))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("discharge date is not available for this membership"))
		return
	case errors.Is(err, services.ErrAlreadySet):
		log.Error("discharge date already set", sl.UID(userUID))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("discharge date is already set"))
		return
	case err != nil:
		log.Error("failed to save discharge date", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not save discharge date"))
		return
	}

	if len(errs) > 0 {
		log.Info("discharge date failed validation", slog.Any("errors", errs))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Errors(errs))
		return
	}

	log.Info("discharge date saved from account page", sl.UID(userUID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"discharge_date": req.DischargeDate,
	}))
}
