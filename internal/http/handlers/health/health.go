// Package health реализует HTTP-обработчик проверки готовности сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/discharge-sync/internal/http/response"
	"github.com/magabrotheeeer/discharge-sync/internal/lib/sl"
)

// Handler управляет HTTP-запросами проверки готовности.
type Handler struct {
	log     *slog.Logger
	checker Checker
}

// Checker описывает проверку готовности хранилища.
type Checker interface {
	CheckDatabaseReady(ctx context.Context) error
}

// New создает новый Handler с переданными логгером и проверкой хранилища.
func New(log *slog.Logger, checker Checker) *Handler {
	return &Handler{log: log, checker: checker}
}

// ServeHTTP godoc
// @Summary Проверка готовности
// @Description Отвечает 200, когда база данных доступна и мигрирована.
// @Tags Health
// @Produce  json
// @Success 200 {object} response.Response "Сервис готов"
// @Failure 503 {object} response.ErrorResponse "Хранилище недоступно"
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.checker.CheckDatabaseReady(r.Context()); err != nil {
		h.log.Error("database is not ready", sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("storage is not ready"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData("ok"))
}
