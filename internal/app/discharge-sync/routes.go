// Package dischargesync предоставляет маршруты для основного приложения.
package dischargesync

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	accountsubmit "github.com/magabrotheeeer/discharge-sync/internal/http/handlers/account/submit"
	accountview "github.com/magabrotheeeer/discharge-sync/internal/http/handlers/account/view"
	"github.com/magabrotheeeer/discharge-sync/internal/http/handlers/admin/assign"
	"github.com/magabrotheeeer/discharge-sync/internal/http/handlers/admin/profile"
	"github.com/magabrotheeeer/discharge-sync/internal/http/handlers/admin/save"
	"github.com/magabrotheeeer/discharge-sync/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/discharge-sync/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/discharge-sync/internal/http/handlers/checkout/preview"
	checkoutsubmit "github.com/magabrotheeeer/discharge-sync/internal/http/handlers/checkout/submit"
	"github.com/magabrotheeeer/discharge-sync/internal/http/handlers/health"
	"github.com/magabrotheeeer/discharge-sync/internal/http/middlewarectx"
	"github.com/magabrotheeeer/discharge-sync/internal/lib/jwt"
	authservice "github.com/magabrotheeeer/discharge-sync/internal/services/auth"
	dischargeservice "github.com/magabrotheeeer/discharge-sync/internal/services/discharge"
	membershipservice "github.com/magabrotheeeer/discharge-sync/internal/services/membership"
	"github.com/magabrotheeeer/discharge-sync/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, jwtMaker jwt.Maker,
	authService *authservice.AuthService, dischargeService *dischargeservice.DischargeService,
	membershipService *membershipservice.MembershipService, db *repository.Storage) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, authService).ServeHTTP)
		r.Post("/login", login.New(logger, authService).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/checkout/field", preview.New(logger, dischargeService).ServeHTTP)
			r.Post("/checkout", checkoutsubmit.New(logger, dischargeService, membershipService).ServeHTTP)
			r.Get("/account", accountview.New(logger, dischargeService, membershipService).ServeHTTP)
			r.Post("/account/discharge-date", accountsubmit.New(logger, dischargeService).ServeHTTP)

			// Административные конечные точки
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireAdmin(logger))
				r.Get("/admin/users/{uid}/discharge-date", profile.New(logger, dischargeService, db).ServeHTTP)
				r.Put("/admin/users/{uid}/discharge-date", save.New(logger, dischargeService).ServeHTTP)
				r.Post("/admin/memberships", assign.New(logger, membershipService).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New(logger, db).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
