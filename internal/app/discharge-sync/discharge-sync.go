package dischargesync

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/discharge-sync/internal/cache"
	"github.com/magabrotheeeer/discharge-sync/internal/config"
	"github.com/magabrotheeeer/discharge-sync/internal/lib/jwt"
	"github.com/magabrotheeeer/discharge-sync/internal/lib/sl"
	"github.com/magabrotheeeer/discharge-sync/internal/migrations"
	"github.com/magabrotheeeer/discharge-sync/internal/rabbitmq"
	authservice "github.com/magabrotheeeer/discharge-sync/internal/services/auth"
	dischargeservice "github.com/magabrotheeeer/discharge-sync/internal/services/discharge"
	membershipservice "github.com/magabrotheeeer/discharge-sync/internal/services/membership"
	"github.com/magabrotheeeer/discharge-sync/internal/storage/repository"
)

// App собирает HTTP-сервер сервиса даты выписки со всеми зависимостями.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
}

// New инициализирует хранилище, миграции, кеш, брокер и сервисы,
// связывает фильтр и страховочный хук даты выписки с процедурой смены
// уровня и возвращает готовое приложение.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	// Брокер не обязателен для работы сервиса: без него аудиторские
	// события просто не публикуются.
	var pub dischargeservice.Publisher
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, 5, 2*time.Second)
	if err != nil {
		logger.Warn("rabbitmq is unavailable, audit events disabled", sl.Err(err))
	} else {
		ch, err := rabbitmq.SetupChannel(conn)
		if err != nil {
			return nil, err
		}
		pub = rabbitmq.NewPublisher(ch)
	}

	loc, err := cfg.Discharge.Location()
	if err != nil {
		return nil, err
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	authService := authservice.NewAuthService(db, jwtMaker)
	membershipService := membershipservice.NewMembershipService(db, cacheRedis, logger, loc)
	dischargeService := dischargeservice.NewDischargeService(cfg.Discharge, loc, db, db, cacheRedis, pub, logger)

	// Подстановка даты окончания регистрируется последней, чтобы получить
	// последнее слово; прямая синхронизация закрывает пути мимо оформления.
	membershipService.RegisterEnddateFilter(dischargeService.OverrideEnddate)
	membershipService.RegisterLevelChangeHook(dischargeService.SyncExpiration)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, jwtMaker, authService, dischargeService, membershipService, db)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.db.DB.Close()
		return err
	}
}
