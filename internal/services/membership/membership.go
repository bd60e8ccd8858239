// Package services содержит бизнес-логику членств по уровням: оформление,
// административное назначение уровня и чтение с кешированием.
//
// Дата окончания членства вычисляется упорядоченной цепочкой фильтров —
// точкой расширения, в которую подписчики (в том числе синхронизация даты
// выписки) встраивают свою логику. Зарегистрированный последним фильтр
// получает последнее слово.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/discharge-sync/internal/lib/sl"
	"github.com/magabrotheeeer/discharge-sync/internal/models"
	"github.com/magabrotheeeer/discharge-sync/internal/storage/repository"
)

// EnddateFilter корректирует предложенную дату окончания членства.
// Фильтр обязан вернуть дату без изменений, если он неприменим.
type EnddateFilter func(ctx context.Context, proposed *time.Time, userUID string, levelID int, submitted string) *time.Time

// LevelChangeHook вызывается после каждой завершённой смены уровня.
// Ошибки хуков логируются и не прерывают смену уровня.
type LevelChangeHook func(ctx context.Context, userUID string, levelID int) error

// MembershipRepository определяет методы для работы с членствами в хранилище.
type MembershipRepository interface {
	// CreateMembership добавляет строку членства и возвращает её ID.
	CreateMembership(ctx context.Context, m models.Membership) (int, error)
	// GetActiveMembership возвращает действующее членство пользователя.
	GetActiveMembership(ctx context.Context, userUID string) (*models.Membership, error)
	// CancelActiveMemberships отменяет действующие членства пользователя.
	CancelActiveMemberships(ctx context.Context, userUID string) (int, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// MembershipService реализует процедуру смены уровня и чтение членств.
type MembershipService struct {
	repo    MembershipRepository
	cache   Cache
	log     *slog.Logger
	loc     *time.Location
	filters []EnddateFilter
	hooks   []LevelChangeHook
}

// NewMembershipService создает новый экземпляр MembershipService.
func NewMembershipService(repo MembershipRepository, cache Cache, log *slog.Logger, loc *time.Location) *MembershipService {
	return &MembershipService{
		repo:  repo,
		cache: cache,
		log:   log,
		loc:   loc,
	}
}

// RegisterEnddateFilter добавляет фильтр в конец цепочки вычисления
// даты окончания. Порядок регистрации определяет порядок применения.
func (s *MembershipService) RegisterEnddateFilter(f EnddateFilter) {
	s.filters = append(s.filters, f)
}

// RegisterLevelChangeHook добавляет хук, вызываемый после смены уровня.
func (s *MembershipService) RegisterLevelChangeHook(h LevelChangeHook) {
	s.hooks = append(s.hooks, h)
}

// applyEnddateFilters прогоняет предложенную дату окончания через цепочку.
func (s *MembershipService) applyEnddateFilters(ctx context.Context, proposed *time.Time,
	userUID string, levelID int, submitted string) *time.Time {
	for _, f := range s.filters {
		proposed = f(ctx, proposed, userUID, levelID, submitted)
	}
	return proposed
}

// runLevelChangeHooks вызывает хуки после завершённой смены уровня.
func (s *MembershipService) runLevelChangeHooks(ctx context.Context, userUID string, levelID int) {
	for _, h := range s.hooks {
		if err := h(ctx, userUID, levelID); err != nil {
			s.log.Warn("level change hook failed", sl.UID(userUID),
				slog.Int("level_id", levelID), sl.Err(err))
		}
	}
}

// ChangeLevel полная процедура смены уровня: отменяет действующие членства,
// вычисляет дату окончания через цепочку фильтров, вставляет новую строку,
// инвалидирует кеш и запускает хуки. submitted — значение даты выписки
// из текущего запроса оформления, пустая строка вне оформления.
func (s *MembershipService) ChangeLevel(ctx context.Context, userUID string, levelID int, submitted string) (int, error) {
	const op = "services.membership.ChangeLevel"
	log := s.log.With(slog.String("op", op), sl.UID(userUID))

	enddate := s.applyEnddateFilters(ctx, nil, userUID, levelID, submitted)

	if _, err := s.repo.CancelActiveMemberships(ctx, userUID); err != nil {
		return 0, err
	}

	m := models.Membership{
		UserUID:   userUID,
		LevelID:   levelID,
		Status:    models.MembershipActive,
		StartDate: time.Now().In(s.loc),
		EndDate:   enddate,
	}
	id, err := s.repo.CreateMembership(ctx, m)
	if err != nil {
		return 0, err
	}
	log.Info("membership level changed", slog.Int("level_id", levelID), slog.Int("id", id))

	if err := s.cache.Invalidate(membershipCacheKey(userUID)); err != nil {
		log.Warn("failed to invalidate membership cache", sl.Err(err))
	}

	s.runLevelChangeHooks(ctx, userUID, levelID)
	return id, nil
}

// AssignLevel административное назначение уровня: та же процедура смены
// уровня, но без данных текущего оформления. Пути, минующие фильтр
// оформления, закрывает страховочный хук.
func (s *MembershipService) AssignLevel(ctx context.Context, userUID string, levelID int) (int, error) {
	return s.ChangeLevel(ctx, userUID, levelID, "")
}

// GetMembership возвращает действующее членство пользователя,
// используя кеш или репозиторий.
func (s *MembershipService) GetMembership(ctx context.Context, userUID string) (*models.Membership, error) {
	var result *models.Membership
	cacheKey := membershipCacheKey(userUID)
	found, err := s.cache.Get(cacheKey, &result)
	if err != nil {
		return nil, err
	}
	if found {
		return result, nil
	}

	result, err = s.repo.GetActiveMembership(ctx, userUID)
	if errors.Is(err, repository.ErrMembershipNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if result != nil {
		if err := s.cache.Set(cacheKey, result, time.Hour); err != nil {
			s.log.Warn("failed to add membership to cache", slog.String("key", cacheKey), sl.Err(err))
		}
	}
	return result, nil
}

func membershipCacheKey(userUID string) string {
	return fmt.Sprintf("membership:%s", userUID)
}
