// Package services содержит бизнес-логику даты выписки: валидацию,
// правило "записывается один раз", подстановку даты окончания членства
// и прямую синхронизацию строки членства.
//
// Логика принимает простые значения (uid, уровень, строку даты) и не зависит
// от HTTP-слоя, поэтому тестируется без транспорта.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/discharge-sync/internal/config"
	"github.com/magabrotheeeer/discharge-sync/internal/lib/dateutil"
	"github.com/magabrotheeeer/discharge-sync/internal/lib/sl"
	"github.com/magabrotheeeer/discharge-sync/internal/metrics"
	"github.com/magabrotheeeer/discharge-sync/internal/models"
	"github.com/magabrotheeeer/discharge-sync/internal/rabbitmq"
)

// MetaKeyDischargeDate ключ, под которым дата выписки хранится в user_meta.
const MetaKeyDischargeDate = "discharge_date"

// formTokenTTL время жизни одноразового токена формы аккаунта.
const formTokenTTL = 15 * time.Minute

var (
	// ErrInvalidFormToken одноразовый токен формы отсутствует, истёк
	// или выдан другому пользователю.
	ErrInvalidFormToken = errors.New("invalid form token")
	// ErrNotEligible пользователь не держит целевой уровень.
	ErrNotEligible = errors.New("user does not hold the target level")
	// ErrAlreadySet дата выписки уже сохранена; обычные пути её не меняют.
	ErrAlreadySet = errors.New("discharge date is already set")
)

// MetaRepository определяет методы для работы с мета-значениями пользователя.
type MetaRepository interface {
	// GetUserMeta возвращает значение по ключу, пустая строка — "не задано".
	GetUserMeta(ctx context.Context, userUID, key string) (string, error)
	// SetUserMeta записывает значение, перезаписывая существующее.
	SetUserMeta(ctx context.Context, userUID, key, value string) error
	// DeleteUserMeta удаляет значение и возвращает число удалённых строк.
	DeleteUserMeta(ctx context.Context, userUID, key string) (int, error)
}

// MembershipRepository определяет методы членства, нужные синхронизации.
type MembershipRepository interface {
	// HasActiveLevel отвечает, держит ли пользователь действующий уровень.
	HasActiveLevel(ctx context.Context, userUID string, levelID int) (bool, error)
	// UpdateActiveEnddate напрямую перезаписывает дату окончания
	// действующей строки членства, минуя процедуру смены уровня.
	UpdateActiveEnddate(ctx context.Context, userUID string, levelID int, enddate time.Time) (int, error)
}

// TokenStore описывает хранилище одноразовых токенов формы
// и инвалидацию кеша членств.
type TokenStore interface {
	// SetToken сохраняет одноразовый токен с временем жизни.
	SetToken(key, value string, expiration time.Duration) error
	// TakeToken атомарно читает и удаляет токен.
	TakeToken(key string) (string, error)
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// Publisher публикует аудиторские события переходов состояния.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// DischargeService реализует правила даты выписки для целевого уровня.
type DischargeService struct {
	meta        MetaRepository
	memberships MembershipRepository
	tokens      TokenStore
	pub         Publisher
	log         *slog.Logger
	loc         *time.Location

	targetLevelID  func() int
	maxFutureYears func() int
}

// Option настраивает DischargeService. Точки расширения конфигурации
// задаются функциями-провайдерами, а не глобальным состоянием.
type Option func(*DischargeService)

// WithTargetLevelID переопределяет провайдер целевого уровня.
func WithTargetLevelID(f func() int) Option {
	return func(s *DischargeService) { s.targetLevelID = f }
}

// WithMaxFutureYears переопределяет провайдер горизонта допустимых дат.
func WithMaxFutureYears(f func() int) Option {
	return func(s *DischargeService) { s.maxFutureYears = f }
}

// NewDischargeService создает новый экземпляр DischargeService.
// Publisher может быть nil — аудит тогда не публикуется.
func NewDischargeService(cfg config.Discharge, loc *time.Location, meta MetaRepository,
	memberships MembershipRepository, tokens TokenStore, pub Publisher,
	log *slog.Logger, opts ...Option) *DischargeService {
	s := &DischargeService{
		meta:           meta,
		memberships:    memberships,
		tokens:         tokens,
		pub:            pub,
		log:            log,
		loc:            loc,
		targetLevelID:  func() int { return cfg.TargetLevelID },
		maxFutureYears: func() int { return cfg.MaxFutureYears },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TargetLevelID возвращает идентификатор целевого уровня.
func (s *DischargeService) TargetLevelID() int { return s.targetLevelID() }

// MaxFutureYears возвращает горизонт допустимых дат в годах.
func (s *DischargeService) MaxFutureYears() int { return s.maxFutureYears() }

// Today возвращает текущую дату в зоне оператора.
func (s *DischargeService) Today() time.Time { return dateutil.Today(s.loc) }

// MaxFutureDate возвращает последнюю допустимую дату выписки.
func (s *DischargeService) MaxFutureDate() time.Time {
	return dateutil.MaxFutureDate(s.Today(), s.maxFutureYears())
}

// Validate проверяет сырую строку даты выписки и возвращает список ошибок.
// Ошибки — данные, а не исключения: решает вызывающая сторона.
// После успешного разбора обе ошибки диапазона могут быть возвращены вместе.
func (s *DischargeService) Validate(raw string) []string {
	if raw == "" {
		return []string{"discharge date is required"}
	}
	d, err := dateutil.Parse(raw, s.loc)
	if err != nil {
		return []string{"discharge date must be a valid date in YYYY-MM-DD format"}
	}

	var errs []string
	if d.Before(s.Today()) {
		errs = append(errs, "discharge date cannot be in the past")
	}
	if d.After(s.MaxFutureDate()) {
		errs = append(errs, fmt.Sprintf("discharge date cannot be more than %d years in the future", s.maxFutureYears()))
	}
	return errs
}

// StoredDate возвращает сохранённую дату выписки пользователя,
// пустая строка означает "не задано".
func (s *DischargeService) StoredDate(ctx context.Context, userUID string) (string, error) {
	return s.meta.GetUserMeta(ctx, userUID, MetaKeyDischargeDate)
}

// UserHasTargetLevel отвечает, держит ли пользователь действующее членство
// на целевом уровне.
func (s *DischargeService) UserHasTargetLevel(ctx context.Context, userUID string) (bool, error) {
	return s.memberships.HasActiveLevel(ctx, userUID, s.targetLevelID())
}

// FieldView собирает модель отображения поля даты выписки.
// submitted — значение из не прошедшей валидацию повторной отправки,
// которым предзаполняется редактируемое поле.
func (s *DischargeService) FieldView(ctx context.Context, userUID string, levelID int,
	submitted string, isAdmin bool) (models.DischargeFieldView, error) {
	if levelID != s.targetLevelID() && !isAdmin {
		return models.DischargeFieldView{Mode: models.FieldModeNone}, nil
	}

	stored, err := s.StoredDate(ctx, userUID)
	if err != nil {
		return models.DischargeFieldView{}, err
	}

	// Администратор не связан правилом "записывается один раз":
	// поле редактируемо независимо от сохранённого значения.
	if isAdmin {
		return models.DischargeFieldView{
			Mode:  models.FieldModeEditable,
			Value: stored,
		}, nil
	}

	if stored != "" {
		return models.DischargeFieldView{
			Mode:   models.FieldModeReadonly,
			Value:  stored,
			Notice: "discharge date is fixed once saved and can only be changed by an administrator",
		}, nil
	}

	return models.DischargeFieldView{
		Mode:  models.FieldModeEditable,
		Value: submitted,
		Min:   s.Today().Format(dateutil.DateLayout),
		Max:   s.MaxFutureDate().Format(dateutil.DateLayout),
	}, nil
}

// CheckoutGate единственный шлюз, не пропускающий некорректную или
// отсутствующую дату к сохранению. Возвращает список ошибок валидации;
// пустой список — оформление продолжается.
func (s *DischargeService) CheckoutGate(ctx context.Context, userUID string, levelID int, raw string) ([]string, error) {
	if levelID != s.targetLevelID() {
		return nil, nil
	}

	stored, err := s.StoredDate(ctx, userUID)
	if err != nil {
		return nil, err
	}
	if stored != "" {
		// Дата уже зафиксирована — оформление проходит без проверки.
		return nil, nil
	}

	errs := s.Validate(raw)
	if len(errs) > 0 {
		metrics.BlockedCheckouts.Inc()
	}
	return errs, nil
}

// CompleteCheckout сохраняет дату выписки после успешного оформления.
// Второй, страховочный контроль "записывается один раз": при уже
// сохранённой дате или невалидном значении запись не выполняется.
// Дата окончания членства здесь не трогается — она уже выставлена
// фильтром OverrideEnddate раньше в том же жизненном цикле.
func (s *DischargeService) CompleteCheckout(ctx context.Context, userUID string, levelID int, raw string) error {
	const op = "services.discharge.CompleteCheckout"
	log := s.log.With(slog.String("op", op), sl.UID(userUID))

	if levelID != s.targetLevelID() {
		return nil
	}

	stored, err := s.StoredDate(ctx, userUID)
	if err != nil {
		return err
	}
	if stored != "" {
		log.Info("discharge date already stored, skipping save", slog.String("stored", stored))
		return nil
	}

	if errs := s.Validate(raw); len(errs) > 0 {
		log.Warn("submitted discharge date failed revalidation, nothing stored",
			slog.String("value", raw), slog.Any("errors", errs))
		return nil
	}

	if err := s.meta.SetUserMeta(ctx, userUID, MetaKeyDischargeDate, raw); err != nil {
		return err
	}
	metrics.DischargeSaves.WithLabelValues("checkout").Inc()
	log.Info("discharge date stored at checkout", slog.String("value", raw))
	s.publish("checkout", userUID, raw)
	return nil
}

// OverrideEnddate фильтр вычисления даты окончания членства.
// Возвращает предложенную дату без изменений, если уровень не целевой,
// эффективной даты нет или конвертация не удалась; иначе — конец дня
// эффективной даты. Эффективная дата: значение из текущего запроса
// оформления, затем сохранённая дата.
func (s *DischargeService) OverrideEnddate(ctx context.Context, proposed *time.Time,
	userUID string, levelID int, submitted string) *time.Time {
	const op = "services.discharge.OverrideEnddate"

	if levelID != s.targetLevelID() {
		return proposed
	}

	effective := submitted
	if effective == "" {
		stored, err := s.StoredDate(ctx, userUID)
		if err != nil {
			s.log.Warn("failed to read stored discharge date, passing through",
				slog.String("op", op), sl.UID(userUID), sl.Err(err))
			return proposed
		}
		effective = stored
	}
	if effective == "" {
		return proposed
	}

	ts, err := dateutil.EndOfDay(effective, s.loc)
	if err != nil {
		// Никогда не записываем кривую метку времени: оставляем
		// предложенную дату как есть.
		s.log.Warn("discharge date conversion failed, passing through",
			slog.String("op", op), sl.UID(userUID), slog.String("value", effective))
		return proposed
	}
	return &ts
}

// SyncExpiration прямая перезапись даты окончания действующей строки
// членства по сохранённой дате выписки, с инвалидацией кеша членства.
// Страховочный путь для смен уровня, минующих фильтр вычисления даты.
func (s *DischargeService) SyncExpiration(ctx context.Context, userUID string, levelID int) error {
	const op = "services.discharge.SyncExpiration"
	log := s.log.With(slog.String("op", op), sl.UID(userUID))

	if levelID != s.targetLevelID() {
		return nil
	}

	stored, err := s.StoredDate(ctx, userUID)
	if err != nil {
		return err
	}
	if stored == "" {
		return nil
	}

	ts, err := dateutil.EndOfDay(stored, s.loc)
	if err != nil {
		log.Warn("stored discharge date is malformed, expiration left untouched",
			slog.String("value", stored))
		return nil
	}

	rows, err := s.memberships.UpdateActiveEnddate(ctx, userUID, levelID, ts)
	if err != nil {
		return err
	}
	if rows == 0 {
		log.Info("no active membership row to sync")
		return nil
	}

	if err := s.tokens.Invalidate(membershipCacheKey(userUID)); err != nil {
		log.Warn("failed to invalidate membership cache", sl.Err(err))
	}
	metrics.ExpirationSyncs.Inc()
	log.Info("membership enddate synced", slog.String("enddate", dateutil.FormatTimestamp(ts)))
	s.publish("backstop", userUID, stored)
	return nil
}

// IssueFormToken выдает одноразовый токен формы аккаунта, привязанный
// к пользователю.
func (s *DischargeService) IssueFormToken(userUID string) (string, error) {
	token := uuid.NewString()
	if err := s.tokens.SetToken(formTokenKey(token), userUID, formTokenTTL); err != nil {
		return "", err
	}
	return token, nil
}

// AccountSubmit самостоятельное сохранение даты со страницы аккаунта.
// Проверяет одноразовый токен, право на целевой уровень и правило
// "записывается один раз", затем валидирует, сохраняет и синхронизирует
// дату окончания членства. Возвращённый список ошибок валидации пуст
// при успехе.
func (s *DischargeService) AccountSubmit(ctx context.Context, userUID, raw, token string) ([]string, error) {
	const op = "services.discharge.AccountSubmit"
	log := s.log.With(slog.String("op", op), sl.UID(userUID))

	owner, err := s.tokens.TakeToken(formTokenKey(token))
	if err != nil || owner != userUID {
		return nil, ErrInvalidFormToken
	}

	has, err := s.UserHasTargetLevel(ctx, userUID)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, ErrNotEligible
	}

	stored, err := s.StoredDate(ctx, userUID)
	if err != nil {
		return nil, err
	}
	if stored != "" {
		return nil, ErrAlreadySet
	}

	if errs := s.Validate(raw); len(errs) > 0 {
		return errs, nil
	}

	if err := s.meta.SetUserMeta(ctx, userUID, MetaKeyDischargeDate, raw); err != nil {
		return nil, err
	}
	metrics.DischargeSaves.WithLabelValues("account").Inc()
	log.Info("discharge date stored from account page", slog.String("value", raw))
	s.publish("account", userUID, raw)

	if err := s.SyncExpiration(ctx, userUID, s.targetLevelID()); err != nil {
		return nil, err
	}
	return nil, nil
}

// AdminSave административное редактирование даты выписки.
// Пустое значение удаляет сохранённую дату; непустое перезаписывает её
// без проверки бизнес-диапазона: административный override,
// а не пользовательский ввод. При целевом уровне сразу выполняется
// прямая синхронизация даты окончания членства.
func (s *DischargeService) AdminSave(ctx context.Context, targetUID, raw string) error {
	const op = "services.discharge.AdminSave"
	log := s.log.With(slog.String("op", op), sl.UID(targetUID))

	if raw == "" {
		if _, err := s.meta.DeleteUserMeta(ctx, targetUID, MetaKeyDischargeDate); err != nil {
			return err
		}
		log.Info("discharge date cleared by administrator")
		s.publish("admin", targetUID, "")
		return nil
	}

	if err := s.meta.SetUserMeta(ctx, targetUID, MetaKeyDischargeDate, raw); err != nil {
		return err
	}
	metrics.DischargeSaves.WithLabelValues("admin").Inc()
	log.Info("discharge date overwritten by administrator", slog.String("value", raw))
	s.publish("admin", targetUID, raw)

	has, err := s.UserHasTargetLevel(ctx, targetUID)
	if err != nil {
		return err
	}
	if has {
		return s.SyncExpiration(ctx, targetUID, s.targetLevelID())
	}
	return nil
}

// publish отправляет аудиторское событие; сбой публикации только логируется.
func (s *DischargeService) publish(path, userUID, value string) {
	if s.pub == nil {
		return
	}
	event := rabbitmq.AuditEvent{
		Path:    path,
		UserUID: userUID,
		Value:   value,
		At:      time.Now().In(s.loc),
	}
	if err := s.pub.Publish("discharge", event); err != nil {
		s.log.Warn("failed to publish audit event", slog.String("path", path), sl.Err(err))
	}
}

func formTokenKey(token string) string {
	return fmt.Sprintf("discharge_token:%s", token)
}

func membershipCacheKey(userUID string) string {
	return fmt.Sprintf("membership:%s", userUID)
}
