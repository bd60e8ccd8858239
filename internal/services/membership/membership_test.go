package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/discharge-sync/internal/config"
	"github.com/magabrotheeeer/discharge-sync/internal/models"
	discharge "github.com/magabrotheeeer/discharge-sync/internal/services/discharge"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CreateMembership(ctx context.Context, membership models.Membership) (int, error) {
	args := m.Called(ctx, membership)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) GetActiveMembership(ctx context.Context, userUID string) (*models.Membership, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Membership), args.Error(1)
}
func (m *RepoMock) CancelActiveMemberships(ctx context.Context, userUID string) (int, error) {
	args := m.Called(ctx, userUID)
	return args.Int(0), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}
func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}
func (m *CacheMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

const testUID = "8d7f2c1e-4a6b-4f3d-9e8a-1b2c3d4e5f60"

func TestChangeLevel(t *testing.T) {
	repo := &RepoMock{}
	repo.On("CancelActiveMemberships", mock.Anything, testUID).Return(1, nil).Once()
	repo.On("CreateMembership", mock.Anything, mock.MatchedBy(func(m models.Membership) bool {
		return m.UserUID == testUID && m.LevelID == 2 &&
			m.Status == models.MembershipActive && m.EndDate == nil
	})).Return(7, nil).Once()

	cache := &CacheMock{}
	cache.On("Invalidate", fmt.Sprintf("membership:%s", testUID)).Return(nil).Once()

	svc := NewMembershipService(repo, cache, newNoopLogger(), time.UTC)

	id, err := svc.ChangeLevel(context.Background(), testUID, 2, "")
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestChangeLevel_FiltersRunInRegistrationOrder(t *testing.T) {
	first := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2027, 6, 1, 23, 59, 59, 0, time.UTC)

	repo := &RepoMock{}
	repo.On("CancelActiveMemberships", mock.Anything, testUID).Return(0, nil).Once()
	repo.On("CreateMembership", mock.Anything, mock.MatchedBy(func(m models.Membership) bool {
		return m.EndDate != nil && m.EndDate.Equal(second)
	})).Return(1, nil).Once()

	cache := &CacheMock{}
	cache.On("Invalidate", mock.Anything).Return(nil).Once()

	svc := NewMembershipService(repo, cache, newNoopLogger(), time.UTC)
	svc.RegisterEnddateFilter(func(_ context.Context, _ *time.Time, _ string, _ int, _ string) *time.Time {
		return &first
	})
	// Зарегистрированный последним фильтр получает последнее слово.
	svc.RegisterEnddateFilter(func(_ context.Context, proposed *time.Time, _ string, _ int, _ string) *time.Time {
		require.NotNil(t, proposed)
		assert.True(t, proposed.Equal(first))
		return &second
	})

	_, err := svc.ChangeLevel(context.Background(), testUID, 1, "2027-06-01")
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestChangeLevel_HookErrorDoesNotFailChange(t *testing.T) {
	repo := &RepoMock{}
	repo.On("CancelActiveMemberships", mock.Anything, testUID).Return(0, nil).Once()
	repo.On("CreateMembership", mock.Anything, mock.Anything).Return(3, nil).Once()

	cache := &CacheMock{}
	cache.On("Invalidate", mock.Anything).Return(nil).Once()

	svc := NewMembershipService(repo, cache, newNoopLogger(), time.UTC)

	var hookCalled bool
	svc.RegisterLevelChangeHook(func(_ context.Context, userUID string, levelID int) error {
		hookCalled = true
		assert.Equal(t, testUID, userUID)
		assert.Equal(t, 1, levelID)
		return errors.New("hook failed")
	})

	id, err := svc.ChangeLevel(context.Background(), testUID, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 3, id)
	assert.True(t, hookCalled)
}

func TestAssignLevel_RunsHooksWithoutSubmittedValue(t *testing.T) {
	repo := &RepoMock{}
	repo.On("CancelActiveMemberships", mock.Anything, testUID).Return(1, nil).Once()
	repo.On("CreateMembership", mock.Anything, mock.Anything).Return(9, nil).Once()

	cache := &CacheMock{}
	cache.On("Invalidate", mock.Anything).Return(nil).Once()

	svc := NewMembershipService(repo, cache, newNoopLogger(), time.UTC)

	var gotSubmitted = "unset"
	svc.RegisterEnddateFilter(func(_ context.Context, proposed *time.Time, _ string, _ int, submitted string) *time.Time {
		gotSubmitted = submitted
		return proposed
	})

	_, err := svc.AssignLevel(context.Background(), testUID, 1)
	require.NoError(t, err)
	assert.Empty(t, gotSubmitted)
}

type DischargeMetaMock struct{ mock.Mock }

func (m *DischargeMetaMock) GetUserMeta(ctx context.Context, userUID, key string) (string, error) {
	args := m.Called(ctx, userUID, key)
	return args.String(0), args.Error(1)
}
func (m *DischargeMetaMock) SetUserMeta(ctx context.Context, userUID, key, value string) error {
	return m.Called(ctx, userUID, key, value).Error(0)
}
func (m *DischargeMetaMock) DeleteUserMeta(ctx context.Context, userUID, key string) (int, error) {
	args := m.Called(ctx, userUID, key)
	return args.Int(0), args.Error(1)
}

type DischargeRowsMock struct{ mock.Mock }

func (m *DischargeRowsMock) HasActiveLevel(ctx context.Context, userUID string, levelID int) (bool, error) {
	args := m.Called(ctx, userUID, levelID)
	return args.Bool(0), args.Error(1)
}
func (m *DischargeRowsMock) UpdateActiveEnddate(ctx context.Context, userUID string, levelID int, enddate time.Time) (int, error) {
	args := m.Called(ctx, userUID, levelID, enddate)
	return args.Int(0), args.Error(1)
}

type FormTokenMock struct{ mock.Mock }

func (m *FormTokenMock) SetToken(key, value string, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}
func (m *FormTokenMock) TakeToken(key string) (string, error) {
	args := m.Called(key)
	return args.String(0), args.Error(1)
}
func (m *FormTokenMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

// Повторное оформление при уже сохранённой дате: фильтр видит дату
// из запроса, но страховочный хук возвращает строку членства к
// сохранённой дате — последнее слово остаётся за ней.
func TestChangeLevel_StoredDateWinsOverResubmission(t *testing.T) {
	const (
		targetLevel = 1
		storedDate  = "2027-03-10"
		resubmitted = "2027-12-31"
	)
	submittedEnd := time.Date(2027, 12, 31, 23, 59, 59, 0, time.UTC)
	storedEnd := time.Date(2027, 3, 10, 23, 59, 59, 0, time.UTC)
	cacheKey := fmt.Sprintf("membership:%s", testUID)

	repo := &RepoMock{}
	repo.On("CancelActiveMemberships", mock.Anything, testUID).Return(1, nil).Once()
	// Фильтр подставляет дату из текущего запроса.
	repo.On("CreateMembership", mock.Anything, mock.MatchedBy(func(m models.Membership) bool {
		return m.EndDate != nil && m.EndDate.Equal(submittedEnd)
	})).Return(11, nil).Once()

	cache := &CacheMock{}
	cache.On("Invalidate", cacheKey).Return(nil).Once()

	meta := &DischargeMetaMock{}
	meta.On("GetUserMeta", mock.Anything, testUID, discharge.MetaKeyDischargeDate).
		Return(storedDate, nil)

	rows := &DischargeRowsMock{}
	// Хук перезаписывает дату окончания по сохранённой дате.
	rows.On("UpdateActiveEnddate", mock.Anything, testUID, targetLevel, storedEnd).
		Return(1, nil).Once()

	tokens := &FormTokenMock{}
	tokens.On("Invalidate", cacheKey).Return(nil).Once()

	dischargeSvc := discharge.NewDischargeService(
		config.Discharge{TargetLevelID: targetLevel, MaxFutureYears: 5, Timezone: "UTC"},
		time.UTC, meta, rows, tokens, nil, newNoopLogger())

	svc := NewMembershipService(repo, cache, newNoopLogger(), time.UTC)
	svc.RegisterEnddateFilter(dischargeSvc.OverrideEnddate)
	svc.RegisterLevelChangeHook(dischargeSvc.SyncExpiration)

	id, err := svc.ChangeLevel(context.Background(), testUID, targetLevel, resubmitted)
	require.NoError(t, err)
	assert.Equal(t, 11, id)

	repo.AssertExpectations(t)
	rows.AssertExpectations(t)
	tokens.AssertExpectations(t)
}

func TestGetMembership(t *testing.T) {
	cacheKey := fmt.Sprintf("membership:%s", testUID)
	stored := &models.Membership{ID: 5, UserUID: testUID, LevelID: 1, Status: models.MembershipActive}

	t.Run("cache miss reads repository and fills cache", func(t *testing.T) {
		repo := &RepoMock{}
		repo.On("GetActiveMembership", mock.Anything, testUID).Return(stored, nil).Once()

		cache := &CacheMock{}
		cache.On("Get", cacheKey, mock.Anything).Return(false, nil).Once()
		cache.On("Set", cacheKey, stored, time.Hour).Return(nil).Once()

		svc := NewMembershipService(repo, cache, newNoopLogger(), time.UTC)
		got, err := svc.GetMembership(context.Background(), testUID)
		require.NoError(t, err)
		assert.Equal(t, stored, got)

		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("cache hit skips repository", func(t *testing.T) {
		repo := &RepoMock{}

		cache := &CacheMock{}
		cache.On("Get", cacheKey, mock.Anything).Return(true, nil).Once()

		svc := NewMembershipService(repo, cache, newNoopLogger(), time.UTC)
		_, err := svc.GetMembership(context.Background(), testUID)
		require.NoError(t, err)

		repo.AssertNotCalled(t, "GetActiveMembership", mock.Anything, mock.Anything)
	})

	t.Run("no membership is not cached", func(t *testing.T) {
		repo := &RepoMock{}
		repo.On("GetActiveMembership", mock.Anything, testUID).Return(nil, nil).Once()

		cache := &CacheMock{}
		cache.On("Get", cacheKey, mock.Anything).Return(false, nil).Once()

		svc := NewMembershipService(repo, cache, newNoopLogger(), time.UTC)
		got, err := svc.GetMembership(context.Background(), testUID)
		require.NoError(t, err)
		assert.Nil(t, got)

		cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
	})
}
