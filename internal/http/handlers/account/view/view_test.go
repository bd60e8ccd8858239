package view

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/discharge-sync/internal/http/middlewarectx"
	"github.com/magabrotheeeer/discharge-sync/internal/models"
)

// MockDischarge реализует интерфейс view.DischargeService
type MockDischarge struct {
	mock.Mock
}

func (m *MockDischarge) FieldView(ctx context.Context, userUID string, levelID int, submitted string, isAdmin bool) (models.DischargeFieldView, error) {
	args := m.Called(ctx, userUID, levelID, submitted, isAdmin)
	return args.Get(0).(models.DischargeFieldView), args.Error(1)
}

func (m *MockDischarge) IssueFormToken(userUID string) (string, error) {
	args := m.Called(userUID)
	return args.String(0), args.Error(1)
}

// MockMembership реализует интерфейс view.MembershipService
type MockMembership struct {
	mock.Mock
}

func (m *MockMembership) GetMembership(ctx context.Context, userUID string) (*models.Membership, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Membership), args.Error(1)
}

const testUID = "8d7f2c1e-4a6b-4f3d-9e8a-1b2c3d4e5f60"

func TestAccountViewHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	activeMembership := &models.Membership{
		ID:      5,
		UserUID: testUID,
		LevelID: 1,
		Status:  models.MembershipActive,
	}

	tests := []struct {
		name           string
		userUID        string
		setupMocks     func(d *MockDischarge, ms *MockMembership)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "редактируемое поле получает токен формы",
			userUID: testUID,
			setupMocks: func(d *MockDischarge, ms *MockMembership) {
				ms.On("GetMembership", mock.Anything, testUID).Return(activeMembership, nil)
				d.On("FieldView", mock.Anything, testUID, 1, "", false).
					Return(models.DischargeFieldView{Mode: models.FieldModeEditable}, nil)
				d.On("IssueFormToken", testUID).Return("form-token-1", nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"form_token":"form-token-1"`,
		},
		{
			name:    "зафиксированная дата без токена",
			userUID: testUID,
			setupMocks: func(d *MockDischarge, ms *MockMembership) {
				ms.On("GetMembership", mock.Anything, testUID).Return(activeMembership, nil)
				d.On("FieldView", mock.Anything, testUID, 1, "", false).
					Return(models.DischargeFieldView{
						Mode:  models.FieldModeReadonly,
						Value: "2026-09-01",
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"mode":"readonly"`,
		},
		{
			name:    "без членства поле скрыто",
			userUID: testUID,
			setupMocks: func(d *MockDischarge, ms *MockMembership) {
				ms.On("GetMembership", mock.Anything, testUID).Return(nil, nil)
				d.On("FieldView", mock.Anything, testUID, 0, "", false).
					Return(models.DischargeFieldView{Mode: models.FieldModeNone}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"mode":"none"`,
		},
		{
			name:           "отсутствует авторизация",
			userUID:        "",
			setupMocks:     func(_ *MockDischarge, _ *MockMembership) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
		{
			name:    "ошибка чтения членства",
			userUID: testUID,
			setupMocks: func(_ *MockDischarge, ms *MockMembership) {
				ms.On("GetMembership", mock.Anything, testUID).
					Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"could not read account"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDischarge := new(MockDischarge)
			mockMembership := new(MockMembership)
			tt.setupMocks(mockDischarge, mockMembership)

			handler := New(logger, mockDischarge, mockMembership)

			req := httptest.NewRequest(http.MethodGet, "/account", nil)
			ctx := context.WithValue(req.Context(), middlewarectx.UserUID, tt.userUID)
			ctx = context.WithValue(ctx, middleware.RequestIDKey, "req-id")
			req = req.WithContext(ctx)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)

			mockDischarge.AssertExpectations(t)
			mockMembership.AssertExpectations(t)
		})
	}
}
