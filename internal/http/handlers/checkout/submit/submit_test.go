package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/discharge-sync/internal/http/middlewarectx"
	"github.com/magabrotheeeer/discharge-sync/internal/models"
)

// MockDischarge реализует интерфейс submit.DischargeService
type MockDischarge struct {
	mock.Mock
}

func (m *MockDischarge) CheckoutGate(ctx context.Context, userUID string, levelID int, raw string) ([]string, error) {
	args := m.Called(ctx, userUID, levelID, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDischarge) CompleteCheckout(ctx context.Context, userUID string, levelID int, raw string) error {
	return m.Called(ctx, userUID, levelID, raw).Error(0)
}

// MockMembership реализует интерфейс submit.MembershipService
type MockMembership struct {
	mock.Mock
}

func (m *MockMembership) ChangeLevel(ctx context.Context, userUID string, levelID int, submitted string) (int, error) {
	args := m.Called(ctx, userUID, levelID, submitted)
	return args.Int(0), args.Error(1)
}

const testUID = "8d7f2c1e-4a6b-4f3d-9e8a-1b2c3d4e5f60"

func futureDate() string {
	return time.Now().UTC().AddDate(0, 1, 0).Format("2006-01-02")
}

func TestCheckoutSubmitHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	raw := futureDate()

	tests := []struct {
		name           string
		requestBody    interface{}
		userUID        string
		setupMocks     func(d *MockDischarge, ms *MockMembership)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "успешное оформление",
			requestBody: models.CheckoutRequest{LevelID: 1, DischargeDate: raw},
			userUID:     testUID,
			setupMocks: func(d *MockDischarge, ms *MockMembership) {
				d.On("CheckoutGate", mock.Anything, testUID, 1, raw).Return(nil, nil)
				ms.On("ChangeLevel", mock.Anything, testUID, 1, raw).Return(7, nil)
				d.On("CompleteCheckout", mock.Anything, testUID, 1, raw).Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"membership_id":7`,
		},
		{
			name:        "оформление нецелевого уровня без даты",
			requestBody: models.CheckoutRequest{LevelID: 2},
			userUID:     testUID,
			setupMocks: func(d *MockDischarge, ms *MockMembership) {
				d.On("CheckoutGate", mock.Anything, testUID, 2, "").Return(nil, nil)
				ms.On("ChangeLevel", mock.Anything, testUID, 2, "").Return(8, nil)
				d.On("CompleteCheckout", mock.Anything, testUID, 2, "").Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"membership_id":8`,
		},
		{
			name:           "некорректный JSON",
			requestBody:    "not a json",
			userUID:        testUID,
			setupMocks:     func(_ *MockDischarge, _ *MockMembership) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name:           "ошибка валидации запроса",
			requestBody:    models.CheckoutRequest{},
			userUID:        testUID,
			setupMocks:     func(_ *MockDischarge, _ *MockMembership) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field LevelID is a required field`,
		},
		{
			name:           "отсутствует авторизация",
			requestBody:    models.CheckoutRequest{LevelID: 1, DischargeDate: raw},
			userUID:        "",
			setupMocks:     func(_ *MockDischarge, _ *MockMembership) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
		{
			name:        "дата выписки блокирует оформление",
			requestBody: models.CheckoutRequest{LevelID: 1},
			userUID:     testUID,
			setupMocks: func(d *MockDischarge, _ *MockMembership) {
				d.On("CheckoutGate", mock.Anything, testUID, 1, "").
					Return([]string{"discharge date is required"}, nil)
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"status":"Error","error":"discharge date is required"}`,
		},
		{
			name:        "ошибка шлюза",
			requestBody: models.CheckoutRequest{LevelID: 1, DischargeDate: raw},
			userUID:     testUID,
			setupMocks: func(d *MockDischarge, _ *MockMembership) {
				d.On("CheckoutGate", mock.Anything, testUID, 1, raw).
					Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"could not process checkout"}`,
		},
		{
			name:        "ошибка смены уровня",
			requestBody: models.CheckoutRequest{LevelID: 1, DischargeDate: raw},
			userUID:     testUID,
			setupMocks: func(d *MockDischarge, ms *MockMembership) {
				d.On("CheckoutGate", mock.Anything, testUID, 1, raw).Return(nil, nil)
				ms.On("ChangeLevel", mock.Anything, testUID, 1, raw).
					Return(0, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"could not process checkout"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDischarge := new(MockDischarge)
			mockMembership := new(MockMembership)
			tt.setupMocks(mockDischarge, mockMembership)

			handler := New(logger, mockDischarge, mockMembership)

			var body []byte
			var err error
			if str, ok := tt.requestBody.(string); ok {
				body = []byte(str)
			} else {
				body, err = json.Marshal(tt.requestBody)
				assert.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

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
