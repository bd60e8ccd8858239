package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/discharge-sync/internal/lib/jwt"
	"github.com/magabrotheeeer/discharge-sync/internal/lib/password"
	"github.com/magabrotheeeer/discharge-sync/internal/models"
)

type UsersMock struct{ mock.Mock }

func (m *UsersMock) RegisterUser(ctx context.Context, user models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}
func (m *UsersMock) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MakerMock struct{ mock.Mock }

func (m *MakerMock) GenerateToken(username, role, userUID string) (string, error) {
	args := m.Called(username, role, userUID)
	return args.String(0), args.Error(1)
}
func (m *MakerMock) ParseToken(tokenStr string) (*jwt.CustomClaims, error) {
	args := m.Called(tokenStr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jwt.CustomClaims), args.Error(1)
}

func TestRegister_HashesPasswordAndDefaultsRole(t *testing.T) {
	users := &UsersMock{}
	users.On("RegisterUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.Username == "alice" && u.Role == "user" &&
			u.PasswordHash != "secret" &&
			password.CompareHash(u.PasswordHash, "secret") == nil
	})).Return("uid-1", nil).Once()

	svc := NewAuthService(users, &MakerMock{})
	uid, err := svc.Register(context.Background(), "alice@example.com", "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", uid)
	users.AssertExpectations(t)
}

func TestLogin(t *testing.T) {
	hashed, err := password.GetHash("secret")
	require.NoError(t, err)

	user := &models.User{
		UID:          "uid-1",
		Username:     "alice",
		PasswordHash: hashed,
		Role:         "admin",
	}

	t.Run("success returns token and role", func(t *testing.T) {
		users := &UsersMock{}
		users.On("GetUserByUsername", mock.Anything, "alice").Return(user, nil).Once()

		maker := &MakerMock{}
		maker.On("GenerateToken", "alice", "admin", "uid-1").Return("signed-token", nil).Once()

		svc := NewAuthService(users, maker)
		token, role, err := svc.Login(context.Background(), "alice", "secret")
		require.NoError(t, err)
		assert.Equal(t, "signed-token", token)
		assert.Equal(t, "admin", role)
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		users := &UsersMock{}
		users.On("GetUserByUsername", mock.Anything, "alice").Return(user, nil).Once()

		svc := NewAuthService(users, &MakerMock{})
		_, _, err := svc.Login(context.Background(), "alice", "wrong")
		assert.Error(t, err)
	})

	t.Run("unknown user is rejected", func(t *testing.T) {
		users := &UsersMock{}
		users.On("GetUserByUsername", mock.Anything, "bob").
			Return(nil, errors.New("user not found")).Once()

		svc := NewAuthService(users, &MakerMock{})
		_, _, err := svc.Login(context.Background(), "bob", "secret")
		assert.Error(t, err)
	})
}
