package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sofikovaleva/risk-scoring-service/internal/lib/jwt"
	"github.com/sofikovaleva/risk-scoring-service/internal/lib/password"
	"github.com/sofikovaleva/risk-scoring-service/internal/models"
)

type UsersMock struct{ mock.Mock }

func (m *UsersMock) RegisterUser(ctx context.Context, user models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *UsersMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UsersMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type BillingMock struct{ mock.Mock }

func (m *BillingMock) Credit(ctx context.Context, userUID string, amount int) (*models.UserCredits, error) {
	args := m.Called(ctx, userUID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserCredits), args.Error(1)
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
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newService(users *UsersMock, billing *BillingMock, c *CacheMock) *Service {
	maker := jwt.NewJWTMaker("test-secret", time.Hour)
	return New(users, billing, c, maker, newNoopLogger())
}

func TestService_Register(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(u *UsersMock, b *BillingMock, c *CacheMock)
		wantUID    string
		wantErr    bool
	}{
		{
			name: "success with welcome bonus",
			setupMocks: func(u *UsersMock, b *BillingMock, c *CacheMock) {
				u.On("RegisterUser", mock.Anything, mock.MatchedBy(func(user models.User) bool {
					return user.Email == "ivan@example.com" &&
						user.Role == "user" &&
						user.PasswordHash != "" &&
						user.PasswordHash != "secret123"
				})).Return("uid-1", nil).Once()
				b.On("Credit", mock.Anything, "uid-1", welcomeBonus).
					Return(&models.UserCredits{UserUID: "uid-1", AvailableCredits: welcomeBonus}, nil).Once()
				c.On("Set", "user:profile:uid-1", mock.Anything, time.Duration(0)).Return(nil).Once()
			},
			wantUID: "uid-1",
		},
		{
			name: "duplicate user",
			setupMocks: func(u *UsersMock, _ *BillingMock, _ *CacheMock) {
				u.On("RegisterUser", mock.Anything, mock.Anything).
					Return("", errors.New("duplicate key")).Once()
			},
			wantErr: true,
		},
		{
			name: "bonus credit failure",
			setupMocks: func(u *UsersMock, b *BillingMock, _ *CacheMock) {
				u.On("RegisterUser", mock.Anything, mock.Anything).Return("uid-1", nil).Once()
				b.On("Credit", mock.Anything, "uid-1", welcomeBonus).
					Return(nil, errors.New("db down")).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(UsersMock)
			billing := new(BillingMock)
			c := new(CacheMock)
			tt.setupMocks(users, billing, c)
			svc := newService(users, billing, c)

			uid, err := svc.Register(context.Background(), "ivan@example.com", "ivan", "secret123")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantUID, uid)
			}
			users.AssertExpectations(t)
			billing.AssertExpectations(t)
			c.AssertExpectations(t)
		})
	}
}

func TestService_Login(t *testing.T) {
	hash, err := password.GetHash("secret123")
	require.NoError(t, err)
	user := &models.User{
		UID:          "uid-1",
		Username:     "ivan",
		Email:        "ivan@example.com",
		PasswordHash: hash,
		Role:         "user",
	}

	tests := []struct {
		name       string
		password   string
		setupMocks func(u *UsersMock)
		wantErr    error
	}{
		{
			name:     "success",
			password: "secret123",
			setupMocks: func(u *UsersMock) {
				u.On("GetUserByEmail", mock.Anything, "ivan@example.com").Return(user, nil).Once()
			},
		},
		{
			name:     "wrong password",
			password: "wrong",
			setupMocks: func(u *UsersMock) {
				u.On("GetUserByEmail", mock.Anything, "ivan@example.com").Return(user, nil).Once()
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:     "unknown email",
			password: "secret123",
			setupMocks: func(u *UsersMock) {
				u.On("GetUserByEmail", mock.Anything, "ivan@example.com").
					Return(nil, errors.New("not found")).Once()
			},
			wantErr: ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(UsersMock)
			tt.setupMocks(users)
			svc := newService(users, new(BillingMock), new(CacheMock))

			token, role, err := svc.Login(context.Background(), "ivan@example.com", tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.Equal(t, "user", role)

			// Выданный токен должен проходить валидацию.
			got, gotRole, valid, err := svc.ValidateToken(context.Background(), token)
			require.NoError(t, err)
			assert.True(t, valid)
			assert.Equal(t, "uid-1", got.UID)
			assert.Equal(t, "user", gotRole)
			users.AssertExpectations(t)
		})
	}
}

func TestService_Profile(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(u *UsersMock, c *CacheMock)
		want       *models.UserProfile
	}{
		{
			name: "cache hit",
			setupMocks: func(_ *UsersMock, c *CacheMock) {
				c.On("Get", "user:profile:uid-1", mock.Anything).
					Run(func(args mock.Arguments) {
						out := args.Get(1).(*models.UserProfile)
						*out = models.UserProfile{UID: "uid-1", Username: "ivan", Email: "ivan@example.com"}
					}).Return(true, nil).Once()
			},
			want: &models.UserProfile{UID: "uid-1", Username: "ivan", Email: "ivan@example.com"},
		},
		{
			name: "cache miss reads storage",
			setupMocks: func(u *UsersMock, c *CacheMock) {
				c.On("Get", "user:profile:uid-1", mock.Anything).Return(false, nil).Once()
				u.On("GetUser", mock.Anything, "uid-1").Return(&models.User{
					UID: "uid-1", Username: "ivan", Email: "ivan@example.com",
				}, nil).Once()
				c.On("Set", "user:profile:uid-1", mock.Anything, time.Duration(0)).Return(nil).Once()
			},
			want: &models.UserProfile{UID: "uid-1", Username: "ivan", Email: "ivan@example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(UsersMock)
			c := new(CacheMock)
			tt.setupMocks(users, c)
			svc := newService(users, new(BillingMock), c)

			got, err := svc.Profile(context.Background(), "uid-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			users.AssertExpectations(t)
			c.AssertExpectations(t)
		})
	}
}
