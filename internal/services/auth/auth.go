// Package auth содержит логику бизнес-уровня для работы с пользователями
// и аутентификацией.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sofikovaleva/risk-scoring-service/internal/cache"
	"github.com/sofikovaleva/risk-scoring-service/internal/lib/jwt"
	"github.com/sofikovaleva/risk-scoring-service/internal/lib/password"
	"github.com/sofikovaleva/risk-scoring-service/internal/lib/sl"
	"github.com/sofikovaleva/risk-scoring-service/internal/models"
)

// Приветственный бонус новому пользователю в кредитах.
const welcomeBonus = 10

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// RegisterUser сохраняет нового пользователя и возвращает его UID.
	RegisterUser(ctx context.Context, user models.User) (string, error)
	// GetUserByEmail возвращает пользователя по email или ошибку, если не найден.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUser возвращает пользователя по UID.
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// Billing описывает операции биллинга, нужные при регистрации.
type Billing interface {
	// Credit пополняет баланс пользователя.
	Credit(ctx context.Context, userUID string, amount int) (*models.UserCredits, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service отвечает за регистрацию, авторизацию и валидацию JWT.
type Service struct {
	users    UserRepository
	billing  Billing
	cache    Cache
	jwtMaker jwt.Maker
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(users UserRepository, billing Billing, cache Cache, jwtMaker jwt.Maker, log *slog.Logger) *Service {
	return &Service{
		users:    users,
		billing:  billing,
		cache:    cache,
		jwtMaker: jwtMaker,
		log:      log,
	}
}

// Register создает нового пользователя с хэшированием пароля, дефолтной
// ролью "user" и приветственным бонусом на балансе.
func (s *Service) Register(ctx context.Context, email, username, rawPassword string) (string, error) {
	const op = "auth.Register"

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	user := models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hashed,
		Role:         "user", // дефолтная роль при регистрации
	}
	userUID, err := s.users.RegisterUser(ctx, user)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("registered new user", slog.String("user_uid", userUID))

	if _, err := s.billing.Credit(ctx, userUID, welcomeBonus); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	profile := models.UserProfile{UID: userUID, Username: username, Email: email}
	if err := s.cache.Set(cache.ProfileKey(userUID), profile, cache.NoExpiration); err != nil {
		s.log.Warn("failed to cache profile", sl.Err(err))
	}
	return userUID, nil
}

// Login проверяет пароль пользователя и генерирует JWT.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (token, role string, err error) {
	const op = "auth.Login"

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	token, err = s.jwtMaker.GenerateToken(user.Username, user.Role, user.UID)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return token, user.Role, nil
}

// ValidateToken проверяет JWT и возвращает информацию о пользователе,
// роль и признак валидности.
func (s *Service) ValidateToken(_ context.Context, token string) (*models.User, string, bool, error) {
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, "", false, err
	}
	user := &models.User{
		Username: claims.Username,
		Role:     claims.Role,
		UID:      claims.UserUID,
	}
	return user, claims.Role, true, nil
}

// Profile возвращает профиль пользователя, используя кеш или хранилище.
func (s *Service) Profile(ctx context.Context, userUID string) (*models.UserProfile, error) {
	const op = "auth.Profile"

	var cached models.UserProfile
	found, err := s.cache.Get(cache.ProfileKey(userUID), &cached)
	if err != nil {
		s.log.Warn("failed to read profile cache", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	profile := &models.UserProfile{UID: user.UID, Username: user.Username, Email: user.Email}

	if err := s.cache.Set(cache.ProfileKey(userUID), profile, cache.NoExpiration); err != nil {
		s.log.Warn("failed to cache profile", sl.Err(err))
	}
	return profile, nil
}
