package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"rental-backend/models"
	"rental-backend/utils"
)

const (
	authTokenPrefix = "auth:token:"
	authTokenTTL    = 7 * 24 * time.Hour
)

// AuthService is the thin identity layer the booking and listing
// operations need: who is calling. Sessions are opaque hex tokens kept in
// Redis with a TTL.
type AuthService struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewAuthService(db *gorm.DB, rdb *redis.Client) *AuthService {
	return &AuthService{DB: db, Redis: rdb}
}

// Register creates a user with a bcrypt-hashed password.
func (s *AuthService) Register(fullName, email, password, role string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrValidation)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	switch role {
	case "":
		role = models.RoleTenant
	case models.RoleTenant, models.RoleLandlord:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		FullName: strings.TrimSpace(fullName),
		Email:    email,
		Password: string(hash),
		Role:     role,
	}
	if err := s.DB.Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, fmt.Errorf("%w: email already registered", ErrValidation)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login checks credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, fmt.Errorf("%w: invalid credentials", ErrForbidden)
		}
		return "", nil, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return "", nil, fmt.Errorf("%w: invalid credentials", ErrForbidden)
	}

	token, err := utils.GenerateSecureToken(32)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	if err := s.Redis.Set(ctx, authTokenPrefix+token, user.ID, authTokenTTL).Err(); err != nil {
		return "", nil, fmt.Errorf("store session: %w", err)
	}
	return token, &user, nil
}

// UserFromToken resolves a bearer token to its user, or ErrForbidden.
func (s *AuthService) UserFromToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrForbidden)
	}

	id, err := s.Redis.Get(ctx, authTokenPrefix+token).Uint64()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: invalid or expired token", ErrForbidden)
	}
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}

	var user models.User
	if err := s.DB.First(&user, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invalid or expired token", ErrForbidden)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// Logout revokes a session token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.Redis.Del(ctx, authTokenPrefix+token).Err()
}
