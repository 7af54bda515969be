package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/aman-churiwal/secure-api/internal/security"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user with this email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrWeakPassword       = errors.New("password must be at least 12 characters")
)

const minPasswordLength = 12

type AuthService struct {
	users  UserRepository
	tokens *security.TokenManager
	hasher *security.PasswordHasher
	log    logrus.FieldLogger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(users UserRepository, tokens *security.TokenManager, hasher *security.PasswordHasher, log logrus.FieldLogger) *AuthService {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &AuthService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		log:    log.WithField("component", "auth"),
	}
}

// Creates a new user. Role defaults to user.
func (s *AuthService) Register(ctx context.Context, email, password, name, role string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	if role == "" {
		role = models.RoleUser
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID.String(), "role": role}).Info("User registered")

	return user, nil
}

// Burns one hash comparison for unknown emails so response time does not reveal which emails exist
func (s *AuthService) compareDummy(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("dummy-password-for-timing")
	})
	s.hasher.Verify(password, s.dummyHash)
}

// Authenticates a user and issues a token pair with a new refresh family
func (s *AuthService) Login(ctx context.Context, email, password string) (*security.TokenPair, *models.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		s.compareDummy(password)
		return nil, nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.tokens.GenerateTokenPair(user.ID.String(), user.Role, "")
	if err != nil {
		return nil, nil, err
	}

	return pair, user, nil
}

// Rotates a refresh token. The new pair stays in the same family and picks up the user's current role.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*security.TokenPair, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, security.ErrInvalidToken
	}

	return s.tokens.GenerateTokenPair(user.ID.String(), user.Role, claims.FamilyID)
}

func (s *AuthService) ValidateToken(token string) (*security.AccessClaims, error) {
	return s.tokens.VerifyAccessToken(token)
}

func (s *AuthService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}
