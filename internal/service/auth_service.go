package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
	"github.com/spec-kit/helpdesk/pkg/validation"
)

const invalidCredentials = "invalid credentials"

// RegisterInput is the self-service signup payload.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginInput carries credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	store      repository.Store
	tokenMgr   *auth.TokenManager
	validate   *validation.Validator
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Store     repository.Store
	Tokens    *auth.TokenManager
	Validator *validation.Validator
	Logger    *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	tokens := deps.Tokens
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	}
	v := deps.Validator
	if v == nil {
		v = validation.New()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		store:      deps.Store,
		tokenMgr:   tokens,
		validate:   v,
		logger:     logger,
		bcryptCost: cfg.Auth.BcryptCost,
		now:        time.Now,
	}
}

// Register creates a user-role account and signs it in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	hash, err := hashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, mapRepoError(err, "user")
	}
	return s.issue(user)
}

// Login verifies credentials. Unknown emails and wrong passwords fail identically.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	input.Email = normalizeEmail(input.Email)
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	user, err := s.store.Users().GetByEmail(ctx, input.Email)
	if errors.Is(err, repository.ErrNotFound) {
		_ = auth.ComparePassword(s.dummyPasswordHash(), input.Password)
		return nil, apperrors.NewUnauthorized(invalidCredentials)
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, input.Password); err != nil {
		return nil, apperrors.NewUnauthorized(invalidCredentials)
	}
	return s.issue(user)
}

// Me returns the stored account behind identity.
func (s *AuthService) Me(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, identity.ID)
	if err != nil {
		return nil, mapRepoError(err, "user")
	}
	return user, nil
}

// EnsureDefaultAccounts creates the configured agent and admin when their email is unused.
func (s *AuthService) EnsureDefaultAccounts(ctx context.Context, seed config.SeedConfig) error {
	accounts := []struct {
		name, email, password string
		role                  domain.Role
	}{
		{"Agent", seed.AgentEmail, seed.AgentPassword, domain.RoleAgent},
		{"Admin", seed.AdminEmail, seed.AdminPassword, domain.RoleAdmin},
	}
	for _, acc := range accounts {
		email := normalizeEmail(acc.email)
		if email == "" || acc.password == "" {
			continue
		}
		_, err := s.store.Users().GetByEmail(ctx, email)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		hash, err := auth.HashPassword(acc.password, s.bcryptCost)
		if err != nil {
			return err
		}
		user := &domain.User{
			Name:         acc.name,
			Email:        email,
			PasswordHash: hash,
			Role:         acc.role,
			CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
		}
		if err := s.store.Users().Create(ctx, user); err != nil && !errors.Is(err, repository.ErrDuplicateEmail) {
			return err
		}
		s.logger.Info("default account created", zap.String("email", email), zap.String("role", string(acc.role)))
	}
	return nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = auth.HashPassword("helpdesk-timing-equalizer", s.bcryptCost)
	})
	return s.dummyHash
}

// hashPassword reports an over-long password as a validation failure.
func hashPassword(password string, cost int) (string, error) {
	hash, err := auth.HashPassword(password, cost)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", apperrors.NewValidationError(fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
	}
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return hash, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// mapRepoError converts repository sentinels into domain errors.
func mapRepoError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource)
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperrors.NewConflict("email already registered")
	default:
		return apperrors.MapError(err)
	}
}
