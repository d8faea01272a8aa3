package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/storage"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
	"github.com/spec-kit/helpdesk/pkg/validation"
)

// UserService implements administrative account management.
type UserService struct {
	store      repository.Store
	files      storage.FileStorage
	validate   *validation.Validator
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	Store     repository.Store
	Files     storage.FileStorage
	Validator *validation.Validator
	Logger    *zap.Logger
}

// CreateUserInput is an admin-created account. Role defaults to user.
type CreateUserInput struct {
	Name     string      `json:"name" validate:"required,max=255"`
	Email    string      `json:"email" validate:"required,email,max=255"`
	Password string      `json:"password" validate:"required,max=72"`
	Role     domain.Role `json:"role" validate:"omitempty,oneof=user agent admin"`
}

// UpdateUserInput is a partial update. Nil or blank fields are left unchanged.
type UpdateUserInput struct {
	Name     *string      `json:"name" validate:"omitempty,max=255"`
	Email    *string      `json:"email" validate:"omitempty,email,max=255"`
	Password *string      `json:"password" validate:"omitempty,max=72"`
	Role     *domain.Role `json:"role" validate:"omitempty,oneof=user agent admin"`
}

// NewUserService constructs the service.
func NewUserService(cfg config.Config, deps UserDependencies) *UserService {
	v := deps.Validator
	if v == nil {
		v = validation.New()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		store:      deps.Store,
		files:      deps.Files,
		validate:   v,
		logger:     logger,
		bcryptCost: cfg.Auth.BcryptCost,
		now:        time.Now,
	}
}

func requireAdmin(actor domain.Identity) error {
	if !actor.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// ListUsers returns every account, newest first.
func (s *UserService) ListUsers(ctx context.Context, actor domain.Identity) ([]domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// CreateUser adds an account with any role.
func (s *UserService) CreateUser(ctx context.Context, actor domain.Identity, input CreateUserInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if input.Role == "" {
		input.Role = domain.RoleUser
	}
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
		Role:         input.Role,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, mapRepoError(err, "user")
	}
	s.logger.Info("user created", zap.Int64("user_id", user.ID), zap.Int64("by", actor.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// UpdateUser applies the set fields. A new password is rehashed.
func (s *UserService) UpdateUser(ctx context.Context, actor domain.Identity, userID int64, input UpdateUserInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	input.Name = trimmedOrNil(input.Name)
	input.Password = nonEmptyOrNil(input.Password)
	if input.Email = trimmedOrNil(input.Email); input.Email != nil {
		normalized := strings.ToLower(*input.Email)
		input.Email = &normalized
	}
	if input.Role != nil && strings.TrimSpace(string(*input.Role)) == "" {
		input.Role = nil
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	changes := repository.UserChanges{
		Name:  input.Name,
		Email: input.Email,
		Role:  input.Role,
	}
	if input.Password != nil {
		hash, err := hashPassword(*input.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		changes.PasswordHash = &hash
	}
	if changes.Empty() {
		return nil, apperrors.NewValidationError("no fields to update")
	}

	user, err := s.store.Users().Update(ctx, userID, changes)
	if err != nil {
		return nil, mapRepoError(err, "user")
	}
	return user, nil
}

// DeleteUser removes an account together with its tickets, comments and
// uploaded files. Files go only after the rows are gone.
func (s *UserService) DeleteUser(ctx context.Context, actor domain.Identity, userID int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	var orphaned []domain.Attachment
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		attachments, err := tx.Attachments().ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := tx.Users().Delete(ctx, userID); err != nil {
			return err
		}
		orphaned = attachments
		return nil
	})
	if err != nil {
		return mapRepoError(err, "user")
	}
	s.removeAttachmentFiles(orphaned)
	s.logger.Info("user deleted",
		zap.Int64("user_id", userID),
		zap.Int64("by", actor.ID),
		zap.Int("files_removed", len(orphaned)))
	return nil
}

func (s *UserService) removeAttachmentFiles(attachments []domain.Attachment) {
	if s.files == nil {
		return
	}
	for _, a := range attachments {
		name := strings.TrimPrefix(a.Path, storage.PublicPrefix)
		if err := s.files.Delete(name); err != nil {
			s.logger.Warn("remove attachment file", zap.String("file", name), zap.Error(err))
		}
	}
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func nonEmptyOrNil(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}
