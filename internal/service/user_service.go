package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// ResetPasswordInput describes an administrative password reset.
type ResetPasswordInput struct {
	TargetID    string
	NewPassword string
	Reason      string
}

// UserService handles profile and password workflows.
type UserService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	audit      *AuditService
	logger     *zap.Logger
	bcryptCost int
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
	Audit      *AuditService
	Logger     *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(cfg config.AuthConfig, deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		audit:      deps.Audit,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
	}
}

// GetProfile returns the caller's own record.
func (s *UserService) GetProfile(ctx context.Context, identity *auth.Identity) (*domain.User, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return user, nil
}

// UpdateProfile applies changes to the caller's own account. Ownership is
// checked here on every call regardless of what the route already enforced.
func (s *UserService) UpdateProfile(ctx context.Context, identity *auth.Identity, targetID string, changes domain.ProfileChanges, meta events.RequestMeta) (*domain.User, error) {
	if err := auth.CheckSelf(identity, targetID); err != nil {
		return nil, err
	}
	if changes.Empty() {
		return nil, apperrors.NewValidationError("no fields to update", nil)
	}

	current, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	if changes.Email != nil {
		email := normalizeEmail(*changes.Email)
		changes.Email = &email
	}
	changed, fields := diffProfile(current, changes)
	if changed.Empty() {
		return current, nil
	}

	// email and mobile conflicts are reported before the write so the
	// message names the field; the unique index still guards the race
	for _, check := range []struct {
		field string
		value *string
	}{
		{repository.FieldEmail, changed.Email},
		{repository.FieldMobile, changed.Mobile},
	} {
		if check.value == nil {
			continue
		}
		exists, err := s.users.ExistsByField(ctx, check.field, *check.value, targetID)
		if err != nil {
			return nil, mapStoreError(err)
		}
		if exists {
			return nil, apperrors.NewConflict(check.field, fmt.Sprintf("%s is already in use", check.field))
		}
	}

	updated, err := s.users.Update(ctx, targetID, changed)
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventProfileUpdated,
		Actor:    events.Actor{UserID: identity.UserID, Role: identity.Role},
		TargetID: targetID,
		Meta:     meta,
		Payload:  events.ProfileUpdatedPayload(fields),
	})
	return updated, nil
}

// ChangePassword verifies the current password before storing the new one.
func (s *UserService) ChangePassword(ctx context.Context, identity *auth.Identity, oldPassword, newPassword string, meta events.RequestMeta) error {
	if identity == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		return mapStoreError(err)
	}

	if err := auth.ComparePassword(user.PasswordHash, oldPassword); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			return apperrors.NewInternalError(err)
		}
		s.publish(ctx, events.Event{
			Type:     events.EventPasswordChanged,
			Actor:    events.Actor{UserID: identity.UserID, Role: identity.Role},
			TargetID: user.ID,
			Meta:     meta,
			Status:   domain.AuditFailure,
		})
		return apperrors.NewUnauthorized("old password is incorrect")
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return mapStoreError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventPasswordChanged,
		Actor:    events.Actor{UserID: identity.UserID, Role: identity.Role},
		TargetID: user.ID,
		Meta:     meta,
	})
	return nil
}

// ResetPassword lets a super admin set another account's password. Super
// admin accounts cannot be reset this way. Every attempt is audited.
func (s *UserService) ResetPassword(ctx context.Context, identity *auth.Identity, in ResetPasswordInput, meta events.RequestMeta) error {
	if err := auth.CheckRole(identity, domain.RoleSuperAdmin); err != nil {
		return err
	}

	err := s.resetPassword(ctx, in)

	event := events.Event{
		Type:     events.EventAdminPasswordReset,
		Actor:    events.Actor{UserID: identity.UserID, Role: identity.Role},
		TargetID: in.TargetID,
		Meta:     meta,
		Status:   domain.AuditSuccess,
		Payload:  events.AdminPasswordResetPayload(in.Reason, ""),
	}
	if err != nil {
		event.Status = domain.AuditFailure
		event.Payload = events.AdminPasswordResetPayload(in.Reason, err.Error())
	}
	s.publish(ctx, event)

	if err == nil {
		s.logger.Info("password reset by super admin",
			zap.String("operator_id", identity.UserID),
			zap.String("target_id", in.TargetID))
	}
	return err
}

func (s *UserService) resetPassword(ctx context.Context, in ResetPasswordInput) error {
	target, err := s.users.GetByID(ctx, in.TargetID)
	if err != nil {
		return mapStoreError(err)
	}
	if target.Role == domain.RoleSuperAdmin {
		return apperrors.NewForbidden("super admin passwords cannot be reset")
	}

	hash, err := auth.HashPassword(in.NewPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return mapStoreError(s.users.UpdatePassword(ctx, target.ID, hash))
}

// AuditHistory returns recent audit entries about a user.
func (s *UserService) AuditHistory(ctx context.Context, identity *auth.Identity, targetID string, limit int) ([]*domain.AuditLog, error) {
	if err := auth.CheckRole(identity, domain.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, mapStoreError(err)
	}
	if s.audit == nil {
		return []*domain.AuditLog{}, nil
	}
	entries, err := s.audit.History(ctx, targetID, limit)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entries, nil
}

// SuperAdminSeed describes the bootstrap super admin account.
type SuperAdminSeed struct {
	Username string
	Nickname string
	Email    string
	Mobile   string
	Password string
}

// EnsureSuperAdmin creates the super admin unless one already exists. It
// returns the existing or created account and whether it was created.
func (s *UserService) EnsureSuperAdmin(ctx context.Context, seed SuperAdminSeed) (*domain.User, bool, error) {
	existing, err := s.users.FindOneByRole(ctx, domain.RoleSuperAdmin)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}
	if len(seed.Password) < 6 {
		return nil, false, errors.New("super admin password must be at least 6 characters")
	}

	hash, err := auth.HashPassword(seed.Password, s.bcryptCost)
	if err != nil {
		return nil, false, err
	}
	user := &domain.User{
		Username:     seed.Username,
		Nickname:     seed.Nickname,
		Email:        normalizeEmail(seed.Email),
		Mobile:       seed.Mobile,
		PasswordHash: hash,
		Role:         domain.RoleSuperAdmin,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, false, err
	}

	s.publish(ctx, events.Event{
		Type:     events.EventUserRegistered,
		Actor:    events.Actor{UserID: user.ID, Role: domain.RoleSuperAdmin},
		TargetID: user.ID,
		Meta:     events.RequestMeta{IPAddress: "local", UserAgent: "create-superadmin"},
		Payload:  map[string]any{"source": "seed"},
	})
	return user, true, nil
}

func (s *UserService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// diffProfile keeps only the fields whose value actually changes.
func diffProfile(current *domain.User, changes domain.ProfileChanges) (domain.ProfileChanges, []string) {
	var (
		out    domain.ProfileChanges
		fields []string
	)
	if changes.Email != nil && *changes.Email != current.Email {
		out.Email = changes.Email
		fields = append(fields, repository.FieldEmail)
	}
	if changes.Mobile != nil && *changes.Mobile != current.Mobile {
		out.Mobile = changes.Mobile
		fields = append(fields, repository.FieldMobile)
	}
	if changes.Nickname != nil && *changes.Nickname != current.Nickname {
		out.Nickname = changes.Nickname
		fields = append(fields, repository.FieldNickname)
	}
	return out, fields
}
