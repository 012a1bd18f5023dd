package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

const badCredentialsMessage = "invalid username or password"

// RegisterInput describes a self-service registration.
type RegisterInput struct {
	Username string
	Nickname string
	Email    string
	Mobile   string
	Password string
	Role     domain.Role
}

// AuthResult is a user together with a freshly issued token.
type AuthResult struct {
	User  *domain.User
	Token *auth.IssuedToken
}

// AuthService coordinates registration, login and token exchange.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
}

// AuthDependencies encapsulates requirements for auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Tokens     *auth.TokenManager
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
	}
}

// Register creates an account and returns a registration-purpose token.
// That token must be refreshed before it unlocks login-only operations.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta events.RequestMeta) (*AuthResult, error) {
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return nil, apperrors.NewValidationError("validation failed", []apperrors.FieldError{
			{Field: "role", Message: "must be one of user, admin"},
		})
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Username:     strings.TrimSpace(in.Username),
		Nickname:     in.Nickname,
		Email:        normalizeEmail(in.Email),
		Mobile:       in.Mobile,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapStoreError(err)
	}

	token, err := s.tokens.Issue(user.ID, user.Username, user.Role, domain.PurposeRegister)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventUserRegistered,
		Actor:    events.Actor{UserID: user.ID, Role: user.Role},
		TargetID: user.ID,
		Meta:     meta,
	})
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return &AuthResult{User: user, Token: token}, nil
}

// Login checks credentials and returns a login-purpose token. Unknown
// usernames and wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, username, password string, meta events.RequestMeta) (*AuthResult, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewUnauthorized(badCredentialsMessage)
	}
	if err != nil {
		return nil, mapStoreError(err)
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("password comparison failed", zap.String("user_id", user.ID), zap.Error(err))
		}
		s.publish(ctx, events.Event{
			Type:     events.EventUserLoggedIn,
			Actor:    events.Actor{UserID: user.ID, Role: user.Role},
			TargetID: user.ID,
			Meta:     meta,
			Status:   domain.AuditFailure,
		})
		return nil, apperrors.NewUnauthorized(badCredentialsMessage)
	}

	token, err := s.tokens.Issue(user.ID, user.Username, user.Role, domain.PurposeLogin)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventUserLoggedIn,
		Actor:    events.Actor{UserID: user.ID, Role: user.Role},
		TargetID: user.ID,
		Meta:     meta,
	})
	return &AuthResult{User: user, Token: token}, nil
}

// RefreshToken exchanges a valid token for a new login-purpose token.
func (s *AuthService) RefreshToken(ctx context.Context, token string) (*auth.IssuedToken, *auth.Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil, apperrors.NewUnauthorized("token is required")
	}
	issued, claims, err := s.tokens.Refresh(ctx, token)
	if err != nil {
		s.logger.Debug("refresh rejected", zap.Error(err))
		return nil, nil, mapTokenError(err)
	}
	return issued, claims, nil
}

// Logout revokes the caller's token when a denylist is configured and
// reports whether anything happened server-side.
func (s *AuthService) Logout(ctx context.Context, identity *auth.Identity, meta events.RequestMeta) (bool, error) {
	if identity == nil {
		return false, apperrors.NewUnauthorized("authentication required")
	}
	if !s.tokens.RevocationEnabled() {
		return false, nil
	}
	if err := s.tokens.Revoke(ctx, identity.Claims()); err != nil {
		return false, apperrors.NewInternalError(err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTokenRevoked,
		Actor:    events.Actor{UserID: identity.UserID, Role: identity.Role},
		TargetID: identity.UserID,
		Meta:     meta,
		Payload:  map[string]any{"token_id": identity.TokenID},
	})
	return true, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
