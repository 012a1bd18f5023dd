package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

const identityKey = "auth_identity"

// Identity is the verified caller attached to a single request.
type Identity struct {
	UserID      string
	DisplayName string
	Role        domain.Role
	Purpose     domain.TokenPurpose
	TokenID     string
	ExpiresAt   time.Time

	claims *Claims
}

// Claims returns the verified token claims the identity was derived from.
func (i *Identity) Claims() *Claims {
	return i.claims
}

// NewIdentity derives the request identity from verified claims.
func NewIdentity(claims *Claims) *Identity {
	id := &Identity{
		UserID:      claims.UserID(),
		DisplayName: claims.DisplayName,
		Role:        claims.Role,
		Purpose:     claims.Purpose,
		TokenID:     claims.ID,
		claims:      claims,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id
}

// AuthMiddleware validates bearer tokens and attaches the caller identity.
type AuthMiddleware struct {
	tokens *TokenManager
	logger *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, logger: logger}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if ctx.Err() != nil {
		return apperrors.NewUnauthorized("request cancelled")
	}

	token, err := BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}

	claims, err := m.tokens.Authenticate(ctx, token)
	if err != nil {
		m.logger.Debug("token rejected", zap.String("reason", failureKind(err)), zap.Error(err))
		return apperrors.NewUnauthorized("invalid token")
	}

	// the denylist lookup may have raced a cancellation
	if ctx.Err() != nil {
		return apperrors.NewUnauthorized("request cancelled")
	}

	c.Locals(identityKey, NewIdentity(claims))
	return c.Next()
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return token, nil
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (*Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*Identity)
	return identity, ok && identity != nil
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrSignatureInvalid):
		return "signature"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	default:
		return "lookup"
	}
}
