package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/account-service/internal/domain"
)

// Verification failures. The HTTP layer collapses all of them into one
// generic "invalid token" response; they stay distinct for logs and tests.
var (
	ErrSigningKey       = errors.New("signing key unavailable")
	ErrMalformedToken   = errors.New("malformed token")
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenRevoked     = errors.New("token revoked")
)

// Claims describes the JWT payload.
type Claims struct {
	DisplayName string              `json:"username,omitempty"`
	Role        domain.Role         `json:"role"`
	Purpose     domain.TokenPurpose `json:"tokenType"`
	jwt.RegisteredClaims
}

// UserID returns the subject identity.
func (c *Claims) UserID() string {
	return c.Subject
}

// IssuedToken is a freshly signed token with its metadata.
type IssuedToken struct {
	Token     string
	ID        string
	Purpose   domain.TokenPurpose
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Denylist is consulted on authentication when revocation before expiry is enabled.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenOption customizes a TokenManager.
type TokenOption func(*TokenManager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) TokenOption {
	return func(tm *TokenManager) { tm.now = now }
}

// WithDenylist enables revocation lookups.
func WithDenylist(d Denylist) TokenOption {
	return func(tm *TokenManager) { tm.denylist = d }
}

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret      []byte
	registerTTL time.Duration
	loginTTL    time.Duration
	now         func() time.Time
	denylist    Denylist
}

// NewTokenManager builds a new manager. Non-positive lifetimes fall back to
// 24h for registration tokens and 7d for login tokens.
func NewTokenManager(secret string, registerTTL, loginTTL time.Duration, opts ...TokenOption) *TokenManager {
	if registerTTL <= 0 {
		registerTTL = 24 * time.Hour
	}
	if loginTTL <= 0 {
		loginTTL = 7 * 24 * time.Hour
	}
	tm := &TokenManager{
		secret:      []byte(secret),
		registerTTL: registerTTL,
		loginTTL:    loginTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// TTL returns the lifetime applied to tokens of purpose.
func (tm *TokenManager) TTL(purpose domain.TokenPurpose) time.Duration {
	if purpose == domain.PurposeRegister {
		return tm.registerTTL
	}
	return tm.loginTTL
}

// Issue builds and signs a token for the subject.
func (tm *TokenManager) Issue(userID, displayName string, role domain.Role, purpose domain.TokenPurpose) (*IssuedToken, error) {
	if len(tm.secret) == 0 {
		return nil, ErrSigningKey
	}
	if !role.Valid() || !purpose.Valid() {
		return nil, fmt.Errorf("issue token: invalid role %q or purpose %q", role, purpose)
	}

	// NumericDate has second precision; truncating keeps issued claims and
	// verified claims identical.
	issuedAt := tm.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(tm.TTL(purpose))
	tokenID := uuid.NewString()

	claims := &Claims{
		DisplayName: displayName,
		Role:        role,
		Purpose:     purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningKey, err)
	}
	return &IssuedToken{
		Token:     signed,
		ID:        tokenID,
		Purpose:   purpose,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify validates signature and expiry and returns the claims. It performs no I/O.
func (tm *TokenManager) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrMalformedToken
		}
		return tm.secret, nil
	},
		jwt.WithTimeFunc(tm.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if claims.Subject == "" || !claims.Role.Valid() || !claims.Purpose.Valid() {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

// Authenticate verifies the token and consults the denylist when one is configured.
func (tm *TokenManager) Authenticate(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := tm.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	if tm.denylist == nil || claims.ID == "" {
		return claims, nil
	}
	revoked, err := tm.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("denylist lookup: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Refresh exchanges a valid token for a new login-purpose token with the same identity.
func (tm *TokenManager) Refresh(ctx context.Context, oldToken string) (*IssuedToken, *Claims, error) {
	claims, err := tm.Authenticate(ctx, oldToken)
	if err != nil {
		return nil, nil, err
	}
	issued, err := tm.Issue(claims.UserID(), claims.DisplayName, claims.Role, domain.PurposeLogin)
	if err != nil {
		return nil, nil, err
	}
	return issued, claims, nil
}

// Revoke denylists the token until its natural expiry. Without a denylist it is a no-op.
func (tm *TokenManager) Revoke(ctx context.Context, claims *Claims) error {
	if tm.denylist == nil || claims == nil || claims.ID == "" {
		return nil
	}
	until := tm.now()
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return tm.denylist.Revoke(ctx, claims.ID, until)
}

// RevocationEnabled reports whether logout has a server-side effect.
func (tm *TokenManager) RevocationEnabled() bool {
	return tm.denylist != nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	default:
		return ErrMalformedToken
	}
}
