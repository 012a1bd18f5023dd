package dto

import "time"

// RefreshTokenRequest carries the token to exchange. The bearer header is
// used when the body omits it.
type RefreshTokenRequest struct {
	Token string `json:"token"`
}

// TokenResponse describes a newly issued token.
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LogoutResponse reports whether the token was revoked server-side.
type LogoutResponse struct {
	Revoked bool `json:"revoked"`
}
