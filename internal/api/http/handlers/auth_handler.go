package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/service"
)

// AuthHandler exposes token lifecycle endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Refresh handles POST /api/auth/refresh-token. The token comes from the
// body, or from the bearer header when the body has none.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errInvalidBody
		}
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		bearer, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return err
		}
		token = bearer
	}

	issued, _, err := h.auth.RefreshToken(c.UserContext(), token)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.TokenResponse{
		Token:     issued.Token,
		TokenType: string(issued.Purpose),
		ExpiresAt: issued.ExpiresAt,
	}))
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	revoked, err := h.auth.Logout(c.UserContext(), id, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.LogoutResponse{Revoked: revoked}))
}
