package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/api/validation"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/service"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// UsersHandler exposes account endpoints.
type UsersHandler struct {
	auth      *service.AuthService
	users     *service.UserService
	validator *validation.Validator
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, userService *service.UserService, v *validation.Validator) *UsersHandler {
	return &UsersHandler{auth: authService, users: userService, validator: v}
}

// Register handles POST /api/users/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}

	result, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Username: req.Username,
		Nickname: req.Nickname,
		Email:    req.Email,
		Mobile:   req.Mobile,
		Password: req.Password,
		Role:     domain.Role(req.Role),
	}, requestMeta(c))
	if err != nil {
		return err
	}

	return c.JSON(dto.OK(dto.NewRegisterResponse(result.User, result.Token.Token, result.Token.ExpiresAt)))
}

// Login handles POST /api/users/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}

	result, err := h.auth.Login(c.UserContext(), req.Username, req.Password, requestMeta(c))
	if err != nil {
		return err
	}

	return c.JSON(dto.OK(dto.NewLoginResponse(result.User, result.Token.Token, result.Token.ExpiresAt)))
}

// Profile handles GET /api/users/profile.
func (h *UsersHandler) Profile(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	user, err := h.users.GetProfile(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewProfileResponse(user, false)))
}

// Update handles PUT /api/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req dto.UpdateUserRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}

	user, err := h.users.UpdateProfile(c.UserContext(), id, c.Params("id"), req.Changes(), requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewProfileResponse(user, true)))
}

// ChangePassword handles PUT /api/users/change-password.
func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}

	if err := h.users.ChangePassword(c.UserContext(), id, req.OldPassword, req.NewPassword, requestMeta(c)); err != nil {
		return err
	}
	return c.JSON(dto.Message("password updated"))
}

// ResetPassword handles PUT /api/users/admin/:id/reset-password.
func (h *UsersHandler) ResetPassword(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req dto.ResetPasswordRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}

	err = h.users.ResetPassword(c.UserContext(), id, service.ResetPasswordInput{
		TargetID:    c.Params("id"),
		NewPassword: req.NewPassword,
		Reason:      req.Reason,
	}, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.Message("password reset"))
}

// AuditLogs handles GET /api/users/admin/:id/audit-logs.
func (h *UsersHandler) AuditLogs(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	limit := c.QueryInt("limit", defaultAuditLimit)
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	entries, err := h.users.AuditHistory(c.UserContext(), id, c.Params("id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewAuditEntries(entries)))
}
