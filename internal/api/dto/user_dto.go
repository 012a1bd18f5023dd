package dto

import (
	"time"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/pkg/util/maskutil"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=30"`
	Nickname string `json:"nickname" validate:"required,max=8"`
	Email    string `json:"email" validate:"required,email"`
	Mobile   string `json:"mobile" validate:"required,mobile"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserRequest carries the editable profile fields; at least one is required.
type UpdateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Mobile   *string `json:"mobile" validate:"omitempty,mobile"`
	Nickname *string `json:"nickname" validate:"omitempty,min=1,max=8"`
}

// Changes converts the request into domain changes.
func (r UpdateUserRequest) Changes() domain.ProfileChanges {
	return domain.ProfileChanges{Email: r.Email, Mobile: r.Mobile, Nickname: r.Nickname}
}

// ChangePasswordRequest payload for a self-service password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// ResetPasswordRequest payload for an administrative reset.
type ResetPasswordRequest struct {
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
	Reason          string `json:"reason" validate:"omitempty,max=200"`
}

// RegisterResponse is returned after registration.
type RegisterResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	Email     string    `json:"email"`
	Mobile    string    `json:"mobile"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewRegisterResponse builds the response body.
func NewRegisterResponse(u *domain.User, token string, expiresAt time.Time) RegisterResponse {
	return RegisterResponse{
		ID:        u.ID,
		Username:  u.Username,
		Nickname:  u.Nickname,
		Email:     u.Email,
		Mobile:    maskutil.Mobile(u.Mobile),
		Role:      string(u.Role),
		Token:     token,
		ExpiresAt: expiresAt,
	}
}

// LoginResponse is returned after login.
type LoginResponse struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	Role      string    `json:"role"`
	IsAdmin   bool      `json:"isAdmin"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewLoginResponse builds the response body.
func NewLoginResponse(u *domain.User, token string, expiresAt time.Time) LoginResponse {
	return LoginResponse{
		UserID:    u.ID,
		Username:  u.Username,
		Nickname:  u.Nickname,
		Role:      string(u.Role),
		IsAdmin:   u.Role.IsAdmin(),
		Token:     token,
		ExpiresAt: expiresAt,
	}
}

// ProfileResponse describes an account to its owner.
type ProfileResponse struct {
	UserID    string     `json:"userId"`
	Username  string     `json:"username"`
	Nickname  string     `json:"nickname"`
	Email     string     `json:"email"`
	Mobile    string     `json:"mobile"`
	Role      string     `json:"role"`
	IsAdmin   bool       `json:"isAdmin"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// NewProfileResponse builds the response body. withUpdatedAt adds the
// modification time, as returned after an update.
func NewProfileResponse(u *domain.User, withUpdatedAt bool) ProfileResponse {
	resp := ProfileResponse{
		UserID:   u.ID,
		Username: u.Username,
		Nickname: u.Nickname,
		Email:    u.Email,
		Mobile:   maskutil.Mobile(u.Mobile),
		Role:     string(u.Role),
		IsAdmin:  u.Role.IsAdmin(),
	}
	if withUpdatedAt {
		ts := u.UpdatedAt
		resp.UpdatedAt = &ts
	}
	return resp
}

// AuditEntryResponse is one audit log line shown to super admins.
type AuditEntryResponse struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Operation  string         `json:"operationType"`
	OperatorID string         `json:"operatorId"`
	Role       string         `json:"operatorRole"`
	Status     string         `json:"status"`
	IPAddress  string         `json:"ipAddress"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// NewAuditEntries converts audit entries for output.
func NewAuditEntries(entries []*domain.AuditLog) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			ID:         e.ID,
			Action:     e.Action,
			Operation:  string(e.OperationType),
			OperatorID: e.OperatorID,
			Role:       string(e.OperatorRole),
			Status:     string(e.Status),
			IPAddress:  e.IPAddress,
			Details:    e.Details,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}
