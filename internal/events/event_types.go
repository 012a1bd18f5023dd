package events

import (
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered     EventType = "user_registered"
	EventUserLoggedIn       EventType = "user_logged_in"
	EventProfileUpdated     EventType = "profile_updated"
	EventPasswordChanged    EventType = "password_changed"
	EventAdminPasswordReset EventType = "admin_password_reset"
	EventTokenRevoked       EventType = "token_revoked"
)

// AllEventTypes lists every type published by the services.
var AllEventTypes = []EventType{
	EventUserRegistered,
	EventUserLoggedIn,
	EventProfileUpdated,
	EventPasswordChanged,
	EventAdminPasswordReset,
	EventTokenRevoked,
}

// Actor is the account that performed the operation.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// RequestMeta carries client details captured at the HTTP boundary.
type RequestMeta struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string             `json:"id"`
	Type      EventType          `json:"type"`
	Actor     Actor              `json:"actor"`
	TargetID  string             `json:"target_id,omitempty"`
	Meta      RequestMeta        `json:"meta"`
	Status    domain.AuditStatus `json:"status"`
	Timestamp time.Time          `json:"timestamp"`
	Payload   map[string]any     `json:"payload,omitempty"`
}

// ProfileUpdatedPayload builds the payload of EventProfileUpdated.
func ProfileUpdatedPayload(fields []string) map[string]any {
	return map[string]any{"changed_fields": fields}
}

// AdminPasswordResetPayload builds the payload of EventAdminPasswordReset.
func AdminPasswordResetPayload(reason, failure string) map[string]any {
	p := map[string]any{"reason": reason}
	if failure != "" {
		p["error"] = failure
	}
	return p
}
