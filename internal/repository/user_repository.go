package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/account-service/internal/domain"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidID is returned for ids the store cannot address.
	ErrInvalidID = errors.New("invalid user id")
)

// Unique user fields.
const (
	FieldUsername = "username"
	FieldNickname = "nickname"
	FieldEmail    = "email"
	FieldMobile   = "mobile"
)

// UniqueFields lists every field carrying a unique index.
var UniqueFields = []string{FieldUsername, FieldNickname, FieldEmail, FieldMobile}

// DuplicateKeyError reports a uniqueness violation on Field.
type DuplicateKeyError struct {
	Field string
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	if e.Field == "" {
		return "duplicate key"
	}
	return fmt.Sprintf("duplicate %s", e.Field)
}

func (e *DuplicateKeyError) Unwrap() error {
	return e.Err
}

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	FindOneByRole(ctx context.Context, role domain.Role) (*domain.User, error)
	// ExistsByField reports whether another user, not excludeID, holds value.
	ExistsByField(ctx context.Context, field, value, excludeID string) (bool, error)
	// Update writes only the non-nil fields of changes and returns the stored user.
	Update(ctx context.Context, id string, changes domain.ProfileChanges) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	EnsureIndexes(ctx context.Context) error
	Ping(ctx context.Context) error
}

func validField(field string) bool {
	for _, f := range UniqueFields {
		if f == field {
			return true
		}
	}
	return false
}
