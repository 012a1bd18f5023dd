package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/spec-kit/account-service/internal/domain"
)

// MemoryUserRepository keeps users in process memory. It enforces the same
// uniqueness rules as the MongoDB store and hands out ObjectID-shaped ids.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	now   func() time.Time
}

// NewMemoryUserRepository returns an empty store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*domain.User), now: time.Now}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, field := range UniqueFields {
		if r.holderLocked(field, fieldValue(user, field), "") != "" {
			return &DuplicateKeyError{Field: field}
		}
	}

	now := r.now().UTC().Truncate(time.Millisecond)
	stored := *user
	stored.ID = primitive.NewObjectID().Hex()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.users[stored.ID] = &stored

	user.ID = stored.ID
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !primitive.IsValidObjectID(id) {
		return nil, ErrInvalidID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(u), nil
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findFirst(ctx, func(u *domain.User) bool { return u.Username == username })
}

func (r *MemoryUserRepository) FindOneByRole(ctx context.Context, role domain.Role) (*domain.User, error) {
	return r.findFirst(ctx, func(u *domain.User) bool { return u.Role == role })
}

func (r *MemoryUserRepository) ExistsByField(ctx context.Context, field, value, excludeID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !validField(field) {
		return false, fmt.Errorf("exists by field: unsupported field %q", field)
	}
	if excludeID != "" && !primitive.IsValidObjectID(excludeID) {
		return false, ErrInvalidID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.holderLocked(field, value, excludeID) != "", nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, id string, changes domain.ProfileChanges) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !primitive.IsValidObjectID(id) {
		return nil, ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if changes.Empty() {
		return clone(u), nil
	}

	updated := *u
	if changes.Email != nil {
		updated.Email = *changes.Email
	}
	if changes.Mobile != nil {
		updated.Mobile = *changes.Mobile
	}
	if changes.Nickname != nil {
		updated.Nickname = *changes.Nickname
	}
	for _, field := range []string{FieldEmail, FieldMobile, FieldNickname} {
		if r.holderLocked(field, fieldValue(&updated, field), id) != "" {
			return nil, &DuplicateKeyError{Field: field}
		}
	}
	updated.UpdatedAt = r.now().UTC().Truncate(time.Millisecond)
	r.users[id] = &updated
	return clone(&updated), nil
}

func (r *MemoryUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !primitive.IsValidObjectID(id) {
		return ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = r.now().UTC().Truncate(time.Millisecond)
	return nil
}

// EnsureIndexes is a no-op; uniqueness is checked on every write.
func (r *MemoryUserRepository) EnsureIndexes(context.Context) error {
	return nil
}

func (r *MemoryUserRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *MemoryUserRepository) findFirst(ctx context.Context, match func(*domain.User) bool) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *domain.User
	for _, u := range r.users {
		if !match(u) {
			continue
		}
		// oldest first, like a natural-order scan
		if found == nil || u.ID < found.ID {
			found = u
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return clone(found), nil
}

func (r *MemoryUserRepository) holderLocked(field, value, excludeID string) string {
	for id, u := range r.users {
		if id != excludeID && fieldValue(u, field) == value {
			return id
		}
	}
	return ""
}

func fieldValue(u *domain.User, field string) string {
	switch field {
	case FieldUsername:
		return u.Username
	case FieldNickname:
		return u.Nickname
	case FieldEmail:
		return u.Email
	case FieldMobile:
		return u.Mobile
	}
	return ""
}

func clone(u *domain.User) *domain.User {
	c := *u
	return &c
}
