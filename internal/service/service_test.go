package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, e events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) ofType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	repo       *repository.MemoryUserRepository
	tokens     *auth.TokenManager
	dispatcher *recordingDispatcher
	auth       *AuthService
	users      *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.AuthConfig{BcryptCost: bcrypt.MinCost}
	f := &fixture{
		repo:       repository.NewMemoryUserRepository(),
		tokens:     auth.NewTokenManager("test-secret", 24*time.Hour, 7*24*time.Hour),
		dispatcher: &recordingDispatcher{},
	}
	f.auth = NewAuthService(cfg, AuthDependencies{UserRepo: f.repo, Tokens: f.tokens, Dispatcher: f.dispatcher})
	f.users = NewUserService(cfg, UserDependencies{UserRepo: f.repo, Dispatcher: f.dispatcher})
	return f
}

func (f *fixture) register(t *testing.T, suffix string, role domain.Role) *AuthResult {
	t.Helper()
	res, err := f.auth.Register(context.Background(), RegisterInput{
		Username: "user" + suffix,
		Nickname: "nick" + suffix,
		Email:    "user" + suffix + "@example.com",
		Mobile:   "1381234567" + suffix,
		Password: "secret" + suffix,
		Role:     role,
	}, events.RequestMeta{IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	return res
}

func (f *fixture) identity(t *testing.T, user *domain.User, purpose domain.TokenPurpose) *auth.Identity {
	t.Helper()
	issued, err := f.tokens.Issue(user.ID, user.Username, user.Role, purpose)
	require.NoError(t, err)
	return &auth.Identity{UserID: user.ID, DisplayName: user.Username, Role: user.Role, Purpose: purpose, TokenID: issued.ID}
}

func (f *fixture) seedSuperAdmin(t *testing.T) *domain.User {
	t.Helper()
	root, created, err := f.users.EnsureSuperAdmin(context.Background(), SuperAdminSeed{
		Username: "root",
		Nickname: "root",
		Email:    "root@example.com",
		Mobile:   "13900000000",
		Password: "rootpass",
	})
	require.NoError(t, err)
	require.True(t, created)
	return root
}
