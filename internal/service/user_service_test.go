package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

func ptr(s string) *string { return &s }

func TestUserService_GetProfile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	reg := f.register(t, "1", domain.RoleUser)

	user, err := f.users.GetProfile(context.Background(), f.identity(t, reg.User, domain.PurposeLogin))
	require.NoError(t, err)
	assert.Equal(t, "user1", user.Username)

	_, err = f.users.GetProfile(context.Background(), nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestUserService_UpdateProfileSelfOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.register(t, "1", domain.RoleUser)
	b := f.register(t, "2", domain.RoleUser)

	// a valid login token for A never mutates B
	_, err := f.users.UpdateProfile(context.Background(), f.identity(t, a.User, domain.PurposeLogin), b.User.ID,
		domain.ProfileChanges{Nickname: ptr("hijack")}, events.RequestMeta{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	super := f.seedSuperAdmin(t)
	_, err = f.users.UpdateProfile(context.Background(), f.identity(t, super, domain.PurposeLogin), b.User.ID,
		domain.ProfileChanges{Nickname: ptr("hijack")}, events.RequestMeta{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestUserService_UpdateProfileChangedFieldsOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.register(t, "1", domain.RoleUser)
	id := f.identity(t, a.User, domain.PurposeLogin)

	updated, err := f.users.UpdateProfile(context.Background(), id, a.User.ID, domain.ProfileChanges{
		Email:    ptr("USER1@example.com"),
		Nickname: ptr("alice"),
	}, events.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "alice", updated.Nickname)

	evts := f.dispatcher.ofType(events.EventProfileUpdated)
	require.Len(t, evts, 1)
	assert.Equal(t, []string{"nickname"}, evts[0].Payload["changed_fields"])

	// nothing differs: current record back, nothing published
	same, err := f.users.UpdateProfile(context.Background(), id, a.User.ID, domain.ProfileChanges{
		Nickname: ptr("alice"),
	}, events.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "alice", same.Nickname)
	assert.Len(t, f.dispatcher.ofType(events.EventProfileUpdated), 1)

	_, err = f.users.UpdateProfile(context.Background(), id, a.User.ID, domain.ProfileChanges{}, events.RequestMeta{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestUserService_UpdateProfileConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.register(t, "1", domain.RoleUser)
	b := f.register(t, "2", domain.RoleUser)

	_, err := f.users.UpdateProfile(context.Background(), f.identity(t, a.User, domain.PurposeLogin), a.User.ID,
		domain.ProfileChanges{Mobile: ptr(b.User.Mobile)}, events.RequestMeta{})

	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, apperrors.CodeConflict, de.Code)
	assert.Equal(t, "mobile", de.Fields[0].Field)

	_, err = f.users.UpdateProfile(context.Background(), f.identity(t, a.User, domain.PurposeLogin), a.User.ID,
		domain.ProfileChanges{Nickname: ptr(b.User.Nickname)}, events.RequestMeta{})
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "nickname", de.Fields[0].Field)
}

func TestUserService_ChangePassword(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.register(t, "1", domain.RoleUser)

	// any verified identity may change its own password, even a register token
	id := f.identity(t, a.User, domain.PurposeRegister)

	err := f.users.ChangePassword(context.Background(), id, "wrong", "newsecret", events.RequestMeta{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	require.NoError(t, f.users.ChangePassword(context.Background(), id, "secret1", "newsecret", events.RequestMeta{}))

	_, err = f.auth.Login(context.Background(), "user1", "secret1", events.RequestMeta{})
	assert.Error(t, err)
	_, err = f.auth.Login(context.Background(), "user1", "newsecret", events.RequestMeta{})
	assert.NoError(t, err)
}

func TestUserService_ResetPassword(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	root := f.seedSuperAdmin(t)
	admin := f.register(t, "1", domain.RoleAdmin)
	rootID := f.identity(t, root, domain.PurposeLogin)

	err := f.users.ResetPassword(context.Background(), f.identity(t, admin.User, domain.PurposeLogin),
		ResetPasswordInput{TargetID: admin.User.ID, NewPassword: "resetpw"}, events.RequestMeta{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	require.NoError(t, f.users.ResetPassword(context.Background(), rootID,
		ResetPasswordInput{TargetID: admin.User.ID, NewPassword: "resetpw", Reason: "forgot"}, events.RequestMeta{}))
	_, err = f.auth.Login(context.Background(), "user1", "resetpw", events.RequestMeta{})
	require.NoError(t, err)

	err = f.users.ResetPassword(context.Background(), rootID,
		ResetPasswordInput{TargetID: root.ID, NewPassword: "resetpw"}, events.RequestMeta{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	err = f.users.ResetPassword(context.Background(), rootID,
		ResetPasswordInput{TargetID: "65f000000000000000000000", NewPassword: "resetpw"}, events.RequestMeta{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	err = f.users.ResetPassword(context.Background(), rootID,
		ResetPasswordInput{TargetID: "nope", NewPassword: "resetpw"}, events.RequestMeta{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	resets := f.dispatcher.ofType(events.EventAdminPasswordReset)
	require.Len(t, resets, 4)
	assert.Equal(t, domain.AuditSuccess, resets[0].Status)
	assert.Equal(t, "forgot", resets[0].Payload["reason"])
	assert.Equal(t, domain.AuditFailure, resets[1].Status)
}

func TestUserService_EnsureSuperAdminIsIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	first := f.seedSuperAdmin(t)

	again, created, err := f.users.EnsureSuperAdmin(context.Background(), SuperAdminSeed{Username: "other", Password: "whatever"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
}

func TestUserService_EnsureSuperAdminNeedsPassword(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, _, err := f.users.EnsureSuperAdmin(context.Background(), SuperAdminSeed{Username: "root"})
	require.Error(t, err)
}

func TestUserService_AuditHistoryRequiresSuperAdmin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.register(t, "1", domain.RoleAdmin)

	_, err := f.users.AuditHistory(context.Background(), f.identity(t, a.User, domain.PurposeLogin), a.User.ID, 10)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	root := f.seedSuperAdmin(t)
	entries, err := f.users.AuditHistory(context.Background(), &auth.Identity{UserID: root.ID, Role: domain.RoleSuperAdmin}, a.User.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
