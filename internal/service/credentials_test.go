package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/postboard/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T) (*CredentialVerifier, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	v, err := NewCredentialVerifier(repo, 4)
	require.NoError(t, err)
	return v, repo
}

func TestRegisterAssignsDefaultRoleAndHidesPassword(t *testing.T) {
	v, _ := newTestVerifier(t)

	user, err := v.Register(context.Background(), " A@X.com ", "Pw123!", "A")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, model.ProviderLocal, user.Provider)
	assert.Equal(t, []string{model.RoleUser}, user.Roles)
	require.NotNil(t, user.PasswordHash)
	assert.NotEqual(t, "Pw123!", *user.PasswordHash)

	raw, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password")
	assert.NotContains(t, string(raw), *user.PasswordHash)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	v, _ := newTestVerifier(t)
	ctx := context.Background()

	_, err := v.Register(ctx, "a@x.com", "Pw123!", "A")
	require.NoError(t, err)

	_, err = v.Register(ctx, "A@x.com", "Other1!", "B")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		display  string
		field    string
	}{
		{"empty-email", "", "Pw123!", "A", "email"},
		{"bad-email", "not-an-email", "Pw123!", "A", "email"},
		{"display-name-email", "A <a@x.com>", "Pw123!", "A", "email"},
		{"short-password", "a@x.com", "12345", "A", "password"},
		{"long-password", "a@x.com", strings.Repeat("x", 73), "A", "password"},
		{"empty-name", "a@x.com", "Pw123!", "  ", "name"},
		{"long-name", "a@x.com", "Pw123!", strings.Repeat("가", 101), "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := newTestVerifier(t)
			_, err := v.Register(context.Background(), tt.email, tt.password, tt.display)

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Fatalf("field = %q, want %q", verr.Field, tt.field)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput")
			}
		})
	}
}

func TestVerifyCredentialAmbiguity(t *testing.T) {
	v, repo := newTestVerifier(t)
	ctx := context.Background()

	_, err := v.Register(ctx, "a@x.com", "Pw123!", "A")
	require.NoError(t, err)

	// OAuth 계정은 비밀번호가 없다
	_, err = repo.CreateUserWithRole(ctx, &model.User{Email: "o@x.com", Name: "O", Provider: model.ProviderLocal}, model.RoleUser)
	require.NoError(t, err)

	unknown, err := v.Verify(ctx, "nobody@x.com", "Pw123!")
	require.NoError(t, err)
	wrong, err := v.Verify(ctx, "a@x.com", "wrong-password")
	require.NoError(t, err)
	noHash, err := v.Verify(ctx, "o@x.com", "Pw123!")
	require.NoError(t, err)

	assert.Nil(t, unknown)
	assert.Nil(t, wrong)
	assert.Nil(t, noHash)

	ok, err := v.Verify(ctx, " A@X.COM", "Pw123!")
	require.NoError(t, err)
	require.NotNil(t, ok)
	assert.Equal(t, "a@x.com", ok.Email)
}

func TestVerifyDisabledAccount(t *testing.T) {
	v, repo := newTestVerifier(t)
	ctx := context.Background()

	user, err := v.Register(ctx, "a@x.com", "Pw123!", "A")
	require.NoError(t, err)
	repo.setActive(user.ID, false)

	// 비밀번호가 틀리면 비활성 여부를 드러내지 않는다
	got, err := v.Verify(ctx, "a@x.com", "wrong-password")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = v.Verify(ctx, "a@x.com", "Pw123!")
	assert.ErrorIs(t, err, ErrAccountDisabled)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNewCredentialVerifierRejectsBadCost(t *testing.T) {
	_, err := NewCredentialVerifier(newFakeRepo(), 2)
	assert.ErrorIs(t, err, ErrMisconfigured)
}
