package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/postboard/backend/internal/db"
	"github.com/postboard/backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	maxPasswordLength = 72 // bcrypt 입력 한계
	maxNameLength     = 100
	maxEmailLength    = 254
)

type userRepo interface {
	CreateUserWithRole(ctx context.Context, user *model.User, role string) (*model.User, error)
	GetUserByEmailAndProvider(ctx context.Context, email string, provider model.AuthProvider) (*model.User, error)
}

// CredentialVerifier - 이메일/비밀번호 가입 및 검증
type CredentialVerifier struct {
	users     userRepo
	cost      int
	dummyHash []byte
}

func NewCredentialVerifier(users userRepo, cost int) (*CredentialVerifier, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: invalid BCRYPT_COST %d", ErrMisconfigured, cost)
	}
	// 존재하지 않는 사용자도 같은 비용으로 비교하기 위한 더미 해시
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, err
	}
	return &CredentialVerifier{users: users, cost: cost, dummyHash: dummy}, nil
}

func (v *CredentialVerifier) Register(ctx context.Context, email, password, name string) (*model.User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if err := validateRegistration(email, password, name); err != nil {
		return nil, err
	}

	_, err := v.users.GetUserByEmailAndProvider(ctx, email, model.ProviderLocal)
	if err == nil {
		return nil, ErrConflict
	}
	if !db.IsNoRows(err) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return nil, err
	}
	hashStr := string(hash)

	user, err := v.users.CreateUserWithRole(ctx, &model.User{
		Email:        email,
		PasswordHash: &hashStr,
		Name:         name,
		Provider:     model.ProviderLocal,
	}, model.RoleUser)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return user, nil
}

// Verify - 사용자 없음과 비밀번호 불일치는 둘 다 (nil, nil).
// 비활성 계정은 비밀번호가 맞은 뒤에만 ErrAccountDisabled.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)

	user, err := v.users.GetUserByEmailAndProvider(ctx, email, model.ProviderLocal)
	if err != nil {
		if db.IsNoRows(err) {
			_ = bcrypt.CompareHashAndPassword(v.dummyHash, []byte(password))
			slog.Debug("login rejected", "reason", "unknown email")
			return nil, nil
		}
		return nil, err
	}

	if user.PasswordHash == nil {
		_ = bcrypt.CompareHashAndPassword(v.dummyHash, []byte(password))
		slog.Debug("login rejected", "reason", "no local password", "user_id", user.ID)
		return nil, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			slog.Warn("password compare failed", "user_id", user.ID, "err", err)
		}
		slog.Debug("login rejected", "reason", "wrong password", "user_id", user.ID)
		return nil, nil
	}

	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

func validateRegistration(email, password, name string) error {
	if email == "" || len(email) > maxEmailLength {
		return invalid("email", "must be a valid email address")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return invalid("email", "must be a valid email address")
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return invalid("password", fmt.Sprintf("must be between %d and %d characters", minPasswordLength, maxPasswordLength))
	}
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return invalid("name", fmt.Sprintf("must be between 1 and %d characters", maxNameLength))
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
