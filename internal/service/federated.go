package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/postboard/backend/internal/db"
	"github.com/postboard/backend/internal/model"
)

// FederatedResolver - OAuth 프로필로 로컬 사용자를 찾거나 만든다.
// (email, provider) 단위로 식별하며 LOCAL 계정과 자동 병합하지 않는다.
type FederatedResolver struct {
	users userRepo
}

func NewFederatedResolver(users userRepo) *FederatedResolver {
	return &FederatedResolver{users: users}
}

func (r *FederatedResolver) FindOrCreate(ctx context.Context, email string, provider model.AuthProvider, externalID string, profile model.OAuthProfile) (*model.User, error) {
	if provider == model.ProviderLocal || provider == "" {
		return nil, invalid("provider", "must be an OAuth provider")
	}
	email = normalizeEmail(email)
	if email == "" {
		return nil, invalid("email", "provider did not return an email")
	}

	user, err := r.users.GetUserByEmailAndProvider(ctx, email, provider)
	if err == nil {
		return user, nil
	}
	if !db.IsNoRows(err) {
		return nil, err
	}

	name := strings.TrimSpace(profile.DisplayName)
	if name == "" {
		name = fmt.Sprintf("%s User", titleProvider(provider))
	}
	if runes := []rune(name); len(runes) > maxNameLength {
		name = string(runes[:maxNameLength])
	}

	var avatar, providerID *string
	if profile.AvatarURL != "" {
		avatar = &profile.AvatarURL
	}
	if externalID != "" {
		providerID = &externalID
	}

	created, err := r.users.CreateUserWithRole(ctx, &model.User{
		Email:         email,
		Name:          name,
		Avatar:        avatar,
		Provider:      provider,
		ProviderID:    providerID,
		EmailVerified: true,
	}, model.RoleUser)
	if err != nil {
		// 동시 최초 로그인에서 진 쪽은 이긴 쪽이 만든 사용자를 읽는다
		if isUniqueViolation(err) {
			return r.users.GetUserByEmailAndProvider(ctx, email, provider)
		}
		return nil, err
	}
	return created, nil
}

func titleProvider(provider model.AuthProvider) string {
	switch provider {
	case model.ProviderGoogle:
		return "Google"
	case model.ProviderGitHub:
		return "GitHub"
	case model.ProviderKakao:
		return "Kakao"
	default:
		return string(provider)
	}
}
