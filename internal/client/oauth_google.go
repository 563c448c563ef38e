package client

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/postboard/backend/internal/config"
	"github.com/postboard/backend/internal/model"
	"golang.org/x/oauth2"
)

const googleIssuer = "https://accounts.google.com"

// GoogleProvider - OIDC ID token 의 서명/audience/만료를 검증한 뒤 클레임을 프로필로 사용
type GoogleProvider struct {
	oauthBase
	verifier *oidc.IDTokenVerifier
}

type googleClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// NewGoogleProvider - discovery 문서를 가져오므로 네트워크 호출이 발생한다
func NewGoogleProvider(ctx context.Context, cfg config.OAuthProviderConfig) (*GoogleProvider, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover google oidc provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return newGoogleProvider(cfg, provider.Endpoint(), verifier), nil
}

func newGoogleProvider(cfg config.OAuthProviderConfig, endpoint oauth2.Endpoint, verifier *oidc.IDTokenVerifier) *GoogleProvider {
	return &GoogleProvider{
		oauthBase: newOAuthBase(&oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		}),
		verifier: verifier,
	}
}

func (p *GoogleProvider) Name() model.AuthProvider {
	return model.ProviderGoogle
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*model.OAuthProfile, error) {
	tok, err := p.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: id_token missing", ErrOAuthExchange)
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return nil, fmt.Errorf("%w: google email not verified", ErrOAuthExchange)
	}

	return &model.OAuthProfile{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
	}, nil
}
