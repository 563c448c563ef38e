package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/postboard/backend/internal/config"
	"github.com/postboard/backend/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const githubAPIURL = "https://api.github.com"

type GitHubProvider struct {
	oauthBase
	apiURL string
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func NewGitHubProvider(cfg config.OAuthProviderConfig) *GitHubProvider {
	return newGitHubProvider(cfg, endpoints.GitHub, githubAPIURL)
}

func newGitHubProvider(cfg config.OAuthProviderConfig, endpoint oauth2.Endpoint, apiURL string) *GitHubProvider {
	return &GitHubProvider{
		oauthBase: newOAuthBase(&oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     endpoint,
			Scopes:       []string{"user:email"},
		}),
		apiURL: strings.TrimRight(apiURL, "/"),
	}
}

func (p *GitHubProvider) Name() model.AuthProvider {
	return model.ProviderGitHub
}

func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*model.OAuthProfile, error) {
	tok, err := p.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	var user githubUser
	if err := p.getJSON(ctx, tok, p.apiURL+"/user", &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("%w: github user id missing", ErrOAuthExchange)
	}
	id := strconv.FormatInt(user.ID, 10)

	// 공개 이메일이 없으면 /user/emails 에서 검증된 primary 주소를 찾는다
	email := user.Email
	if email == "" {
		var emails []githubEmail
		if err := p.getJSON(ctx, tok, p.apiURL+"/user/emails", &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					email = e.Email
					break
				}
			}
		}
	}
	if email == "" {
		email = id + "@github.placeholder.com"
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return &model.OAuthProfile{
		ID:          id,
		Email:       email,
		DisplayName: name,
		AvatarURL:   user.AvatarURL,
	}, nil
}
