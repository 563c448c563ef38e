package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/postboard/backend/internal/config"
	"github.com/postboard/backend/internal/model"
	"golang.org/x/oauth2"
)

const kakaoAPIURL = "https://kapi.kakao.com"

var kakaoEndpoint = oauth2.Endpoint{
	AuthURL:   "https://kauth.kakao.com/oauth/authorize",
	TokenURL:  "https://kauth.kakao.com/oauth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

type KakaoProvider struct {
	oauthBase
	apiURL string
}

// kakaoUser - /v2/user/me 응답 중 필요한 필드
type kakaoUser struct {
	ID           int64 `json:"id"`
	KakaoAccount struct {
		Email           string `json:"email"`
		IsEmailVerified bool   `json:"is_email_verified"`
		Profile         struct {
			Nickname        string `json:"nickname"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"profile"`
	} `json:"kakao_account"`
	Properties struct {
		Nickname     string `json:"nickname"`
		ProfileImage string `json:"profile_image"`
	} `json:"properties"`
}

func NewKakaoProvider(cfg config.OAuthProviderConfig) *KakaoProvider {
	return newKakaoProvider(cfg, kakaoEndpoint, kakaoAPIURL)
}

func newKakaoProvider(cfg config.OAuthProviderConfig, endpoint oauth2.Endpoint, apiURL string) *KakaoProvider {
	return &KakaoProvider{
		oauthBase: newOAuthBase(&oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     endpoint,
			Scopes:       []string{"profile_nickname", "profile_image", "account_email"},
		}),
		apiURL: strings.TrimRight(apiURL, "/"),
	}
}

func (p *KakaoProvider) Name() model.AuthProvider {
	return model.ProviderKakao
}

func (p *KakaoProvider) Exchange(ctx context.Context, code string) (*model.OAuthProfile, error) {
	tok, err := p.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	var user kakaoUser
	if err := p.getJSON(ctx, tok, p.apiURL+"/v2/user/me", &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("%w: kakao user id missing", ErrOAuthExchange)
	}
	id := strconv.FormatInt(user.ID, 10)

	// 검증되지 않은 이메일은 사용하지 않음
	email := user.KakaoAccount.Email
	if email == "" || !user.KakaoAccount.IsEmailVerified {
		email = id + "@kakao.placeholder.com"
	}

	name := user.KakaoAccount.Profile.Nickname
	if name == "" {
		name = user.Properties.Nickname
	}
	avatar := user.KakaoAccount.Profile.ProfileImageURL
	if avatar == "" {
		avatar = user.Properties.ProfileImage
	}

	return &model.OAuthProfile{
		ID:          id,
		Email:       email,
		DisplayName: name,
		AvatarURL:   avatar,
	}, nil
}
