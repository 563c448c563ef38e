// 외부 OAuth provider(Google/GitHub/Kakao)와 통신하는 클라이언트 정의
//
// 환경변수 (provider 별):
//   - {GOOGLE,GITHUB,KAKAO}_CLIENT_ID
//   - {GOOGLE,GITHUB,KAKAO}_CLIENT_SECRET
//   - {GOOGLE,GITHUB,KAKAO}_CALLBACK_URL
//
// 각 provider 는 authorization code 를 받아 공통 프로필(model.OAuthProfile)로 변환한다.

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/postboard/backend/internal/model"
	"golang.org/x/oauth2"
)

var ErrOAuthExchange = errors.New("oauth exchange failed")

// OAuthProvider - handler 에서 사용하는 provider 공통 인터페이스
type OAuthProvider interface {
	Name() model.AuthProvider
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*model.OAuthProfile, error)
}

// oauthBase - code 교환과 프로필 API 호출 공통 부분
type oauthBase struct {
	cfg        *oauth2.Config
	httpClient *http.Client
}

func newOAuthBase(cfg *oauth2.Config) oauthBase {
	return oauthBase{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (b oauthBase) AuthCodeURL(state string) string {
	return b.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (b oauthBase) exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", ErrOAuthExchange)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	tok, err := b.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}
	return tok, nil
}

// getJSON - access token 으로 provider API 를 호출해 JSON 을 디코딩
func (b oauthBase) getJSON(ctx context.Context, tok *oauth2.Token, url string, out any) error {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	httpClient := b.cfg.Client(ctx, tok)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned %d: %s", ErrOAuthExchange, url, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrOAuthExchange, url, err)
	}
	return nil
}
