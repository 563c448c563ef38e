package client

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/postboard/backend/internal/config"
	"github.com/postboard/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var testProviderConfig = config.OAuthProviderConfig{
	ClientID:     "client-id",
	ClientSecret: "client-secret",
	CallbackURL:  "http://localhost:4000/auth/callback",
}

// newProviderServer - token endpoint 와 프로필 API 를 흉내내는 서버
func newProviderServer(t *testing.T, tokenExtra map[string]any, routes map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		body := map[string]any{"access_token": "provider-access", "token_type": "Bearer", "expires_in": 3600}
		for k, v := range tokenExtra {
			body[k] = v
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	for path, payload := range routes {
		payload := payload
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer provider-access" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(payload)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testEndpoint(srv *httptest.Server) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   srv.URL + "/authorize",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func TestGitHubExchange(t *testing.T) {
	tests := []struct {
		name      string
		user      map[string]any
		emails    []map[string]any
		wantEmail string
		wantName  string
	}{
		{
			name:      "public-email",
			user:      map[string]any{"id": 42, "login": "octo", "name": "Octo Cat", "email": "octo@x.com", "avatar_url": "https://a/x.png"},
			wantEmail: "octo@x.com",
			wantName:  "Octo Cat",
		},
		{
			name: "primary-verified-email",
			user: map[string]any{"id": 42, "login": "octo"},
			emails: []map[string]any{
				{"email": "secondary@x.com", "primary": false, "verified": true},
				{"email": "primary@x.com", "primary": true, "verified": true},
			},
			wantEmail: "primary@x.com",
			wantName:  "octo",
		},
		{
			name:      "placeholder-email",
			user:      map[string]any{"id": 42, "login": "octo"},
			emails:    []map[string]any{{"email": "unverified@x.com", "primary": true, "verified": false}},
			wantEmail: "42@github.placeholder.com",
			wantName:  "octo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			routes := map[string]any{"/user": tt.user}
			if tt.emails != nil {
				routes["/user/emails"] = tt.emails
			}
			srv := newProviderServer(t, nil, routes)
			p := newGitHubProvider(testProviderConfig, testEndpoint(srv), srv.URL)

			profile, err := p.Exchange(context.Background(), "good-code")
			require.NoError(t, err)
			assert.Equal(t, "42", profile.ID)
			assert.Equal(t, tt.wantEmail, profile.Email)
			assert.Equal(t, tt.wantName, profile.DisplayName)
			assert.Equal(t, model.ProviderGitHub, p.Name())
		})
	}
}

func TestExchangeFailures(t *testing.T) {
	srv := newProviderServer(t, nil, map[string]any{"/user": map[string]any{"id": 0}})
	p := newGitHubProvider(testProviderConfig, testEndpoint(srv), srv.URL)

	for _, code := range []string{"", "bad-code", "good-code"} {
		_, err := p.Exchange(context.Background(), code)
		if !errors.Is(err, ErrOAuthExchange) {
			t.Fatalf("code %q: expected ErrOAuthExchange, got %v", code, err)
		}
	}
}

func TestKakaoExchange(t *testing.T) {
	me := map[string]any{
		"id": 1234,
		"kakao_account": map[string]any{
			"email":             "kakao@x.com",
			"is_email_verified": true,
			"profile":           map[string]any{"nickname": "카카오", "profile_image_url": "https://k/p.png"},
		},
	}
	srv := newProviderServer(t, nil, map[string]any{"/v2/user/me": me})
	p := newKakaoProvider(testProviderConfig, testEndpoint(srv), srv.URL)

	profile, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "1234", profile.ID)
	assert.Equal(t, "kakao@x.com", profile.Email)
	assert.Equal(t, "카카오", profile.DisplayName)
	assert.Equal(t, "https://k/p.png", profile.AvatarURL)
}

func TestKakaoUnverifiedEmailUsesPlaceholder(t *testing.T) {
	me := map[string]any{
		"id":            99,
		"kakao_account": map[string]any{"email": "maybe@x.com", "is_email_verified": false},
		"properties":    map[string]any{"nickname": "nick"},
	}
	srv := newProviderServer(t, nil, map[string]any{"/v2/user/me": me})
	p := newKakaoProvider(testProviderConfig, testEndpoint(srv), srv.URL)

	profile, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "99@kakao.placeholder.com", profile.Email)
	assert.Equal(t, "nick", profile.DisplayName)
}

func TestAuthCodeURLCarriesState(t *testing.T) {
	p := NewKakaoProvider(testProviderConfig)
	u, err := url.Parse(p.AuthCodeURL("state-123"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u.String(), "https://kauth.kakao.com/oauth/authorize"))
	assert.Equal(t, "state-123", u.Query().Get("state"))
	assert.Equal(t, "client-id", u.Query().Get("client_id"))
	assert.Equal(t, testProviderConfig.CallbackURL, u.Query().Get("redirect_uri"))
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestGoogleExchangeVerifiesIDToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	const issuer = "https://accounts.google.com"
	baseClaims := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss":            issuer,
			"aud":            testProviderConfig.ClientID,
			"sub":            "google-sub",
			"email":          "g@x.com",
			"email_verified": true,
			"name":           "Gee",
			"picture":        "https://g/p.png",
			"iat":            time.Now().Unix(),
			"exp":            time.Now().Add(time.Hour).Unix(),
		}
	}

	tests := []struct {
		name    string
		signer  *rsa.PrivateKey
		modify  func(jwt.MapClaims)
		wantErr bool
	}{
		{"valid", key, func(jwt.MapClaims) {}, false},
		{"wrong-key", other, func(jwt.MapClaims) {}, true},
		{"wrong-audience", key, func(c jwt.MapClaims) { c["aud"] = "someone-else" }, true},
		{"expired", key, func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }, true},
		{"unverified-email", key, func(c jwt.MapClaims) { c["email_verified"] = false }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := baseClaims()
			tt.modify(claims)
			idToken := signIDToken(t, tt.signer, claims)

			srv := newProviderServer(t, map[string]any{"id_token": idToken}, nil)
			verifier := oidc.NewVerifier(issuer, &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}, &oidc.Config{ClientID: testProviderConfig.ClientID})
			p := newGoogleProvider(testProviderConfig, testEndpoint(srv), verifier)

			profile, err := p.Exchange(context.Background(), "good-code")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOAuthExchange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "google-sub", profile.ID)
			assert.Equal(t, "g@x.com", profile.Email)
			assert.Equal(t, "Gee", profile.DisplayName)
		})
	}
}

func TestGoogleExchangeMissingIDToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := newProviderServer(t, nil, nil)
	verifier := oidc.NewVerifier("https://accounts.google.com", &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}, &oidc.Config{ClientID: testProviderConfig.ClientID})
	p := newGoogleProvider(testProviderConfig, testEndpoint(srv), verifier)

	_, err = p.Exchange(context.Background(), "good-code")
	assert.ErrorIs(t, err, ErrOAuthExchange)
}
