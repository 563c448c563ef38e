package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/postboard/backend/internal/model"
	"golang.org/x/sync/singleflight"
)

const refreshFlightKey = "refresh"

// APIError - 2xx 가 아닌 응답
type APIError struct {
	Status int
	Body   model.ErrorResponse
}

func (e *APIError) Error() string {
	if e.Body.Message != "" {
		return fmt.Sprintf("api error %d: %s (%s: %s)", e.Status, e.Body.Error, e.Body.Field, e.Body.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Body.Error)
}

// IsStatus - err 가 주어진 HTTP 상태의 APIError 인지
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// APIClient - 쿠키 기반 세션을 유지하는 HTTP 클라이언트.
// 401 을 받으면 refresh 후 한 번 재시도하며, 동시에 401 을 받은 요청들은
// 진행 중인 refresh 하나를 함께 기다린다.
type APIClient struct {
	baseURL *url.URL
	http    *http.Client
	jar     http.CookieJar
	refresh singleflight.Group
}

func NewAPIClient(baseURL string) (*APIClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &APIClient{
		baseURL: u,
		jar:     jar,
		http: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
			// OAuth 리다이렉트는 따라가지 않는다
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// Cookie - 현재 저장된 쿠키 값 (없으면 빈 문자열)
func (c *APIClient) Cookie(name string) string {
	for _, cookie := range c.jar.Cookies(c.baseURL) {
		if cookie.Name == name {
			return cookie.Value
		}
	}
	return ""
}

func (c *APIClient) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	var user model.User
	if err := c.send(ctx, http.MethodPost, "/auth/register", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *APIClient) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	var resp model.LoginResponse
	if err := c.send(ctx, http.MethodPost, "/auth/login", model.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) Logout(ctx context.Context) error {
	return c.send(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Refresh - 동시에 호출돼도 실제 /auth/refresh 요청은 한 번만 나간다
func (c *APIClient) Refresh(ctx context.Context) error {
	_, err, _ := c.refresh.Do(refreshFlightKey, func() (any, error) {
		return nil, c.send(ctx, http.MethodPost, "/auth/refresh", nil, nil)
	})
	return err
}

// RefreshWithToken - 쿠키 저장소를 거치지 않고 지정한 refresh token 으로 회전을 요청
func (c *APIClient) RefreshWithToken(ctx context.Context, refreshToken string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/refresh", nil)
	if err != nil {
		return err
	}
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refreshToken})

	plain := &http.Client{Timeout: c.http.Timeout}
	resp, err := plain.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, nil)
}

func (c *APIClient) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *APIClient) ListPosts(ctx context.Context) ([]model.Post, error) {
	var posts []model.Post
	if err := c.do(ctx, http.MethodGet, "/posts", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *APIClient) CreatePost(ctx context.Context, req model.CreatePostRequest) (*model.Post, error) {
	var post model.Post
	if err := c.do(ctx, http.MethodPost, "/posts", req, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *APIClient) UpdatePost(ctx context.Context, id int64, req model.UpdatePostRequest) (*model.Post, error) {
	var post model.Post
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/posts/%d", id), req, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *APIClient) DeletePost(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/posts/%d", id), nil, nil)
}

// do - 인증이 필요한 요청. 401 이면 refresh 후 한 번만 재시도
func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	err := c.send(ctx, method, path, body, out)
	if !IsStatus(err, http.StatusUnauthorized) {
		return err
	}
	if refreshErr := c.Refresh(ctx); refreshErr != nil {
		return err
	}
	return c.send(ctx, method, path, body, out)
}

func (c *APIClient) send(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr.Body)
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
