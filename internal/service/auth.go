package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/postboard/backend/internal/config"
	"github.com/postboard/backend/internal/db"
	"github.com/postboard/backend/internal/model"
)

const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"

	maxUserAgentLength = 512
	maxDeviceIDLength  = 128
)

type CookieConfig struct {
	Path          string
	Domain        string
	Secure        bool
	SameSite      http.SameSite
	AccessMaxAge  int
	RefreshMaxAge int
}

// ClientMeta - refresh token 레코드에 함께 저장하는 클라이언트 정보
type ClientMeta struct {
	DeviceID  string
	IPAddress string
	UserAgent string
}

type authRepo interface {
	userRepo
	GetUserByID(ctx context.Context, userID uuid.UUID) (*model.User, error)
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
	AssignRole(ctx context.Context, userID uuid.UUID, role string) error
	GetPermissionsForRoles(ctx context.Context, roles []string) ([]string, error)
	InsertRefreshToken(ctx context.Context, token *model.RefreshToken) error
	ClaimRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, int64, error)
	SessionEpoch(ctx context.Context, userID uuid.UUID) (int64, error)
	RevokeRefreshTokenByHash(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) (int64, error)
}

type sessionStore interface {
	Put(ctx context.Context, tokenHash, userID string, ttl time.Duration) error
	Get(ctx context.Context, tokenHash string) (string, bool, error)
	Delete(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) (int, error)
}

// AuthService - 로그인/토큰 발급/회전/폐기를 조율한다.
// refresh token 은 DB 레코드와 세션 저장소 양쪽에 있어야 유효하다.
type AuthService struct {
	repo         authRepo
	sessions     sessionStore
	codec        *TokenCodec
	credentials  *CredentialVerifier
	federated    *FederatedResolver
	storeTimeout time.Duration
	cookieCfg    CookieConfig
	now          func() time.Time
}

// NewAuthService - secureDefault 는 AUTH_COOKIE_SECURE 미설정 시 사용 (운영 환경이면 true)
func NewAuthService(repo authRepo, sessions sessionStore, cfg config.AuthConfig, secureDefault bool) (*AuthService, error) {
	codec, err := NewTokenCodec(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessExpiration, cfg.RefreshExpiration)
	if err != nil {
		return nil, err
	}

	cost, err := strconv.Atoi(strings.TrimSpace(cfg.BcryptCost))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid BCRYPT_COST", ErrMisconfigured)
	}
	credentials, err := NewCredentialVerifier(repo, cost)
	if err != nil {
		return nil, err
	}

	storeTimeout, err := time.ParseDuration(cfg.StoreTimeout)
	if err != nil || storeTimeout <= 0 {
		return nil, fmt.Errorf("%w: invalid AUTH_STORE_TIMEOUT", ErrMisconfigured)
	}

	cookieSecure, err := parseBool(cfg.CookieSecure, secureDefault)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SECURE", ErrMisconfigured)
	}

	cookieSameSite, err := parseSameSite(cfg.CookieSameSite)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SAMESITE", ErrMisconfigured)
	}

	if cookieSameSite == http.SameSiteNoneMode && !cookieSecure {
		return nil, fmt.Errorf("%w: SameSite=None requires Secure cookie", ErrMisconfigured)
	}

	cookiePath := cfg.CookiePath
	if strings.TrimSpace(cookiePath) == "" {
		cookiePath = "/"
	}

	return &AuthService{
		repo:         repo,
		sessions:     sessions,
		codec:        codec,
		credentials:  credentials,
		federated:    NewFederatedResolver(repo),
		storeTimeout: storeTimeout,
		cookieCfg: CookieConfig{
			Path:          cookiePath,
			Domain:        cfg.CookieDomain,
			Secure:        cookieSecure,
			SameSite:      cookieSameSite,
			AccessMaxAge:  int(codec.AccessTTL().Seconds()),
			RefreshMaxAge: int(codec.RefreshTTL().Seconds()),
		},
		now: time.Now,
	}, nil
}

func (s *AuthService) CookieConfig() CookieConfig {
	return s.cookieCfg
}

// EnsureAdmin - ADMIN_EMAIL/ADMIN_PASSWORD 로 지정된 계정을 만들고 ADMIN 역할을 부여
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password, name string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return fmt.Errorf("%w: ADMIN_EMAIL/ADMIN_PASSWORD are required", ErrMisconfigured)
	}

	user, err := s.repo.GetUserByEmailAndProvider(ctx, normalizeEmail(email), model.ProviderLocal)
	if err != nil {
		if !db.IsNoRows(err) {
			return err
		}
		user, err = s.credentials.Register(ctx, email, password, name)
		if err != nil {
			return err
		}
		slog.Info("admin account created", "user_id", user.ID)
	}
	return s.repo.AssignRole(ctx, user.ID, model.RoleAdmin)
}

func (s *AuthService) Register(ctx context.Context, email, password, name string) (*model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.credentials.Register(ctx, email, password, name)
	if err != nil {
		return nil, unavailable("register", err)
	}
	slog.Info("user registered", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string, meta ClientMeta) (*model.User, TokenPair, error) {
	if strings.TrimSpace(email) == "" {
		return nil, TokenPair{}, invalid("email", "is required")
	}
	if password == "" {
		return nil, TokenPair{}, invalid("password", "is required")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.credentials.Verify(ctx, email, password)
	if err != nil {
		return nil, TokenPair{}, unavailable("verify credentials", err)
	}
	if user == nil {
		return nil, TokenPair{}, ErrUnauthorized
	}

	return s.startSession(ctx, user, meta)
}

// FederatedLogin - OAuth callback 에서 받은 프로필로 로그인
func (s *AuthService) FederatedLogin(ctx context.Context, provider model.AuthProvider, profile model.OAuthProfile, meta ClientMeta) (*model.User, TokenPair, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.federated.FindOrCreate(ctx, profile.Email, provider, profile.ID, profile)
	if err != nil {
		return nil, TokenPair{}, unavailable("resolve federated identity", err)
	}
	if !user.IsActive {
		return nil, TokenPair{}, ErrAccountDisabled
	}

	return s.startSession(ctx, user, meta)
}

// Refresh - refresh token 회전.
// 세션 포인터와 DB 레코드가 모두 있어야 하고, DB 레코드는 조건부 UPDATE 한 번으로
// 폐기되므로 같은 토큰으로 동시에 들어온 요청 중 하나만 성공한다.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (*model.User, TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, TokenPair{}, ErrUnauthorized
	}

	payload, err := s.codec.Verify(refreshToken, RefreshToken)
	if err != nil {
		return nil, TokenPair{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	hash := HashToken(refreshToken)
	ownerID, ok, err := s.sessions.Get(ctx, hash)
	if err != nil {
		return nil, TokenPair{}, unavailable("session lookup", err)
	}
	if !ok {
		slog.Warn("refresh rejected", "reason", "session pointer missing", "sub", payload.Subject)
		return nil, TokenPair{}, ErrUnauthorized
	}
	if ownerID != payload.Subject {
		slog.Warn("refresh rejected", "reason", "session owner mismatch", "sub", payload.Subject)
		return nil, TokenPair{}, ErrUnauthorized
	}

	userID, epoch, err := s.repo.ClaimRefreshToken(ctx, hash)
	if err != nil {
		if db.IsNoRows(err) {
			slog.Warn("refresh rejected", "reason", "token revoked, expired or unknown", "sub", payload.Subject)
			return nil, TokenPair{}, ErrUnauthorized
		}
		return nil, TokenPair{}, unavailable("claim refresh token", err)
	}
	if userID.String() != ownerID {
		slog.Warn("refresh rejected", "reason", "record owner mismatch", "sub", payload.Subject)
		return nil, TokenPair{}, ErrUnauthorized
	}

	if err := s.sessions.Delete(ctx, hash); err != nil {
		return nil, TokenPair{}, unavailable("session delete", err)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, TokenPair{}, ErrUnauthorized
		}
		return nil, TokenPair{}, unavailable("load user", err)
	}
	if !user.IsActive {
		return nil, TokenPair{}, ErrAccountDisabled
	}

	pair, err := s.issueSession(ctx, user, meta)
	if err != nil {
		return nil, TokenPair{}, err
	}

	// claim 이후 전체 폐기가 끼어들었으면 방금 만든 세션도 무효
	current, err := s.repo.SessionEpoch(ctx, userID)
	if err != nil {
		_ = s.discardSession(ctx, HashToken(pair.RefreshToken))
		return nil, TokenPair{}, unavailable("load session epoch", err)
	}
	if current != epoch {
		slog.Warn("refresh rejected", "reason", "sessions revoked during rotation", "sub", payload.Subject)
		if err := s.discardSession(ctx, HashToken(pair.RefreshToken)); err != nil {
			return nil, TokenPair{}, unavailable("discard rotated session", err)
		}
		return nil, TokenPair{}, ErrUnauthorized
	}
	return user, pair, nil
}

// discardSession - 발급 직후 무효가 된 세션을 두 저장소에서 제거
func (s *AuthService) discardSession(ctx context.Context, hash string) error {
	if err := s.repo.RevokeRefreshTokenByHash(ctx, hash); err != nil {
		slog.Error("failed to discard session", "error", err)
		return err
	}
	if err := s.sessions.Delete(ctx, hash); err != nil {
		slog.Error("failed to discard session pointer", "error", err)
		return err
	}
	return nil
}

// Logout - 토큰이 없으면 아무것도 하지 않는다
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// DB 레코드를 먼저 폐기해 포인터 삭제가 실패해도 토큰은 더 이상 회전되지 않는다
	hash := HashToken(refreshToken)
	if err := s.repo.RevokeRefreshTokenByHash(ctx, hash); err != nil {
		return unavailable("revoke refresh token", err)
	}
	if err := s.sessions.Delete(ctx, hash); err != nil {
		return unavailable("session delete", err)
	}
	return nil
}

// RevokeAllUserTokens - 사용자 전체 세션 폐기 (모든 기기에서 로그아웃)
func (s *AuthService) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pointers, err := s.sessions.RevokeAllForUser(ctx, userID.String())
	if err != nil {
		return 0, unavailable("session revoke-all", err)
	}
	records, err := s.repo.RevokeAllRefreshTokens(ctx, userID)
	if err != nil {
		return 0, unavailable("revoke refresh tokens", err)
	}

	slog.Info("revoked all sessions", "user_id", userID, "records", records, "pointers", pointers)
	return records, nil
}

// Authenticate - access token 검증 후 요청 주체(Identity)를 만든다
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*model.Identity, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrUnauthorized
	}

	payload, err := s.codec.Verify(accessToken, AccessToken)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(payload.Subject)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	perms, err := s.repo.GetPermissionsForRoles(ctx, payload.Roles)
	if err != nil {
		return nil, unavailable("load permissions", err)
	}
	return model.NewIdentity(userID, payload.Email, payload.Roles, perms), nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnauthorized
		}
		return nil, unavailable("load user", err)
	}
	return user, nil
}

func (s *AuthService) startSession(ctx context.Context, user *model.User, meta ClientMeta) (*model.User, TokenPair, error) {
	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		return nil, TokenPair{}, unavailable("update last login", err)
	}
	now := s.now()
	user.LastLoginAt = &now

	pair, err := s.issueSession(ctx, user, meta)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// issueSession - 토큰 쌍 발급 -> DB 레코드 저장 -> 세션 포인터 저장.
// 두 저장 중 하나라도 실패하면 에러를 돌려주고, 남은 한쪽은 다음 사용 시 무효로 판정된다.
func (s *AuthService) issueSession(ctx context.Context, user *model.User, meta ClientMeta) (TokenPair, error) {
	pair, err := s.codec.IssuePair(TokenPayload{
		Subject: user.ID.String(),
		Email:   user.Email,
		Roles:   user.Roles,
	})
	if err != nil {
		return TokenPair{}, err
	}

	hash := HashToken(pair.RefreshToken)
	ttl := s.codec.RefreshTTL()
	record := &model.RefreshToken{
		UserID:    user.ID,
		TokenHash: hash,
		DeviceID:  optional(meta.DeviceID, maxDeviceIDLength),
		IPAddress: optional(meta.IPAddress, 0),
		UserAgent: optional(meta.UserAgent, maxUserAgentLength),
		ExpiresAt: s.now().Add(ttl),
	}
	if err := s.repo.InsertRefreshToken(ctx, record); err != nil {
		return TokenPair{}, unavailable("persist refresh token", err)
	}
	if err := s.sessions.Put(ctx, hash, user.ID.String(), ttl); err != nil {
		return TokenPair{}, unavailable("session put", err)
	}
	return pair, nil
}

func (s *AuthService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// optional - 빈 값은 nil, limit 바이트를 넘으면 UTF-8 문자 경계에서 자른다
func optional(value string, limit int) *string {
	value = strings.TrimSpace(strings.ToValidUTF8(value, ""))
	if value == "" {
		return nil
	}
	if limit > 0 && len(value) > limit {
		value = value[:limit]
		for len(value) > 0 && !utf8.ValidString(value) {
			value = value[:len(value)-1]
		}
	}
	return &value
}

func parseBool(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, err
	}
	return parsed, nil
}

func parseSameSite(value string) (http.SameSite, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return http.SameSiteLaxMode, nil
	}
	switch value {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, ErrInvalidInput
	}
}
