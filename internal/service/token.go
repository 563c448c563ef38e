package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind - access / refresh 구분. 종류별로 서명 키와 수명이 다르다.
type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

func (k TokenKind) String() string {
	if k == RefreshToken {
		return "refresh"
	}
	return "access"
}

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

var ttlPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// TokenPayload - 토큰에 담기는 사용자 정보
type TokenPayload struct {
	Subject string
	Email   string
	Roles   []string
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type tokenClaims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenCodec(accessSecret, refreshSecret, accessExpiration, refreshExpiration string) (*TokenCodec, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, fmt.Errorf("%w: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required", ErrMisconfigured)
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("%w: access and refresh secrets must differ", ErrMisconfigured)
	}

	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     parseTTL(accessExpiration, defaultAccessTTL),
		refreshTTL:    parseTTL(refreshExpiration, defaultRefreshTTL),
		now:           time.Now,
	}, nil
}

func (c *TokenCodec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }

// RefreshTTLSeconds - 세션 저장소 TTL 및 만료 시각 계산에 사용
func (c *TokenCodec) RefreshTTLSeconds() int64 {
	return int64(c.refreshTTL / time.Second)
}

func (c *TokenCodec) Issue(payload TokenPayload, kind TokenKind) (string, error) {
	now := c.now()
	claims := tokenClaims{
		Email: payload.Email,
		Roles: payload.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.Subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl(kind))),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret(kind))
}

func (c *TokenCodec) IssuePair(payload TokenPayload) (TokenPair, error) {
	access, err := c.Issue(payload, AccessToken)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := c.Issue(payload, RefreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (c *TokenCodec) Verify(tokenStr string, kind TokenKind) (*TokenPayload, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return c.secret(kind), nil
	}, jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidSignature
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidSignature
	}

	return &TokenPayload{
		Subject: claims.Subject,
		Email:   claims.Email,
		Roles:   claims.Roles,
	}, nil
}

// HashToken - refresh token 조회 키 (SHA-256 hex)
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ParseTTL - "15m", "7d" 형식. 해석할 수 없으면 7일.
func ParseTTL(value string) time.Duration {
	return parseTTL(value, defaultRefreshTTL)
}

func parseTTL(value string, fallback time.Duration) time.Duration {
	match := ttlPattern.FindStringSubmatch(value)
	if match == nil {
		return fallback
	}
	n, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}

	unit := map[string]time.Duration{
		"s": time.Second,
		"m": time.Minute,
		"h": time.Hour,
		"d": 24 * time.Hour,
	}[match[2]]
	return time.Duration(n) * unit
}

func (c *TokenCodec) secret(kind TokenKind) []byte {
	if kind == RefreshToken {
		return c.refreshSecret
	}
	return c.accessSecret
}

func (c *TokenCodec) ttl(kind TokenKind) time.Duration {
	if kind == RefreshToken {
		return c.refreshTTL
	}
	return c.accessTTL
}
