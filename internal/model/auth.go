package model

import (
	"time"

	"github.com/google/uuid"
)

// AuthProvider - 사용자 계정의 출처
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "LOCAL"
	ProviderGoogle AuthProvider = "GOOGLE"
	ProviderGitHub AuthProvider = "GITHUB"
	ProviderKakao  AuthProvider = "KAKAO"
)

// 기본 역할 이름 (seed 와 동일해야 함)
const (
	RoleUser      = "USER"
	RoleModerator = "MODERATOR"
	RoleAdmin     = "ADMIN"
)

const (
	PermPostsCreate = "posts:create"
	PermPostsRead   = "posts:read"
	PermPostsUpdate = "posts:update"
	PermPostsDelete = "posts:delete"
	PermUsersManage = "users:manage"
	PermRolesManage = "roles:manage"
)

// User - users 테이블. PasswordHash 는 절대 직렬화하지 않는다.
type User struct {
	ID            uuid.UUID    `json:"id"`
	Email         string       `json:"email"`
	PasswordHash  *string      `json:"-"`
	Name          string       `json:"name"`
	Avatar        *string      `json:"avatar,omitempty"`
	Provider      AuthProvider `json:"provider"`
	ProviderID    *string      `json:"providerId,omitempty"`
	IsActive      bool         `json:"isActive"`
	EmailVerified bool         `json:"emailVerified"`
	LastLoginAt   *time.Time   `json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	Roles         []string     `json:"roles"`
}

type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

// RefreshToken - 발급된 refresh token 메타데이터 (원문은 저장하지 않음)
type RefreshToken struct {
	ID         int64
	UserID     uuid.UUID
	TokenHash  string
	DeviceID   *string
	IPAddress  *string
	UserAgent  *string
	ExpiresAt  time.Time
	IsRevoked  bool
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// OAuthProfile - provider 로부터 받은 사용자 프로필
type OAuthProfile struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Name     string `json:"name" binding:"required,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	User    *User  `json:"user"`
	Message string `json:"message"`
}

type RevokeSessionsResponse struct {
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}
