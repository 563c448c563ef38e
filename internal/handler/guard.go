package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/postboard/backend/internal/model"
	"github.com/postboard/backend/internal/service"
)

const identityKey = "identity"

// Authenticator - access token 을 검증해 Identity 를 만든다 (service.AuthService)
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*model.Identity, error)
}

// Policy - 라우트별 접근 정책.
// Roles 는 하나 이상 보유하면 통과, Permissions 는 모두 보유해야 통과.
type Policy struct {
	Public      bool
	Roles       []string
	Permissions []string
}

// guardStep - nil 이면 다음 단계로, 에러면 즉시 거부
type guardStep func(c *gin.Context) error

type Guard struct {
	auth Authenticator
}

func NewGuard(auth Authenticator) *Guard {
	return &Guard{auth: auth}
}

// For - 정책에 맞는 단계들을 순서대로 실행하는 미들웨어를 만든다
func (g *Guard) For(policy Policy) gin.HandlerFunc {
	if policy.Public {
		return func(c *gin.Context) { c.Next() }
	}

	steps := []guardStep{g.authenticate}
	if len(policy.Roles) > 0 {
		roles := append([]string(nil), policy.Roles...)
		steps = append(steps, func(c *gin.Context) error {
			return checkRoles(CurrentIdentity(c), roles)
		})
	}
	if len(policy.Permissions) > 0 {
		perms := append([]string(nil), policy.Permissions...)
		steps = append(steps, func(c *gin.Context) error {
			return checkPermissions(CurrentIdentity(c), perms)
		})
	}

	return func(c *gin.Context) {
		for _, step := range steps {
			if err := step(c); err != nil {
				writeError(c, err)
				return
			}
		}
		c.Next()
	}
}

func (g *Guard) authenticate(c *gin.Context) error {
	token := extractAccessToken(c)
	if token == "" {
		return fmt.Errorf("%w: missing access token", service.ErrUnauthorized)
	}
	identity, err := g.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		return err
	}
	c.Set(identityKey, identity)
	return nil
}

// extractAccessToken - 쿠키 우선, 없으면 Authorization: Bearer 헤더
func extractAccessToken(c *gin.Context) string {
	if cookie, err := c.Cookie(service.AccessCookieName); err == nil && strings.TrimSpace(cookie) != "" {
		return strings.TrimSpace(cookie)
	}
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// CurrentIdentity - 인증 단계에서 저장한 Identity. 공개 라우트에서는 nil
func CurrentIdentity(c *gin.Context) *model.Identity {
	if value, ok := c.Get(identityKey); ok {
		if identity, ok := value.(*model.Identity); ok {
			return identity
		}
	}
	return nil
}

func checkRoles(identity *model.Identity, roles []string) error {
	if identity == nil {
		return service.ErrUnauthorized
	}
	if !identity.HasAnyRole(roles...) {
		return fmt.Errorf("%w: requires one of roles %v", service.ErrForbidden, roles)
	}
	return nil
}

func checkPermissions(identity *model.Identity, perms []string) error {
	if identity == nil {
		return service.ErrUnauthorized
	}
	for _, perm := range perms {
		if !identity.HasPermission(perm) {
			return fmt.Errorf("%w: missing permission %s", service.ErrForbidden, perm)
		}
	}
	return nil
}
