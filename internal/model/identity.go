package model

import (
	"slices"

	"github.com/google/uuid"
)

// Identity - 인증 가드에서 한 번 만들어지고 이후 읽기 전용으로만 전달되는 요청 주체
type Identity struct {
	userID      uuid.UUID
	email       string
	roles       map[string]struct{}
	permissions map[string]struct{}
}

func NewIdentity(userID uuid.UUID, email string, roles, permissions []string) *Identity {
	id := &Identity{
		userID:      userID,
		email:       email,
		roles:       make(map[string]struct{}, len(roles)),
		permissions: make(map[string]struct{}, len(permissions)),
	}
	for _, r := range roles {
		id.roles[r] = struct{}{}
	}
	for _, p := range permissions {
		id.permissions[p] = struct{}{}
	}
	return id
}

func (i *Identity) UserID() uuid.UUID { return i.userID }

func (i *Identity) Email() string { return i.email }

func (i *Identity) HasRole(role string) bool {
	_, ok := i.roles[role]
	return ok
}

func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if i.HasRole(r) {
			return true
		}
	}
	return false
}

func (i *Identity) HasPermission(permission string) bool {
	_, ok := i.permissions[permission]
	return ok
}

// ADMIN/MODERATOR 는 게시글 소유자 검사를 건너뛴다
func (i *Identity) BypassesOwnership() bool {
	return i.HasAnyRole(RoleAdmin, RoleModerator)
}

// Roles 는 정렬된 복사본을 돌려준다
func (i *Identity) Roles() []string {
	return sortedKeys(i.roles)
}

func (i *Identity) Permissions() []string {
	return sortedKeys(i.permissions)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
