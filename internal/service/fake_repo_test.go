package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/postboard/backend/internal/model"
)

var rolePermissions = map[string][]string{
	model.RoleUser:      {model.PermPostsCreate, model.PermPostsRead, model.PermPostsUpdate},
	model.RoleModerator: {model.PermPostsCreate, model.PermPostsRead, model.PermPostsUpdate, model.PermPostsDelete, model.PermUsersManage},
	model.RoleAdmin:     {model.PermPostsCreate, model.PermPostsRead, model.PermPostsUpdate, model.PermPostsDelete, model.PermUsersManage, model.PermRolesManage},
}

type fakeToken struct {
	userID    uuid.UUID
	expiresAt time.Time
	revoked   bool
}

// fakeRepo - Postgres 저장소와 같은 계약을 지키는 메모리 구현.
// ClaimRefreshToken 은 잠금 안에서 조건 확인과 폐기를 함께 수행한다.
type fakeRepo struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*model.User
	tokens map[string]*fakeToken
	posts  map[int64]*model.Post
	epochs map[uuid.UUID]int64
	nextID int64

	failWith error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:  make(map[uuid.UUID]*model.User),
		tokens: make(map[string]*fakeToken),
		posts:  make(map[int64]*model.Post),
		epochs: make(map[uuid.UUID]int64),
	}
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.Roles = append([]string(nil), u.Roles...)
	return &c
}

func (f *fakeRepo) CreateUserWithRole(ctx context.Context, user *model.User, role string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		if u.Email == user.Email && u.Provider == user.Provider {
			return nil, &pgconn.PgError{Code: "23505"}
		}
	}
	if _, ok := rolePermissions[role]; !ok {
		return nil, errors.New("role not seeded")
	}
	created := cloneUser(user)
	created.ID = uuid.New()
	created.IsActive = true
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	created.Roles = []string{role}
	f.users[created.ID] = created
	return cloneUser(created), nil
}

func (f *fakeRepo) GetUserByEmailAndProvider(ctx context.Context, email string, provider model.AuthProvider) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		if u.Email == email && u.Provider == provider {
			return cloneUser(u), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneUser(u), nil
}

func (f *fakeRepo) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		now := time.Now()
		u.LastLoginAt = &now
	}
	return nil
}

func (f *fakeRepo) AssignRole(ctx context.Context, userID uuid.UUID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	for _, r := range u.Roles {
		if r == role {
			return nil
		}
	}
	u.Roles = append(u.Roles, role)
	sort.Strings(u.Roles)
	return nil
}

func (f *fakeRepo) GetPermissionsForRoles(ctx context.Context, roles []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	set := map[string]struct{}{}
	for _, r := range roles {
		for _, p := range rolePermissions[r] {
			set[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeRepo) InsertRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tokens[token.TokenHash]; ok {
		return &pgconn.PgError{Code: "23505"}
	}
	f.tokens[token.TokenHash] = &fakeToken{userID: token.UserID, expiresAt: token.ExpiresAt}
	return nil
}

func (f *fakeRepo) ClaimRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[tokenHash]
	if !ok || t.revoked || !t.expiresAt.After(time.Now()) {
		return uuid.Nil, 0, pgx.ErrNoRows
	}
	t.revoked = true
	return t.userID, f.epochs[t.userID], nil
}

func (f *fakeRepo) SessionEpoch(ctx context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return 0, pgx.ErrNoRows
	}
	return f.epochs[userID], nil
}

func (f *fakeRepo) RevokeRefreshTokenByHash(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tokens[tokenHash]; ok {
		t.revoked = true
	}
	return nil
}

func (f *fakeRepo) RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.epochs[userID]++
	var n int64
	for _, t := range f.tokens {
		if t.userID == userID && !t.revoked {
			t.revoked = true
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) activeTokens(userID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tokens {
		if t.userID == userID && !t.revoked {
			n++
		}
	}
	return n
}

func (f *fakeRepo) setActive(userID uuid.UUID, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID].IsActive = active
}

func (f *fakeRepo) ListPosts(ctx context.Context) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Post, 0, len(f.posts))
	for _, p := range f.posts {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeRepo) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *p
	return &c, nil
}

func (f *fakeRepo) CreatePost(ctx context.Context, post model.Post) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	post.ID = f.nextID
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	f.posts[post.ID] = &post
	c := post
	return &c, nil
}

func (f *fakeRepo) UpdatePost(ctx context.Context, id int64, title, content *string) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if title != nil {
		p.Title = *title
	}
	if content != nil {
		p.Content = *content
	}
	p.UpdatedAt = time.Now()
	c := *p
	return &c, nil
}

func (f *fakeRepo) DeletePost(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.posts, id)
	return nil
}

// fakeSessions - session.Store 와 같은 계약 (TTL 은 만료 시각으로만 흉내)
type fakeSessions struct {
	mu      sync.Mutex
	entries    map[string]string
	failGet    error
	failDelete error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{entries: make(map[string]string)}
}

func (s *fakeSessions) Put(ctx context.Context, tokenHash, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[tokenHash] = userID
	return nil
}

func (s *fakeSessions) Get(ctx context.Context, tokenHash string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return "", false, s.failGet
	}
	v, ok := s.entries[tokenHash]
	return v, ok, nil
}

func (s *fakeSessions) Delete(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete != nil {
		return s.failDelete
	}
	delete(s.entries, tokenHash)
	return nil
}

func (s *fakeSessions) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, v := range s.entries {
		if v == userID {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func (s *fakeSessions) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
