package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/postboard/backend/internal/model"
)

var ErrRoleNotSeeded = errors.New("role not seeded")

const selectUserWithRoles = `
	SELECT u.id, u.email, u.password_hash, u.name, u.avatar, u.provider, u.provider_id,
		u.is_active, u.email_verified, u.last_login_at, u.created_at, u.updated_at,
		COALESCE(array_agg(r.name ORDER BY r.name) FILTER (WHERE r.name IS NOT NULL), '{}') AS roles
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id
`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		user     model.User
		provider string
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Avatar,
		&provider,
		&user.ProviderID,
		&user.IsActive,
		&user.EmailVerified,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Roles,
	)
	if err != nil {
		return nil, err
	}
	user.Provider = model.AuthProvider(provider)
	return &user, nil
}

// CreateUserWithRole - 사용자 생성과 기본 역할 부여를 하나의 트랜잭션으로 처리
func (db *Postgres) CreateUserWithRole(ctx context.Context, user *model.User, role string) (*model.User, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var (
		created  model.User
		provider string
	)
	err = tx.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, name, avatar, provider, provider_id, is_active, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, NOW(), NOW())
		RETURNING id, email, password_hash, name, avatar, provider, provider_id, is_active, email_verified, last_login_at, created_at, updated_at
	`, user.Email, user.PasswordHash, user.Name, user.Avatar, string(user.Provider), user.ProviderID, user.EmailVerified).Scan(
		&created.ID,
		&created.Email,
		&created.PasswordHash,
		&created.Name,
		&created.Avatar,
		&provider,
		&created.ProviderID,
		&created.IsActive,
		&created.EmailVerified,
		&created.LastLoginAt,
		&created.CreatedAt,
		&created.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	created.Provider = model.AuthProvider(provider)

	tag, err := tx.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, assigned_at)
		SELECT $1, id, NOW() FROM roles WHERE name = $2
	`, created.ID, role)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() != 1 {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotSeeded, role)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	created.Roles = []string{role}
	return &created, nil
}

func (db *Postgres) GetUserByEmailAndProvider(ctx context.Context, email string, provider model.AuthProvider) (*model.User, error) {
	query := selectUserWithRoles + `
		WHERE u.email = $1 AND u.provider = $2
		GROUP BY u.id
	`
	return scanUser(db.Pool.QueryRow(ctx, query, email, string(provider)))
}

func (db *Postgres) GetUserByID(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	query := selectUserWithRoles + `
		WHERE u.id = $1
		GROUP BY u.id
	`
	return scanUser(db.Pool.QueryRow(ctx, query, userID))
}

func (db *Postgres) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1
	`, userID)
	return err
}

// AssignRole - 이미 부여된 역할이면 아무것도 하지 않음
func (db *Postgres) AssignRole(ctx context.Context, userID uuid.UUID, role string) error {
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, assigned_at)
		SELECT $1, id, NOW() FROM roles WHERE name = $2
		ON CONFLICT (user_id, role_id) DO NOTHING
	`, userID, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)`, role).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrRoleNotSeeded, role)
		}
	}
	return nil
}

// GetPermissionsForRoles - 역할 집합이 가진 권한 이름의 합집합
func (db *Postgres) GetPermissionsForRoles(ctx context.Context, roles []string) ([]string, error) {
	if len(roles) == 0 {
		return []string{}, nil
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT DISTINCT p.name
		FROM roles r
		JOIN role_permissions rp ON rp.role_id = r.id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE r.name = ANY($1)
		ORDER BY p.name
	`, roles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}

func (db *Postgres) InsertRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, device_id, ip_address, user_agent, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	_, err := db.Pool.Exec(ctx, query,
		token.UserID,
		token.TokenHash,
		token.DeviceID,
		token.IPAddress,
		token.UserAgent,
		token.ExpiresAt,
	)
	return err
}

// ClaimRefreshToken - 유효한 토큰을 단일 조건부 UPDATE 로 폐기하고 소유자와 그 시점의 세션 epoch 를 돌려준다.
// 동시에 같은 토큰으로 들어온 요청 중 하나만 행을 얻고, 나머지는 pgx.ErrNoRows.
func (db *Postgres) ClaimRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, int64, error) {
	var (
		userID uuid.UUID
		epoch  int64
	)
	err := db.Pool.QueryRow(ctx, `
		UPDATE refresh_tokens rt
		SET is_revoked = TRUE, last_used_at = NOW()
		FROM users u
		WHERE rt.token_hash = $1 AND rt.is_revoked = FALSE AND rt.expires_at > NOW()
			AND u.id = rt.user_id
		RETURNING rt.user_id, u.session_epoch
	`, tokenHash).Scan(&userID, &epoch)
	return userID, epoch, err
}

// SessionEpoch - 사용자의 현재 세션 epoch.
// 진행 중인 전체 폐기 트랜잭션이 있으면 커밋될 때까지 기다린 뒤의 값을 읽는다.
func (db *Postgres) SessionEpoch(ctx context.Context, userID uuid.UUID) (int64, error) {
	var epoch int64
	err := db.Pool.QueryRow(ctx, `
		SELECT session_epoch FROM users WHERE id = $1 FOR SHARE
	`, userID).Scan(&epoch)
	return epoch, err
}

func (db *Postgres) RevokeRefreshTokenByHash(ctx context.Context, tokenHash string) error {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = TRUE
		WHERE token_hash = $1 AND is_revoked = FALSE
	`
	_, err := db.Pool.Exec(ctx, query, tokenHash)
	return err
}

// RevokeAllRefreshTokens - 세션 epoch 증가와 전체 토큰 폐기를 한 트랜잭션으로 처리.
// epoch 가 바뀌면 그 전에 claim 된 회전은 새 토큰을 발급해도 스스로 폐기한다.
func (db *Postgres) RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) (int64, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `
		UPDATE users SET session_epoch = session_epoch + 1, updated_at = NOW() WHERE id = $1
	`, userID); err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET is_revoked = TRUE
		WHERE user_id = $1 AND is_revoked = FALSE
	`, userID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
