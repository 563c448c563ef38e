package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/postboard/backend/internal/model"
)

const postColumns = `id, title, content, author_id, created_at, updated_at`

func scanPost(row pgx.Row) (*model.Post, error) {
	var p model.Post
	if err := row.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPosts - 최신순
func (db *Postgres) ListPosts(ctx context.Context) ([]model.Post, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

func (db *Postgres) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	return scanPost(db.Pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
}

func (db *Postgres) CreatePost(ctx context.Context, post model.Post) (*model.Post, error) {
	return scanPost(db.Pool.QueryRow(ctx, `
		INSERT INTO posts (title, content, author_id, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING `+postColumns,
		post.Title, post.Content, post.AuthorID,
	))
}

// UpdatePost - nil 필드는 기존 값 유지
func (db *Postgres) UpdatePost(ctx context.Context, id int64, title, content *string) (*model.Post, error) {
	return scanPost(db.Pool.QueryRow(ctx, `
		UPDATE posts
		SET title = COALESCE($2, title),
			content = COALESCE($3, content),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+postColumns,
		id, title, content,
	))
}

// DeletePost - 삭제된 행이 없으면 pgx.ErrNoRows
func (db *Postgres) DeletePost(ctx context.Context, id int64) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
