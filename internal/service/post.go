package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/postboard/backend/internal/db"
	"github.com/postboard/backend/internal/model"
)

const maxTitleLength = 255

// postRepo - DB 인터페이스
type postRepo interface {
	ListPosts(ctx context.Context) ([]model.Post, error)
	GetPost(ctx context.Context, id int64) (*model.Post, error)
	CreatePost(ctx context.Context, post model.Post) (*model.Post, error)
	UpdatePost(ctx context.Context, id int64, title, content *string) (*model.Post, error)
	DeletePost(ctx context.Context, id int64) error
}

// PostService - 게시글 CRUD. 수정/삭제는 작성자 본인 또는 ADMIN/MODERATOR 만 가능
type PostService struct {
	db postRepo
}

func NewPostService(db postRepo) *PostService {
	return &PostService{db: db}
}

func (s *PostService) ListPosts(ctx context.Context) ([]model.Post, error) {
	posts, err := s.db.ListPosts(ctx)
	if err != nil {
		return nil, unavailable("list posts", err)
	}
	return posts, nil
}

func (s *PostService) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	post, err := s.db.GetPost(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, fmt.Errorf("%w: post %d", ErrNotFound, id)
		}
		return nil, unavailable("get post", err)
	}
	return post, nil
}

func (s *PostService) CreatePost(ctx context.Context, identity *model.Identity, req model.CreatePostRequest) (*model.Post, error) {
	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if content == "" {
		return nil, invalid("content", "is required")
	}

	post, err := s.db.CreatePost(ctx, model.Post{
		Title:    title,
		Content:  content,
		AuthorID: identity.UserID(),
	})
	if err != nil {
		return nil, unavailable("create post", err)
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, identity *model.Identity, id int64, req model.UpdatePostRequest) (*model.Post, error) {
	var title, content *string
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if err := validateTitle(t); err != nil {
			return nil, err
		}
		title = &t
	}
	if req.Content != nil {
		c := strings.TrimSpace(*req.Content)
		if c == "" {
			return nil, invalid("content", "must not be empty")
		}
		content = &c
	}

	if err := s.authorize(ctx, identity, id); err != nil {
		return nil, err
	}

	post, err := s.db.UpdatePost(ctx, id, title, content)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, fmt.Errorf("%w: post %d", ErrNotFound, id)
		}
		return nil, unavailable("update post", err)
	}
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, identity *model.Identity, id int64) error {
	if err := s.authorize(ctx, identity, id); err != nil {
		return err
	}
	if err := s.db.DeletePost(ctx, id); err != nil {
		if db.IsNoRows(err) {
			return fmt.Errorf("%w: post %d", ErrNotFound, id)
		}
		return unavailable("delete post", err)
	}
	return nil
}

// authorize - 대상 게시글을 읽어야 하므로 요청 단위 가드가 아니라 여기서 검사한다
func (s *PostService) authorize(ctx context.Context, identity *model.Identity, id int64) error {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if post.AuthorID != identity.UserID() && !identity.BypassesOwnership() {
		return fmt.Errorf("%w: you can only modify your own posts", ErrForbidden)
	}
	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return invalid("title", "is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return invalid("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	}
	return nil
}
