package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/postboard/backend/internal/model"
	"github.com/postboard/backend/internal/service"
)

type postService interface {
	ListPosts(ctx context.Context) ([]model.Post, error)
	GetPost(ctx context.Context, id int64) (*model.Post, error)
	CreatePost(ctx context.Context, identity *model.Identity, req model.CreatePostRequest) (*model.Post, error)
	UpdatePost(ctx context.Context, identity *model.Identity, id int64, req model.UpdatePostRequest) (*model.Post, error)
	DeletePost(ctx context.Context, identity *model.Identity, id int64) error
}

type PostHandler struct {
	svc postService
}

func NewPostHandler(svc postService) *PostHandler {
	return &PostHandler{svc: svc}
}

// ListPosts godoc
// @Summary List posts
// @Tags posts
// @Produce json
// @Success 200 {array} model.Post
// @Failure 503 {object} model.ErrorResponse
// @Router /posts [get]
func (h *PostHandler) ListPosts(c *gin.Context) {
	posts, err := h.svc.ListPosts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if posts == nil {
		posts = []model.Post{}
	}
	c.JSON(http.StatusOK, posts)
}

// GetPost godoc
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} model.Post
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /posts/{id} [get]
func (h *PostHandler) GetPost(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	post, err := h.svc.GetPost(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// CreatePost godoc
// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body model.CreatePostRequest true "Title and content"
// @Success 201 {object} model.Post
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /posts [post]
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req model.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	identity := CurrentIdentity(c)
	if identity == nil {
		writeError(c, service.ErrUnauthorized)
		return
	}

	post, err := h.svc.CreatePost(c.Request.Context(), identity, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// UpdatePost godoc
// @Summary Update a post
// @Description Only the author, ADMIN or MODERATOR may update.
// @Tags posts
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param id path int true "Post ID"
// @Param request body model.UpdatePostRequest true "Fields to change"
// @Success 200 {object} model.Post
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /posts/{id} [patch]
func (h *PostHandler) UpdatePost(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	var req model.UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	identity := CurrentIdentity(c)
	if identity == nil {
		writeError(c, service.ErrUnauthorized)
		return
	}

	post, err := h.svc.UpdatePost(c.Request.Context(), identity, id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeletePost godoc
// @Summary Delete a post
// @Description Only the author, ADMIN or MODERATOR may delete.
// @Tags posts
// @Security CookieAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /posts/{id} [delete]
func (h *PostHandler) DeletePost(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	identity := CurrentIdentity(c)
	if identity == nil {
		writeError(c, service.ErrUnauthorized)
		return
	}

	if err := h.svc.DeletePost(c.Request.Context(), identity, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func postID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid input", Field: "id", Message: "must be a positive integer"})
		return 0, false
	}
	return id, true
}
