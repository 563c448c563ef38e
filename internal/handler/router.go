package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/postboard/backend/internal/client"
	"github.com/postboard/backend/internal/model"
)

// Router - 라우트 등록에 필요한 의존성 묶음
type Router struct {
	Guard          *Guard
	Auth           *AuthHandler
	Posts          *PostHandler
	Health         *HealthHandler
	OAuthProviders []client.OAuthProvider
	AllowedOrigins []string
}

func (r Router) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogger(), CORSMiddleware(r.AllowedOrigins, true))

	public := r.Guard.For(Policy{Public: true})
	authenticated := r.Guard.For(Policy{})

	engine.GET("/ping", Ping)
	engine.GET("/", Root)
	engine.GET("/health", r.Health.Health)
	engine.GET("/openapi.json", OpenAPIDoc)

	auth := engine.Group("/auth")
	{
		auth.POST("/register", public, r.Auth.Register)
		auth.POST("/login", public, r.Auth.Login)
		auth.POST("/refresh", public, r.Auth.Refresh)
		auth.POST("/logout", public, r.Auth.Logout)
		auth.POST("/logout-all", authenticated, r.Auth.LogoutAll)
		auth.GET("/me", authenticated, r.Auth.Me)

		for _, provider := range r.OAuthProviders {
			name := strings.ToLower(string(provider.Name()))
			auth.GET("/"+name, public, r.Auth.OAuthStart(provider))
			auth.GET("/"+name+"/callback", public, r.Auth.OAuthCallback(provider))
		}
	}

	engine.POST("/users/:id/revoke-sessions",
		r.Guard.For(Policy{Permissions: []string{model.PermUsersManage}}),
		r.Auth.RevokeSessions)

	posts := engine.Group("/posts")
	{
		posts.GET("", public, r.Posts.ListPosts)
		posts.GET("/:id", public, r.Posts.GetPost)
		posts.POST("", r.Guard.For(Policy{Permissions: []string{model.PermPostsCreate}}), r.Posts.CreatePost)
		posts.PATCH("/:id", r.Guard.For(Policy{Permissions: []string{model.PermPostsUpdate}}), r.Posts.UpdatePost)
		posts.DELETE("/:id", r.Guard.For(Policy{Permissions: []string{model.PermPostsDelete}}), r.Posts.DeletePost)
	}

	return engine
}
