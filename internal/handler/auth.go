package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/postboard/backend/internal/client"
	"github.com/postboard/backend/internal/model"
	"github.com/postboard/backend/internal/service"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600
	deviceIDHeader   = "X-Device-Id"
)

type authService interface {
	CookieConfig() service.CookieConfig
	Register(ctx context.Context, email, password, name string) (*model.User, error)
	Login(ctx context.Context, email, password string, meta service.ClientMeta) (*model.User, service.TokenPair, error)
	FederatedLogin(ctx context.Context, provider model.AuthProvider, profile model.OAuthProfile, meta service.ClientMeta) (*model.User, service.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string, meta service.ClientMeta) (*model.User, service.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) (int64, error)
	CurrentUser(ctx context.Context, userID uuid.UUID) (*model.User, error)
}

type AuthHandler struct {
	svc         authService
	frontendURL string
}

func NewAuthHandler(svc authService, frontendURL string) *AuthHandler {
	return &AuthHandler{
		svc:         svc,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// Register godoc
// @Summary Register a new local user
// @Description Creates a LOCAL account with the default USER role. Does not log in.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.RegisterRequest true "Email, password and display name"
// @Success 201 {object} model.User
// @Failure 400 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	user, err := h.svc.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Login godoc
// @Summary Login with email and password
// @Description Sets access_token and refresh_token HttpOnly cookies.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Email and password"
// @Success 200 {object} model.LoginResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	user, pair, err := h.svc.Login(c.Request.Context(), req.Email, req.Password, clientMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}

	h.setTokenCookies(c, pair)
	c.JSON(http.StatusOK, model.LoginResponse{User: user, Message: "login successful"})
}

// Refresh godoc
// @Summary Rotate the refresh token
// @Description Uses the refresh_token cookie. The presented token is revoked and a new pair is set.
// @Tags auth
// @Produce json
// @Success 200 {object} model.MessageResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(service.RefreshCookieName)
	_, pair, err := h.svc.Refresh(c.Request.Context(), refreshToken, clientMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}

	h.setTokenCookies(c, pair)
	c.JSON(http.StatusOK, model.MessageResponse{Message: "token refreshed"})
}

// Logout godoc
// @Summary Logout
// @Description Revokes the refresh token (if present) and clears both cookies.
// @Tags auth
// @Produce json
// @Success 200 {object} model.MessageResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken, _ := c.Cookie(service.RefreshCookieName)
	err := h.svc.Logout(c.Request.Context(), refreshToken)
	// 폐기 실패여도 브라우저 쿠키는 지우고, 실패 자체는 그대로 알린다
	h.clearTokenCookies(c)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "logged out"})
}

// LogoutAll godoc
// @Summary Logout from every device
// @Tags auth
// @Produce json
// @Security CookieAuth
// @Success 200 {object} model.RevokeSessionsResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	identity := CurrentIdentity(c)
	if identity == nil {
		writeError(c, service.ErrUnauthorized)
		return
	}

	revoked, err := h.svc.RevokeAllUserTokens(c.Request.Context(), identity.UserID())
	if err != nil {
		writeError(c, err)
		return
	}
	h.clearTokenCookies(c)
	c.JSON(http.StatusOK, model.RevokeSessionsResponse{Message: "logged out from all devices", Revoked: revoked})
}

// Me godoc
// @Summary Get current user
// @Tags auth
// @Produce json
// @Security CookieAuth
// @Success 200 {object} model.User
// @Failure 401 {object} model.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	identity := CurrentIdentity(c)
	if identity == nil {
		writeError(c, service.ErrUnauthorized)
		return
	}

	user, err := h.svc.CurrentUser(c.Request.Context(), identity.UserID())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// RevokeSessions godoc
// @Summary Revoke every session of a user
// @Tags users
// @Produce json
// @Security CookieAuth
// @Param id path string true "User ID"
// @Success 200 {object} model.RevokeSessionsResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /users/{id}/revoke-sessions [post]
func (h *AuthHandler) RevokeSessions(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid input", Field: "id", Message: "must be a uuid"})
		return
	}

	revoked, err := h.svc.RevokeAllUserTokens(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	slog.Info("sessions revoked by admin", "target_user_id", userID, "actor", CurrentIdentity(c).UserID())
	c.JSON(http.StatusOK, model.RevokeSessionsResponse{Message: "sessions revoked", Revoked: revoked})
}

// OAuthStart godoc
// @Summary Start OAuth login
// @Description Sets the oauth_state cookie and redirects to the provider's consent page. Only configured providers are routed.
// @Tags auth
// @Param provider path string true "OAuth provider" Enums(google, github, kakao)
// @Success 302
// @Router /auth/{provider} [get]
func (h *AuthHandler) OAuthStart(provider client.OAuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := uuid.NewString()
		cfg := h.svc.CookieConfig()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(oauthStateCookie, state, oauthStateMaxAge, cfg.Path, cfg.Domain, cfg.Secure, true)
		c.Redirect(http.StatusFound, provider.AuthCodeURL(state))
	}
}

// OAuthCallback godoc
// @Summary OAuth callback
// @Description Checks state, exchanges the code, sets session cookies and redirects to FRONTEND_URL/?oauth=success.
// @Tags auth
// @Produce json
// @Param provider path string true "OAuth provider" Enums(google, github, kakao)
// @Param code query string false "Authorization code"
// @Param state query string true "State echoed by the provider"
// @Success 302
// @Failure 401 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /auth/{provider}/callback [get]
func (h *AuthHandler) OAuthCallback(provider client.OAuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := h.svc.CookieConfig()
		expected, _ := c.Cookie(oauthStateCookie)
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(oauthStateCookie, "", -1, cfg.Path, cfg.Domain, cfg.Secure, true)

		state := c.Query("state")
		if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
			slog.Warn("oauth state mismatch", "provider", provider.Name())
			writeError(c, service.ErrUnauthorized)
			return
		}
		if errParam := c.Query("error"); errParam != "" {
			slog.Warn("oauth provider returned error", "provider", provider.Name(), "error", errParam)
			writeError(c, service.ErrUnauthorized)
			return
		}

		profile, err := provider.Exchange(c.Request.Context(), c.Query("code"))
		if err != nil {
			slog.Warn("oauth exchange failed", "provider", provider.Name(), "error", err)
			writeError(c, service.ErrUnauthorized)
			return
		}

		_, pair, err := h.svc.FederatedLogin(c.Request.Context(), provider.Name(), *profile, clientMeta(c))
		if err != nil {
			writeError(c, err)
			return
		}

		h.setTokenCookies(c, pair)
		c.Redirect(http.StatusFound, h.frontendURL+"/?oauth=success")
	}
}

func (h *AuthHandler) setTokenCookies(c *gin.Context, pair service.TokenPair) {
	cfg := h.svc.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(service.AccessCookieName, pair.AccessToken, cfg.AccessMaxAge, cfg.Path, cfg.Domain, cfg.Secure, true)
	c.SetCookie(service.RefreshCookieName, pair.RefreshToken, cfg.RefreshMaxAge, cfg.Path, cfg.Domain, cfg.Secure, true)
}

func (h *AuthHandler) clearTokenCookies(c *gin.Context) {
	cfg := h.svc.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(service.AccessCookieName, "", -1, cfg.Path, cfg.Domain, cfg.Secure, true)
	c.SetCookie(service.RefreshCookieName, "", -1, cfg.Path, cfg.Domain, cfg.Secure, true)
}

func clientMeta(c *gin.Context) service.ClientMeta {
	return service.ClientMeta{
		DeviceID:  c.GetHeader(deviceIDHeader),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
