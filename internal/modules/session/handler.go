package session

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"activepanel/internal/domain"
	"activepanel/internal/pkg/response"
	"activepanel/internal/pkg/token"
)

const refreshCookieName = "refresh_token"

// CookieConfig controls the refresh-token transport. The cookie is httpOnly
// and path-scoped to the refresh endpoint so scripts never see it and it only
// travels on refresh calls.
type CookieConfig struct {
	Secure   bool
	SameSite http.SameSite
	Path     string
	MaxAge   int
}

type Handler struct {
	service *Service
	cookies CookieConfig
	google  GoogleVerifier
}

// NewHandler creates the auth handler. google may be nil; the Google route is
// only registered when a verifier is wired in.
func NewHandler(service *Service, cookies CookieConfig, google GoogleVerifier) *Handler {
	return &Handler{service: service, cookies: cookies, google: google}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		if h.google != nil {
			authGroup.POST("/google", h.GoogleLogin)
		}
	}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	protected.POST("/auth/logout", h.Logout)
	protected.POST("/auth/revoke-all", h.RevokeAll)
	protected.GET("/users/me", h.GetMe)
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	user, pair, err := h.service.Register(c.Request.Context(), req, clientMeta(c))
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			response.Error(c, http.StatusConflict, "EMAIL_EXISTS", "This email is already registered")
			return
		}
		response.Error(c, http.StatusInternalServerError, "REGISTRATION_FAILED", "Failed to register")
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	response.Success(c, http.StatusCreated, gin.H{
		"user":         toUserResponse(user),
		"access_token": pair.AccessToken,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	user, pair, err := h.service.Login(c.Request.Context(), req, clientMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Email or password is incorrect")
		case errors.Is(err, ErrPasswordLoginUnavailable):
			response.Error(c, http.StatusUnauthorized, "PASSWORD_LOGIN_UNAVAILABLE", "Please login with Google")
		default:
			response.Error(c, http.StatusInternalServerError, "LOGIN_FAILED", "Failed to login")
		}
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	response.Success(c, http.StatusOK, gin.H{
		"user":         toUserResponse(user),
		"access_token": pair.AccessToken,
	})
}

func (h *Handler) GoogleLogin(c *gin.Context) {
	var req GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	profile, err := h.google.Verify(c.Request.Context(), req.IDToken)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "INVALID_GOOGLE_TOKEN", "Google token verification failed")
		return
	}

	user, pair, err := h.service.LoginWithGoogle(c.Request.Context(), profile, clientMeta(c))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "LOGIN_FAILED", "Failed to login")
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	response.Success(c, http.StatusOK, gin.H{
		"user":         toUserResponse(user),
		"access_token": pair.AccessToken,
	})
}

// Refresh rotates the refresh token. Browsers send it via the path-scoped
// cookie; non-browser clients may pass it in the body. Every failure clears
// the cookie so a broken client stops replaying a dead token.
func (h *Handler) Refresh(c *gin.Context) {
	raw := h.refreshTokenFrom(c)
	if raw == "" {
		response.Error(c, http.StatusUnauthorized, "NO_REFRESH_TOKEN", "No refresh token provided")
		return
	}

	pair, err := h.service.Refresh(c.Request.Context(), raw, clientMeta(c))
	if err != nil {
		h.clearRefreshCookie(c)
		switch {
		case errors.Is(err, ErrReuseDetected):
			response.Error(c, http.StatusUnauthorized, "TOKEN_REUSE_DETECTED", "Session invalidated, please login again")
		case errors.Is(err, ErrInvalidRefreshToken):
			response.Error(c, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Refresh token is invalid or expired")
		default:
			response.Error(c, http.StatusInternalServerError, "REFRESH_FAILED", "Failed to refresh session")
		}
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	response.Success(c, http.StatusOK, gin.H{
		"access_token": pair.AccessToken,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	claims := accessClaimsFrom(c)
	if claims == nil {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	if err := h.service.Logout(c.Request.Context(), claims, h.refreshTokenFrom(c)); err != nil {
		response.Error(c, http.StatusInternalServerError, "LOGOUT_FAILED", "Failed to logout")
		return
	}

	h.clearRefreshCookie(c)
	response.Success(c, http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *Handler) RevokeAll(c *gin.Context) {
	claims := accessClaimsFrom(c)
	if claims == nil {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	if err := h.service.RevokeAllSessions(c.Request.Context(), claims); err != nil {
		response.Error(c, http.StatusInternalServerError, "REVOKE_FAILED", "Failed to revoke sessions")
		return
	}

	h.clearRefreshCookie(c)
	response.Success(c, http.StatusOK, gin.H{"message": "All sessions revoked"})
}

func (h *Handler) GetMe(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	user, err := h.service.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": toUserResponse(user)})
}

func (h *Handler) refreshTokenFrom(c *gin.Context) string {
	if cookie, err := c.Cookie(refreshCookieName); err == nil && cookie != "" {
		return cookie
	}
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		return strings.TrimSpace(req.RefreshToken)
	}
	return ""
}

func (h *Handler) setRefreshCookie(c *gin.Context, value string) {
	c.SetSameSite(h.cookies.SameSite)
	c.SetCookie(refreshCookieName, value, h.cookies.MaxAge, h.cookies.Path, "", h.cookies.Secure, true)
}

func (h *Handler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(h.cookies.SameSite)
	c.SetCookie(refreshCookieName, "", -1, h.cookies.Path, "", h.cookies.Secure, true)
}

func clientMeta(c *gin.Context) ClientMeta {
	return ClientMeta{
		UserAgent: c.Request.UserAgent(),
		IP:        c.ClientIP(),
	}
}

func accessClaimsFrom(c *gin.Context) *token.AccessClaims {
	v, exists := c.Get("access_claims")
	if !exists {
		return nil
	}
	claims, ok := v.(*token.AccessClaims)
	if !ok {
		return nil
	}
	return claims
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.DisplayName,
		Role:      string(u.Role),
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt.Format("2006-01-02"),
	}
}
