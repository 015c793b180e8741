package stub

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/netpanel/netpanel/clients/go-auth/internal/config"
	"github.com/netpanel/netpanel/clients/go-auth/pkg/logger"
)

// LoginRequest is the password-grant login body the portals send.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Portal   string `json:"portal"`
}

// AuthHandler wires the stub auth endpoints onto a Gin router.
type AuthHandler struct {
	cfg      *config.Config
	accounts AccountRepository
	sessions *SessionService
	verifier Verifier
}

func NewAuthHandler(cfg *config.Config, accounts AccountRepository, sessions *SessionService, verifier Verifier) *AuthHandler {
	return &AuthHandler{cfg: cfg, accounts: accounts, sessions: sessions, verifier: verifier}
}

// Register mounts /auth/* and the token-protected /api/v1/me.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)

	api := rg.Group("/api/v1")
	api.Use(AuthMiddleware(h.verifier))
	api.GET("/me", h.Me)
}

// Login checks the password against the account store and mints a token
// pair plus the per-session CSRF token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, err := h.accounts.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		logger.Errorf("account lookup error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "account lookup failed"})
		return
	}
	if acct == nil || !acct.CheckPassword(req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	accessTTL := h.cfg.JWT.AccessTokenTTL
	access, err := MintAccessToken(h.cfg.JWT.Secret, &acct.User, accessTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	refresh, err := h.sessions.Create(c.Request.Context(), acct.User.Email, h.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		logger.Errorf("failed to create refresh session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	csrfToken, err := randomToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create csrf token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":         acct.User,
		"accessToken":  access,
		"refreshToken": refresh,
		"expiresIn":    int(accessTTL.Seconds()),
		"sessionId":    uuid.NewString(),
		"csrfToken":    csrfToken,
	})
}

// Refresh rotates the refresh session and returns a fresh pair. An unknown
// or expired token is a definitive 401.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.sessions.Validate(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	acct, err := h.accounts.GetByEmail(c.Request.Context(), sess.Email)
	if err != nil || acct == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "account lookup failed"})
		return
	}

	accessTTL := h.cfg.JWT.AccessTokenTTL
	access, err := MintAccessToken(h.cfg.JWT.Secret, &acct.User, accessTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	rotated, err := h.sessions.Rotate(c.Request.Context(), sess, h.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		logger.Errorf("refresh rotation error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  access,
		"refreshToken": rotated,
		"expiresIn":    int(accessTTL.Seconds()),
	})
}

// Logout revokes the refresh session. Revoking an unknown token still
// returns 200 so client cleanup never stalls on a race.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.RefreshToken != "" {
		if err := h.sessions.Delete(c.Request.Context(), req.RefreshToken); err != nil {
			logger.Warnf("logout session delete error: %v", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// Me returns the account behind the verified bearer token.
func (h *AuthHandler) Me(c *gin.Context) {
	v, ok := c.Get("claims")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no claims"})
		return
	}
	claims, ok := v.(map[string]interface{})
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bad claims"})
		return
	}
	email, _ := claims["email"].(string)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token missing email"})
		return
	}

	acct, err := h.accounts.GetByEmail(c.Request.Context(), email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "account lookup failed"})
		return
	}
	if acct == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": acct.User})
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
