package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/rizkypriyo/go-accounts-api/internal/application"
	"github.com/rizkypriyo/go-accounts-api/internal/infrastructure/postgres"
	"github.com/rizkypriyo/go-accounts-api/pkg/response"
	"github.com/rizkypriyo/go-accounts-api/pkg/validation"
)

// TokenHandler owns the JWT session lifecycle endpoints: create a pair,
// refresh an access token, blacklist a refresh token on logout.
type TokenHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
	Audit  *postgres.AuditRepository
}

func NewTokenHandler(svc *userapp.Service, logger *logrus.Logger, audit *postgres.AuditRepository) *TokenHandler {
	return &TokenHandler{Svc: svc, Logger: logger, Audit: audit}
}

type createTokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

// Create POST /auth/jwt/create/
// Bad credentials and inactive accounts get the same generic 401 so the
// endpoint cannot be used to probe which accounts exist or are activated.
func (h *TokenHandler) Create(c *gin.Context) {
	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}

	u, pair, err := h.Svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.audit(c, "", "", "login_failed", map[string]any{"username": req.Username})
		resp := response.Error[any](c, http.StatusUnauthorized, "no active account found with the given credentials", nil)
		c.JSON(resp.Status, resp)
		return
	}
	h.audit(c, u.ID, u.Email, "login", nil)
	resp := response.Success(c, http.StatusOK, gin.H{
		"access":  pair.AccessToken,
		"refresh": pair.RefreshToken,
	}, "token pair issued", map[string]any{
		"access_expires_at":  pair.AccessTokenExpiry,
		"refresh_expires_at": pair.RefreshTokenExpiry,
	})
	c.JSON(resp.Status, resp)
}

// Refresh POST /auth/jwt/refresh/
func (h *TokenHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	access, exp, err := h.Svc.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		resp := response.Error[any](c, http.StatusUnauthorized, "token is invalid or expired", nil)
		c.JSON(resp.Status, resp)
		return
	}
	resp := response.Success(c, http.StatusOK, gin.H{"access": access}, "token refreshed",
		map[string]any{"access_expires_at": exp})
	c.JSON(resp.Status, resp)
}

// Blacklist POST /auth/token/blacklist/
// Logout. Idempotent: re-submitting an already-blacklisted token succeeds.
func (h *TokenHandler) Blacklist(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	if err := h.Svc.Logout(c.Request.Context(), req.Refresh); err != nil {
		resp := response.Error[any](c, http.StatusUnauthorized, "token is invalid", nil)
		c.JSON(resp.Status, resp)
		return
	}
	h.audit(c, "", "", "logout", nil)
	resp := response.Success[any](c, http.StatusOK, gin.H{"blacklisted": true}, "logged out", nil)
	c.JSON(resp.Status, resp)
}

func (h *TokenHandler) audit(c *gin.Context, userID, email, action string, metadata map[string]any) {
	if h.Audit == nil {
		return
	}
	_ = h.Audit.Insert(c.Request.Context(), postgres.AuditEntry{
		UserID:    userID,
		Email:     email,
		Action:    action,
		IP:        clientIP(c),
		UserAgent: c.GetHeader("User-Agent"),
		Metadata:  metadata,
	})
}
