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

// AuthHandler owns the email-driven credential flows: account activation
// and password reset.
type AuthHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
	Audit  *postgres.AuditRepository
}

func NewAuthHandler(svc *userapp.Service, logger *logrus.Logger, audit *postgres.AuditRepository) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger, Audit: audit}
}

type activationRequest struct {
	UID   string `json:"uid" binding:"required"`
	Token string `json:"token" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetConfirmRequest struct {
	UID           string `json:"uid" binding:"required"`
	Token         string `json:"token" binding:"required"`
	NewPassword   string `json:"new_password" binding:"required,pwd"`
	ReNewPassword string `json:"re_new_password" binding:"required,eqfield=NewPassword"`
}

// Activation POST /auth/users/activation/ {uid, token}
func (h *AuthHandler) Activation(c *gin.Context) {
	var req activationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	if err := h.Svc.Activate(c.Request.Context(), req.UID, req.Token); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid or expired token", nil)
		c.JSON(resp.Status, resp)
		return
	}
	h.audit(c, req.UID, "", "activation", nil)
	c.Status(http.StatusNoContent)
}

// ResendActivation POST /auth/users/resend_activation/ {email}
// Always 204 so the endpoint cannot be used to enumerate accounts.
func (h *AuthHandler) ResendActivation(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	h.Svc.ResendActivation(c.Request.Context(), req.Email)
	h.audit(c, "", req.Email, "resend_activation", nil)
	c.Status(http.StatusNoContent)
}

// ResetPassword POST /auth/users/reset_password/ {email}
// Always 204; the email is sent only when the address is known.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	h.Svc.RequestPasswordReset(c.Request.Context(), req.Email)
	h.audit(c, "", req.Email, "reset_password_request", nil)
	c.Status(http.StatusNoContent)
}

// ResetPasswordConfirm POST /auth/users/reset_password_confirm/ {uid, token, new_password, re_new_password}
func (h *AuthHandler) ResetPasswordConfirm(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		c.JSON(resp.Status, resp)
		return
	}
	if err := h.Svc.ConfirmPasswordReset(c.Request.Context(), req.UID, req.Token, req.NewPassword); err != nil {
		resp := response.Error[any](c, http.StatusBadRequest, "invalid or expired token", nil)
		c.JSON(resp.Status, resp)
		return
	}
	h.audit(c, req.UID, "", "reset_password_confirm", nil)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) audit(c *gin.Context, userID, email, action string, metadata map[string]any) {
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
