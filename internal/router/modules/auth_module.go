package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rizkypriyo/go-accounts-api/internal/container"
	handlers "github.com/rizkypriyo/go-accounts-api/internal/interface/http"
	"github.com/rizkypriyo/go-accounts-api/internal/interface/middleware"
)

// AuthModule wires the email-driven credential flows.
// Public: POST /auth/users/activation/, POST /auth/users/resend_activation/,
// POST /auth/users/reset_password/, POST /auth/users/reset_password_confirm/
type AuthModule struct {
	Handler *handlers.AuthHandler
}

func NewAuthModule(h *handlers.AuthHandler) *AuthModule {
	return &AuthModule{Handler: h}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	activationLimiter := middleware.RateLimit(container.GetRedis(), 30, time.Minute, middleware.KeyByIPAndPath(), nil)
	resendLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetInitLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetConfirmLimiter := middleware.RateLimit(container.GetRedis(), 30, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/auth/users/activation/", activationLimiter, m.Handler.Activation)
	rg.POST("/auth/users/resend_activation/", resendLimiter, m.Handler.ResendActivation)
	rg.POST("/auth/users/reset_password/", resetInitLimiter, m.Handler.ResetPassword)
	rg.POST("/auth/users/reset_password_confirm/", resetConfirmLimiter, m.Handler.ResetPasswordConfirm)
}
