package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rizkypriyo/go-accounts-api/internal/container"
	handlers "github.com/rizkypriyo/go-accounts-api/internal/interface/http"
	"github.com/rizkypriyo/go-accounts-api/internal/interface/middleware"
)

// TokenModule wires the JWT session lifecycle routes.
// Public: POST /auth/jwt/create/, POST /auth/jwt/refresh/, POST /auth/token/blacklist/
type TokenModule struct {
	Handler *handlers.TokenHandler
}

func NewTokenModule(h *handlers.TokenHandler) *TokenModule {
	return &TokenModule{Handler: h}
}

func (m *TokenModule) Register(rg *gin.RouterGroup) {
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)       // 10 req/min per IP
	refreshLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), nil)     // 60 req/min per IP
	blacklistLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), nil)

	rg.POST("/auth/jwt/create/", loginLimiter, m.Handler.Create)
	rg.POST("/auth/jwt/refresh/", refreshLimiter, m.Handler.Refresh)
	rg.POST("/auth/token/blacklist/", blacklistLimiter, m.Handler.Blacklist)
}
