package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rizkypriyo/go-accounts-api/internal/container"
	handlers "github.com/rizkypriyo/go-accounts-api/internal/interface/http"
	"github.com/rizkypriyo/go-accounts-api/internal/interface/middleware"
	"github.com/rizkypriyo/go-accounts-api/pkg/helpers"
)

// UserModule wires registration and profile routes.
// Public: POST /auth/users/
// Protected (Bearer): GET/PUT /auth/users/me/, POST /auth/users/set_password/,
// GET /auth/users/, GET/DELETE /auth/users/:id/
type UserModule struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
}

func NewUserModule(h *handlers.UserHandler, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Handler: h, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	registerLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/auth/users/", registerLimiter, m.Handler.Register)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.JWT))
	auth.Use(middleware.RateLimit(container.GetRedis(), 300, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.GET("/auth/users/me/", m.Handler.Me)
		auth.PUT("/auth/users/me/", m.Handler.UpdateMe)
		auth.POST("/auth/users/set_password/", m.Handler.SetPassword)
		auth.GET("/auth/users/", m.Handler.List)
		auth.GET("/auth/users/:id/", m.Handler.Detail)
		auth.DELETE("/auth/users/:id/", m.Handler.Delete)
	}
}
