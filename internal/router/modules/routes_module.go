package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rizkypriyo/go-accounts-api/internal/container"
	handlers "github.com/rizkypriyo/go-accounts-api/internal/interface/http"
	"github.com/rizkypriyo/go-accounts-api/internal/interface/middleware"
)

// RoutesModule exposes the static endpoint directory.
type RoutesModule struct{}

func NewRoutesModule() *RoutesModule { return &RoutesModule{} }

func (m *RoutesModule) Register(rg *gin.RouterGroup) {
	rl := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), nil)
	rg.GET("/auth/routes/", rl, handlers.Routes)
}
