package router

import (
	userapp "github.com/rizkypriyo/go-accounts-api/internal/application"
	"github.com/rizkypriyo/go-accounts-api/internal/container"
	pginfra "github.com/rizkypriyo/go-accounts-api/internal/infrastructure/postgres"
	"github.com/rizkypriyo/go-accounts-api/internal/infrastructure/redisstore"
	handlers "github.com/rizkypriyo/go-accounts-api/internal/interface/http"
	"github.com/rizkypriyo/go-accounts-api/internal/router/modules"
)

// InitModules initializes all application modules and registers them with
// the router registry. Called once during startup after the container has
// been populated.
func InitModules(r *Registry) {
	cfg := container.GetConfig()

	repo := pginfra.NewUserRepository(container.GetPGPool())
	audit := pginfra.NewAuditRepository(container.GetPGPool())
	blacklist := redisstore.NewBlacklist(container.GetRedis())

	// Avoid a typed-nil Publisher when RabbitMQ is not configured
	var pub userapp.Publisher
	if p := container.GetRabbitPub(); p != nil {
		pub = p
	}

	service := userapp.NewService(
		repo,
		container.GetJWT(),
		container.GetActivationCodec(),
		container.GetResetCodec(),
		blacklist,
		pub,
		container.GetLogger(),
		container.GetES(),
		cfg.ESUsersIndex,
		userapp.Links{
			ActivationURL:    cfg.ActivationURL,
			ResetPasswordURL: cfg.ResetPasswordURL,
		},
		cfg.MailSendEnabled,
	)

	userHandler := handlers.NewUserHandler(service, container.GetLogger(), audit)
	tokenHandler := handlers.NewTokenHandler(service, container.GetLogger(), audit)
	authHandler := handlers.NewAuthHandler(service, container.GetLogger(), audit)

	r.Add(modules.NewUserModule(userHandler, container.GetJWT()))
	r.Add(modules.NewTokenModule(tokenHandler))
	r.Add(modules.NewAuthModule(authHandler))
	r.Add(modules.NewRoutesModule())
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
