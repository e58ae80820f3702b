package httpserver

import (
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/taskflow-assetproxy/internal/core/ports"
	"github.com/avatarctic/taskflow-assetproxy/internal/infrastructure/httpserver/helpers"
	customMiddleware "github.com/avatarctic/taskflow-assetproxy/internal/infrastructure/httpserver/middleware"
)

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSCertFile  string
	TLSKeyFile   string
}

type ServerDeps struct {
	Registration   ports.RegistrationService
	Origin         *url.URL
	HealthCheckers []ports.HealthChecker
	// Targets limits forward-proxy requests; nil allows only the origin host.
	Targets *helpers.TargetPolicy
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	registration   ports.RegistrationService
	targets        *helpers.TargetPolicy
	middleware     *customMiddleware.MiddlewareCollection
	healthCheckers []ports.HealthChecker
}

// NewServer wires the proxy and its control routes. adminSecret may be empty, in which case
// the admin API is not mounted.
func NewServer(serverConfig *ServerConfig, adminSecret string, logger *logrus.Logger, deps ServerDeps) *Server {
	targets := deps.Targets
	if targets == nil {
		targets, _ = helpers.NewTargetPolicy(deps.Origin, nil)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		registration:   deps.Registration,
		targets:        targets,
		healthCheckers: deps.HealthCheckers,
		middleware: customMiddleware.NewMiddlewareCollection(
			logger,
			adminSecret,
			GetRequestsTotal(),
			GetRequestDuration(),
		),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}
