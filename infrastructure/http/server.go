package http

import (
	"context"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/cloudcommerce/user-service/application/port/inbound"
	"github.com/cloudcommerce/user-service/application/port/outbound"
	"github.com/cloudcommerce/user-service/infrastructure/http/handler"
	"github.com/cloudcommerce/user-service/infrastructure/http/middleware"
	"github.com/cloudcommerce/user-service/infrastructure/service/logger"
)

// ServerConfig represents server configuration
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Environment         string
	DevMode             bool
	CorrelationIDHeader string
	EnableRequestLog    bool

	CORSEnabled          bool
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	RateLimit       int
	RateLimitWindow time.Duration
	TrustedProxies  []netip.Prefix
}

// Dependencies are the ports the HTTP adapter drives.
type Dependencies struct {
	AuthUseCase  inbound.AuthUseCase
	TokenService outbound.TokenService
	RateLimiter  inbound.RateLimitService
	Clock        outbound.Clock
	Logger       logger.Logger
	Users        handler.UserCounter
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	logger logger.Logger
}

// NewRouter builds the full handler chain.
func NewRouter(config ServerConfig, deps Dependencies) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(handler.NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(handler.MethodNotAllowed)

	authMiddleware := middleware.NewAuthMiddleware(deps.TokenService)
	handler.NewAuthHandler(deps.AuthUseCase, config.DevMode).RegisterRoutes(router, authMiddleware)
	handler.NewHealthHandler(deps.Clock, config.Environment, deps.Users).RegisterRoutes(router)

	clientIPs := middleware.NewClientIPResolver(config.TrustedProxies)

	var chain http.Handler = router
	if deps.RateLimiter != nil {
		limiter := middleware.NewRateLimitMiddleware(deps.RateLimiter, deps.Logger, clientIPs, config.RateLimit, config.RateLimitWindow)
		chain = apiOnly(limiter.RateLimit(router), router)
	}
	chain = middleware.SecurityHeaders(chain)
	chain = middleware.Recovery(deps.Logger, config.DevMode)(chain)
	if config.EnableRequestLog {
		chain = middleware.RequestLog(deps.Logger, clientIPs)(chain)
	}
	if config.CORSEnabled && len(config.CORSAllowedOrigins) > 0 {
		chain = middleware.CORS(middleware.CORSConfig{
			AllowedOrigins:   config.CORSAllowedOrigins,
			AllowCredentials: config.CORSAllowCredentials,
			ExposeHeaders:    []string{correlationHeader(config)},
		})(chain)
	}
	return middleware.CorrelationID(correlationHeader(config))(chain)
}

// NewServer creates a new HTTP server
func NewServer(config ServerConfig, deps Dependencies) *Server {
	return &Server{
		server: &http.Server{
			Addr:         config.Addr,
			Handler:      NewRouter(config, deps),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		logger: deps.Logger,
	}
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "Starting HTTP server", map[string]interface{}{
		"addr": s.server.Addr,
	})
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server", nil)
	return s.server.Shutdown(ctx)
}

func apiOnly(limited, plain http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			limited.ServeHTTP(w, r)
			return
		}
		plain.ServeHTTP(w, r)
	})
}

func correlationHeader(config ServerConfig) string {
	if config.CorrelationIDHeader == "" {
		return middleware.CorrelationIDHeader
	}
	return config.CorrelationIDHeader
}
