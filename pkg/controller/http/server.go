package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
)

const (
	DefaultIdentityHeader = "x-amzn-oidc-identity"
	DefaultClaimsHeader   = "x-amzn-oidc-data"
	DefaultAuthPrefix     = "/auth"
	DefaultTokenTTL       = 24 * time.Hour
	DefaultCLITokenTTL    = time.Hour
)

// config holds internal HTTP server configuration
type config struct {
	addr           string
	authPrefix     string
	identityHeader string
	claimsHeader   string
	tokenTTL       time.Duration
	cliTokenTTL    time.Duration
	tls            bool
	sentry         bool
	userStore      string
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithAuthPrefix sets the path the auth routes are mounted under
func WithAuthPrefix(prefix string) Option {
	return func(c *config) {
		c.authPrefix = prefix
	}
}

// WithHeaders sets the identity and claims header names
func WithHeaders(identity, claims string) Option {
	return func(c *config) {
		if identity != "" {
			c.identityHeader = identity
		}
		if claims != "" {
			c.claimsHeader = claims
		}
	}
}

// WithTokenTTL sets the lifetime of browser and CLI tokens
func WithTokenTTL(web, cli time.Duration) Option {
	return func(c *config) {
		if web > 0 {
			c.tokenTTL = web
		}
		if cli > 0 {
			c.cliTokenTTL = cli
		}
	}
}

// WithTLS marks the deployment as TLS terminated, so cookies are always Secure
func WithTLS(enabled bool) Option {
	return func(c *config) {
		c.tls = enabled
	}
}

// WithSentry wraps the router with the Sentry handler
func WithSentry(enabled bool) Option {
	return func(c *config) {
		c.sentry = enabled
	}
}

// WithUserStoreName is reported by the health endpoint
func WithUserStoreName(name string) Option {
	return func(c *config) {
		c.userStore = name
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
}

// NewServer creates a new HTTP server
func NewServer(
	ctx context.Context,
	authUC interfaces.AuthUseCase,
	opts ...Option,
) (*Server, error) {
	cfg := &config{
		addr:           "localhost:8080",
		authPrefix:     DefaultAuthPrefix,
		identityHeader: DefaultIdentityHeader,
		claimsHeader:   DefaultClaimsHeader,
		tokenTTL:       DefaultTokenTTL,
		cliTokenTTL:    DefaultCLITokenTTL,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	router.Get("/health", healthHandler(cfg.userStore))

	authHandler := NewAuthHandler(authUC, cfg)
	router.Route(mountPath(cfg.authPrefix), func(r chi.Router) {
		r.Get("/login", authHandler.Login)
		r.Post("/token", authHandler.Token)
		r.Post("/token/cli", authHandler.TokenCLI)
	})

	var handler http.Handler = router
	if cfg.sentry {
		handler = sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(router)
	}

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           handler,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}

	return server, nil
}

func mountPath(prefix string) string {
	return "/" + strings.Trim(prefix, "/")
}
