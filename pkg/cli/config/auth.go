package config

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/bssprx/data-platform-containers/pkg/infra/token"
	"github.com/bssprx/data-platform-containers/pkg/usecase"
)

// Auth holds the OIDC header mapping, registration and token settings
type Auth struct {
	IdentityHeader   string
	ClaimsHeader     string
	Registration     bool
	RegistrationRole string

	JWTSecret        string `masq:"secret"`
	JWTIssuer        string
	JWTAudience      []string
	JWTExpiration    time.Duration
	JWTCLIExpiration time.Duration

	BootstrapUser     string
	BootstrapPassword string `masq:"secret"`
	BootstrapRole     string
}

func (c *Auth) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "identity-header",
			Usage:       "Header carrying the load balancer identity",
			Value:       "x-amzn-oidc-identity",
			Destination: &c.IdentityHeader,
			Sources:     cli.EnvVars("DPC_IDENTITY_HEADER"),
		},
		&cli.StringFlag{
			Name:        "claims-header",
			Usage:       "Header carrying the load balancer claims token",
			Value:       "x-amzn-oidc-data",
			Destination: &c.ClaimsHeader,
			Sources:     cli.EnvVars("DPC_CLAIMS_HEADER"),
		},
		&cli.BoolFlag{
			Name:        "auth-user-registration",
			Usage:       "Register unknown identities on first login",
			Value:       true,
			Destination: &c.Registration,
			Sources:     cli.EnvVars("DPC_AUTH_USER_REGISTRATION"),
		},
		&cli.StringFlag{
			Name:        "auth-user-registration-role",
			Usage:       "Role given to registered users",
			Value:       usecase.DefaultRegistrationRole,
			Destination: &c.RegistrationRole,
			Sources:     cli.EnvVars("DPC_AUTH_USER_REGISTRATION_ROLE"),
		},
		&cli.StringFlag{
			Name:        "jwt-secret",
			Usage:       "HMAC secret signing session tokens",
			Destination: &c.JWTSecret,
			Sources:     cli.EnvVars("DPC_JWT_SECRET"),
		},
		&cli.StringFlag{
			Name:        "jwt-issuer",
			Usage:       "Issuer claim of session tokens",
			Value:       token.DefaultIssuer,
			Destination: &c.JWTIssuer,
			Sources:     cli.EnvVars("DPC_JWT_ISSUER"),
		},
		&cli.StringSliceFlag{
			Name:        "jwt-audience",
			Usage:       "Audience claim of session tokens",
			Destination: &c.JWTAudience,
			Sources:     cli.EnvVars("DPC_JWT_AUDIENCE"),
		},
		&cli.DurationFlag{
			Name:        "jwt-expiration",
			Usage:       "Lifetime of web session tokens",
			Value:       24 * time.Hour,
			Destination: &c.JWTExpiration,
			Sources:     cli.EnvVars("DPC_JWT_EXPIRATION"),
		},
		&cli.DurationFlag{
			Name:        "jwt-cli-expiration",
			Usage:       "Lifetime of CLI tokens",
			Value:       time.Hour,
			Destination: &c.JWTCLIExpiration,
			Sources:     cli.EnvVars("DPC_JWT_CLI_EXPIRATION"),
		},
		&cli.StringFlag{
			Name:        "bootstrap-user",
			Usage:       "Local user created at startup for password login",
			Destination: &c.BootstrapUser,
			Sources:     cli.EnvVars("DPC_BOOTSTRAP_USER"),
		},
		&cli.StringFlag{
			Name:        "bootstrap-password",
			Usage:       "Password of the bootstrap user",
			Destination: &c.BootstrapPassword,
			Sources:     cli.EnvVars("DPC_BOOTSTRAP_PASSWORD"),
		},
		&cli.StringFlag{
			Name:        "bootstrap-role",
			Usage:       "Role of the bootstrap user",
			Value:       "Admin",
			Destination: &c.BootstrapRole,
			Sources:     cli.EnvVars("DPC_BOOTSTRAP_ROLE"),
		},
	}
}

// Validate checks settings that have no usable default
func (c *Auth) Validate() error {
	if c.JWTSecret == "" {
		return goerr.New("jwt-secret is required")
	}
	if c.JWTExpiration <= 0 || c.JWTCLIExpiration <= 0 {
		return goerr.New("token lifetimes must be positive",
			goerr.V("jwt_expiration", c.JWTExpiration),
			goerr.V("jwt_cli_expiration", c.JWTCLIExpiration))
	}
	if (c.BootstrapUser == "") != (c.BootstrapPassword == "") {
		return goerr.New("bootstrap-user and bootstrap-password must be set together")
	}
	return nil
}

// NewIssuer builds the token issuer
func (c *Auth) NewIssuer() (*token.Issuer, error) {
	opts := []token.Option{token.WithIssuer(c.JWTIssuer)}
	if len(c.JWTAudience) > 0 {
		opts = append(opts, token.WithAudience(c.JWTAudience...))
	}
	return token.New([]byte(c.JWTSecret), opts...)
}

// AuthOptions returns the use case options for registration
func (c *Auth) AuthOptions() []usecase.AuthOption {
	return []usecase.AuthOption{
		usecase.WithRegistration(c.Registration, c.RegistrationRole),
	}
}
