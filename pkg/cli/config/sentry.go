package config

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/bssprx/data-platform-containers/pkg/domain/types"
)

// Sentry holds error reporting configuration. Reporting is off without a DSN.
type Sentry struct {
	DSN         string
	Environment string
}

func (c *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN for error reporting",
			Destination: &c.DSN,
			Sources:     cli.EnvVars("DPC_SENTRY_DSN", "SENTRY_DSN"),
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment name",
			Value:       "production",
			Destination: &c.Environment,
			Sources:     cli.EnvVars("DPC_SENTRY_ENV"),
		},
	}
}

// Configure initializes the Sentry SDK and reports whether it is enabled
func (c *Sentry) Configure() (bool, error) {
	if c.DSN == "" {
		return false, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         c.DSN,
		Environment: c.Environment,
		Release:     types.AppName + "@" + types.Version,
	}); err != nil {
		return false, goerr.Wrap(err, "failed to initialize sentry")
	}
	return true, nil
}

// Flush waits for buffered events
func (c *Sentry) Flush() {
	if c.DSN != "" {
		sentry.Flush(2 * time.Second)
	}
}
