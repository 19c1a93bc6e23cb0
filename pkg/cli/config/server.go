package config

import "github.com/urfave/cli/v3"

// Server holds server configuration
type Server struct {
	Addr       string
	AuthPrefix string
	TLS        bool
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Value:       "localhost:8080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("DPC_ADDR"),
		},
		&cli.StringFlag{
			Name:        "auth-prefix",
			Usage:       "Path prefix of the login and token routes",
			Value:       "/auth",
			Destination: &c.AuthPrefix,
			Sources:     cli.EnvVars("DPC_AUTH_PREFIX"),
		},
		&cli.BoolFlag{
			Name:        "tls",
			Usage:       "Mark cookies Secure regardless of the request scheme",
			Destination: &c.TLS,
			Sources:     cli.EnvVars("DPC_TLS"),
		},
	}
}
