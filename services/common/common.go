package common

import (
	"github.com/urfave/cli"
)

var (
	DomainFlag        = "domain"
	SessionSecretFlag = "secret"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   DomainFlag,
			Usage:  "domain",
			Value:  "http://localhost:8080",
			EnvVar: "DOMAIN",
		},
		cli.StringFlag{
			Name:   SessionSecretFlag,
			Usage:  "session secret",
			Value:  "secret123",
			EnvVar: "SESSION_SECRET",
		},
	)
}

// TokenSessionKey is the cookie-session key under which the backend
// access token is stored.
const TokenSessionKey = "access_token"
