package types

// Version is the application version, overridden with -ldflags at release time.
var Version = "dev"

// AppName is used for the CLI name, health responses and token issuer defaults.
const AppName = "dpc"
