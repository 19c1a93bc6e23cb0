package main

import (
	"context"
	"os"

	"github.com/bssprx/data-platform-containers/pkg/cli"
)

func main() {
	os.Exit(cli.ExitCode(cli.Run(context.Background(), os.Args)))
}
