package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/bssprx/data-platform-containers/pkg/cli/config"
	"github.com/bssprx/data-platform-containers/pkg/domain/types"
	"github.com/bssprx/data-platform-containers/pkg/infra/container"
	"github.com/bssprx/data-platform-containers/pkg/infra/exec"
	"github.com/bssprx/data-platform-containers/pkg/usecase"
	"github.com/bssprx/data-platform-containers/pkg/utils/logging"
)

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout)
}

// env bundles what every package command needs
type env struct {
	containers config.Containers
	out        io.Writer
}

func (e *env) packageUseCase() *usecase.PackageUseCase {
	repo := container.New(e.containers.Root)
	return usecase.NewPackage(repo, exec.New(exec.WithOutput(e.out, os.Stderr)), e.out)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	var (
		loggerCfg config.Logger
		sentryCfg config.Sentry
		logger    *slog.Logger
	)
	e := &env{out: out}

	var flags []cli.Flag
	flags = append(flags, loggerCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)
	flags = append(flags, e.containers.Flags()...)

	app := &cli.Command{
		Name:    types.AppName,
		Usage:   "Container image tooling and ALB auth service for the data platform",
		Version: types.Version,
		Flags:   flags,
		Writer:  out,
		// exit codes are mapped by the caller
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			var err error
			logger, err = loggerCfg.Configure()
			if err != nil {
				return nil, err
			}

			slog.SetDefault(logger)
			return logging.With(ctx, logger), nil
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return listPackages(ctx, e)
		},
		Commands: []*cli.Command{
			cmdBuild(e),
			cmdTest(e),
			cmdPublish(e),
			cmdRetag(e),
			cmdShow(e),
			cmdDetectVersion(e),
			cmdCheckUpstream(e),
			cmdCheckAll(e),
			cmdApplyUpdates(e),
			cmdServe(&sentryCfg),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		var coder cli.ExitCoder
		if !errors.As(err, &coder) || coder.Error() != "" {
			logger.Error("CLI execution failed", slog.Any("error", err))
		}
		return err
	}

	return nil
}

func listPackages(ctx context.Context, e *env) error {
	slugs, err := e.packageUseCase().List(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(e.out, "Available packages:")
	for _, slug := range slugs {
		_, _ = fmt.Fprintf(e.out, "- %s\n", slug)
	}
	return nil
}

// ExitCode maps an error returned by Run to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}
