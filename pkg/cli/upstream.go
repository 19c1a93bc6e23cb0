package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/bssprx/data-platform-containers/pkg/cli/config"
	"github.com/bssprx/data-platform-containers/pkg/infra/container"
	"github.com/bssprx/data-platform-containers/pkg/infra/exec"
	"github.com/bssprx/data-platform-containers/pkg/infra/upstream"
	"github.com/bssprx/data-platform-containers/pkg/usecase"
	"github.com/bssprx/data-platform-containers/pkg/utils/logging"
)

func (e *env) upstreamUseCase(cfg *config.Upstream) *usecase.UpstreamUseCase {
	return usecase.NewUpstream(
		container.New(e.containers.Root),
		upstream.New(),
		usecase.WithPyPIBaseURL(cfg.PyPIBaseURL),
		usecase.WithMavenBaseURL(cfg.MavenBaseURL),
	)
}

func cmdCheckUpstream(e *env) *cli.Command {
	var upstreamCfg config.Upstream

	return &cli.Command{
		Name:      "check-upstream",
		Usage:     "Check the upstream source of a package; exits 2 when an update is available",
		ArgsUsage: "<slug>",
		Flags:     upstreamCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			slug, err := requireSlug(c)
			if err != nil {
				return err
			}

			result, err := e.upstreamUseCase(&upstreamCfg).Check(ctx, slug)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(e.out)
			enc.SetEscapeHTML(false)
			if err := enc.Encode(result); err != nil {
				return goerr.Wrap(err, "failed to encode result")
			}

			if code := result.Status.ExitCode(); code != 0 {
				return cli.Exit("", code)
			}
			return nil
		},
	}
}

func cmdCheckAll(e *env) *cli.Command {
	var (
		upstreamCfg config.Upstream
		checkCfg    config.CheckAll
	)

	return &cli.Command{
		Name:  "check-all",
		Usage: "Check every listed package and publish the report",
		Flags: append(upstreamCfg.Flags(), checkCfg.Flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			slugs, ok, err := checkCfg.PackageList()
			if err != nil {
				return err
			}
			if !ok {
				_, _ = fmt.Fprintln(e.out, "::warning::PACKAGES_JSON not provided; nothing to check")
				return nil
			}

			sinks, closer, err := checkCfg.Sinks(ctx)
			if err != nil {
				return err
			}
			defer closer()

			opts := make([]usecase.CIOption, 0, len(sinks))
			for _, sink := range sinks {
				opts = append(opts, usecase.WithReportSink(sink))
			}

			uc := usecase.NewCI(
				e.upstreamUseCase(&upstreamCfg),
				container.New(e.containers.Root),
				exec.New(),
				e.out,
				opts...,
			)
			_, err = uc.CheckAll(ctx, slugs)
			return err
		},
	}
}

func cmdApplyUpdates(e *env) *cli.Command {
	var applyCfg config.ApplyUpdates

	return &cli.Command{
		Name:  "apply-updates",
		Usage: "Write detected upstream versions into container metadata",
		Flags: applyCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			entries, ok, err := applyCfg.Entries()
			if err != nil {
				return err
			}
			if !ok {
				_, _ = fmt.Fprintln(e.out, "No updates provided; nothing to do.")
				return nil
			}

			repo := container.New(e.containers.Root)
			uc := usecase.NewCI(usecase.NewUpstream(repo, upstream.New()), repo, exec.New(), e.out)
			updated, err := uc.ApplyUpdates(ctx, entries)
			if err != nil {
				return err
			}
			logging.From(ctx).Debug("Applied updates", "packages", updated)
			return nil
		},
	}
}
