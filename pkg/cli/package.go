package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/bssprx/data-platform-containers/pkg/cli/config"
	"github.com/bssprx/data-platform-containers/pkg/usecase"
)

func requireSlug(c *cli.Command) (string, error) {
	slug := c.Args().First()
	if slug == "" {
		return "", goerr.New("package slug is required")
	}
	return slug, nil
}

func cmdBuild(e *env) *cli.Command {
	var (
		tagCfg   config.Tags
		buildCfg config.Build
	)

	return &cli.Command{
		Name:      "build",
		Usage:     "Build the image of a package",
		ArgsUsage: "<slug>",
		Flags:     append(tagCfg.Flags(), buildCfg.Flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			slug, err := requireSlug(c)
			if err != nil {
				return err
			}
			return e.packageUseCase().Build(ctx, slug, usecase.BuildOptions{
				TagOptions: usecase.TagOptions{
					IncludeStable: tagCfg.Stable(),
					GitSHA:        tagCfg.GitSHA,
				},
				Platforms: buildCfg.Platforms,
				Push:      buildCfg.Pushing(),
			})
		},
	}
}

func cmdTest(e *env) *cli.Command {
	return &cli.Command{
		Name:      "test",
		Usage:     "Run the smoke tests of a package",
		ArgsUsage: "<slug>",
		Action: func(ctx context.Context, c *cli.Command) error {
			slug, err := requireSlug(c)
			if err != nil {
				return err
			}
			return e.packageUseCase().Test(ctx, slug)
		},
	}
}

func cmdPublish(e *env) *cli.Command {
	var tagCfg config.Tags

	return &cli.Command{
		Name:      "publish",
		Usage:     "Push every resolved tag of a package",
		ArgsUsage: "<slug>",
		Flags:     tagCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			slug, err := requireSlug(c)
			if err != nil {
				return err
			}
			return e.packageUseCase().Publish(ctx, slug, usecase.TagOptions{
				IncludeStable: tagCfg.Stable(),
				GitSHA:        tagCfg.GitSHA,
			})
		},
	}
}

func cmdRetag(e *env) *cli.Command {
	var (
		tagCfg   config.Tags
		retagCfg config.Retag
	)

	return &cli.Command{
		Name:      "retag",
		Usage:     "Copy published tags from another registry namespace",
		ArgsUsage: "<slug|all>",
		Flags:     append(tagCfg.Flags(), retagCfg.Flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			slug, err := requireSlug(c)
			if err != nil {
				return err
			}
			opts := usecase.RetagOptions{
				TagOptions: usecase.TagOptions{
					IncludeStable: tagCfg.Stable(),
					GitSHA:        tagCfg.GitSHA,
				},
				SourceImage:     retagCfg.SourceImage,
				SourceNamespace: retagCfg.SourceNamespace,
				DryRun:          retagCfg.DryRun,
				SkipMissing:     retagCfg.SkipMissing,
			}
			if slug == "all" {
				return e.packageUseCase().RetagAll(ctx, opts)
			}
			return e.packageUseCase().Retag(ctx, slug, opts)
		},
	}
}

func cmdShow(e *env) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print the metadata of a package as JSON",
		ArgsUsage: "<slug>",
		Action: func(ctx context.Context, c *cli.Command) error {
			slug, err := requireSlug(c)
			if err != nil {
				return err
			}
			return e.packageUseCase().Show(ctx, slug)
		},
	}
}

func cmdDetectVersion(e *env) *cli.Command {
	return &cli.Command{
		Name:      "detect-version",
		Usage:     "Print the version strategy of a package",
		ArgsUsage: "<slug>",
		Action: func(ctx context.Context, c *cli.Command) error {
			slug, err := requireSlug(c)
			if err != nil {
				return err
			}
			return e.packageUseCase().DetectVersion(ctx, slug)
		},
	}
}
