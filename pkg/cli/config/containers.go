package config

import "github.com/urfave/cli/v3"

// Containers locates the repository holding containers/<slug>/container.yaml
type Containers struct {
	Root string
}

func (c *Containers) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "root",
			Usage:       "Repository root containing the containers directory",
			Value:       ".",
			Destination: &c.Root,
			Sources:     cli.EnvVars("DPC_ROOT"),
		},
	}
}

// Tags controls the extra image tags. The PACKAGE_* switches count as set
// for any non-empty value.
type Tags struct {
	IncludeStable bool
	GitSHA        string

	includeStableEnv string
}

func (c *Tags) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "include-stable",
			Usage:       "Also tag the image as stable (or set PACKAGE_INCLUDE_STABLE)",
			Destination: &c.IncludeStable,
		},
		&cli.StringFlag{
			Name:        "include-stable-env",
			Hidden:      true,
			Destination: &c.includeStableEnv,
			Sources:     cli.EnvVars("PACKAGE_INCLUDE_STABLE"),
		},
		&cli.StringFlag{
			Name:        "git-sha",
			Usage:       "Commit used for the sha-<commit> tag (default: git rev-parse HEAD)",
			Destination: &c.GitSHA,
			Sources:     cli.EnvVars("GITHUB_SHA", "GIT_SHA"),
		},
	}
}

// Stable reports whether the stable tag is requested
func (c *Tags) Stable() bool {
	return c.IncludeStable || c.includeStableEnv != ""
}

// Build holds docker build options
type Build struct {
	Platforms string
	Push      bool

	pushEnv string
}

func (c *Build) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "platform",
			Usage:       "Target platforms for buildx (e.g. linux/amd64,linux/arm64)",
			Destination: &c.Platforms,
			Sources:     cli.EnvVars("PACKAGE_PLATFORMS"),
		},
		&cli.BoolFlag{
			Name:        "push",
			Usage:       "Push buildx results instead of loading them (or set PACKAGE_PUSH)",
			Destination: &c.Push,
		},
		&cli.StringFlag{
			Name:        "push-env",
			Hidden:      true,
			Destination: &c.pushEnv,
			Sources:     cli.EnvVars("PACKAGE_PUSH"),
		},
	}
}

// Pushing reports whether buildx should push
func (c *Build) Pushing() bool {
	return c.Push || c.pushEnv != ""
}

// Retag holds the source of a retag
type Retag struct {
	SourceImage     string
	SourceNamespace string
	DryRun          bool
	SkipMissing     bool
}

func (c *Retag) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "source-image",
			Usage:       "Fully-qualified source image name",
			Destination: &c.SourceImage,
		},
		&cli.StringFlag{
			Name:        "source-namespace",
			Usage:       "Source namespace combined with the destination image name",
			Destination: &c.SourceNamespace,
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Print commands without pushing",
			Destination: &c.DryRun,
		},
		&cli.BoolFlag{
			Name:        "skip-missing",
			Usage:       "Skip tags that do not exist in the source registry",
			Destination: &c.SkipMissing,
		},
	}
}

// Upstream overrides the registries used by upstream checks
type Upstream struct {
	PyPIBaseURL  string
	MavenBaseURL string
}

func (c *Upstream) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "pypi-url",
			Usage:       "Package index base URL",
			Value:       "https://pypi.org",
			Destination: &c.PyPIBaseURL,
			Sources:     cli.EnvVars("DPC_PYPI_URL"),
		},
		&cli.StringFlag{
			Name:        "maven-url",
			Usage:       "Maven repository base URL",
			Value:       "https://repo1.maven.org/maven2",
			Destination: &c.MavenBaseURL,
			Sources:     cli.EnvVars("DPC_MAVEN_URL"),
		},
	}
}
