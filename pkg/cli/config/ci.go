package config

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
	"github.com/bssprx/data-platform-containers/pkg/infra/report"
)

// CheckAll holds the inputs and report destinations of check-all
type CheckAll struct {
	Packages        string
	GitHubOutput    string
	SlackWebhookURL string
	SlackChannel    string
	ReportBucket    string
	ReportPrefix    string
}

func (c *CheckAll) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "packages",
			Usage:       "JSON array of package slugs to check",
			Destination: &c.Packages,
			Sources:     cli.EnvVars("PACKAGES_JSON"),
		},
		&cli.StringFlag{
			Name:        "github-output",
			Usage:       "File receiving results, updates and updates_count step outputs",
			Destination: &c.GitHubOutput,
			Sources:     cli.EnvVars("GITHUB_OUTPUT"),
		},
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Slack incoming webhook notified about available updates",
			Destination: &c.SlackWebhookURL,
			Sources:     cli.EnvVars("DPC_SLACK_WEBHOOK_URL"),
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Usage:       "Channel override for the Slack webhook",
			Destination: &c.SlackChannel,
			Sources:     cli.EnvVars("DPC_SLACK_CHANNEL"),
		},
		&cli.StringFlag{
			Name:        "report-bucket",
			Usage:       "GCS bucket archiving check reports",
			Destination: &c.ReportBucket,
			Sources:     cli.EnvVars("DPC_REPORT_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "report-prefix",
			Usage:       "Object prefix of archived reports",
			Value:       "upstream-checks",
			Destination: &c.ReportPrefix,
			Sources:     cli.EnvVars("DPC_REPORT_PREFIX"),
		},
	}
}

// PackageList decodes the package list. ok is false when none was given.
func (c *CheckAll) PackageList() (slugs []string, ok bool, err error) {
	if c.Packages == "" {
		return nil, false, nil
	}
	if err := json.Unmarshal([]byte(c.Packages), &slugs); err != nil {
		return nil, false, goerr.Wrap(err, "failed to parse package list", goerr.V("packages", c.Packages))
	}
	return slugs, true, nil
}

// Sinks builds the configured report destinations. The returned closer
// releases clients and must be called.
func (c *CheckAll) Sinks(ctx context.Context) ([]interfaces.ReportSink, func(), error) {
	sinks := []interfaces.ReportSink{report.NewGitHubOutput(c.GitHubOutput)}
	closer := func() {}

	if c.SlackWebhookURL != "" {
		sinks = append(sinks, report.NewSlack(c.SlackWebhookURL, c.SlackChannel))
	}

	if c.ReportBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create storage client")
		}
		sinks = append(sinks, report.NewGCS(client, c.ReportBucket, c.ReportPrefix))
		closer = func() { _ = client.Close() }
	}

	return sinks, closer, nil
}

// ApplyUpdates holds the detected updates to write back
type ApplyUpdates struct {
	Updates string
}

func (c *ApplyUpdates) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "updates",
			Usage:       "JSON array of {package, latest, iceberg_runtime_flavor, iceberg_version}",
			Destination: &c.Updates,
			Sources:     cli.EnvVars("UPDATES_JSON"),
		},
	}
}

// Entries decodes the update list. ok is false when none was given.
func (c *ApplyUpdates) Entries() (entries []model.UpdateEntry, ok bool, err error) {
	if c.Updates == "" {
		return nil, false, nil
	}
	if err := json.Unmarshal([]byte(c.Updates), &entries); err != nil {
		return nil, false, goerr.Wrap(err, "failed to parse updates", goerr.V("updates", c.Updates))
	}
	return entries, true, nil
}
