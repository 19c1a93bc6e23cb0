// Package report delivers check-all reports to CI outputs and notification channels.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
)

// GitHubOutput appends step outputs to the file named by GITHUB_OUTPUT
type GitHubOutput struct {
	path string
}

var _ interfaces.ReportSink = &GitHubOutput{}

func NewGitHubOutput(path string) *GitHubOutput {
	return &GitHubOutput{path: path}
}

func (x *GitHubOutput) Publish(ctx context.Context, report *model.UpstreamReport) error {
	if x.path == "" {
		return nil
	}

	var b strings.Builder
	for _, out := range []struct {
		name  string
		value any
	}{
		{"results", report.Results},
		{"updates", report.Updates},
		{"updates_count", len(report.Updates)},
	} {
		fmt.Fprintf(&b, "%s<<EOF\n", out.name)
		enc := json.NewEncoder(&b)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(out.value); err != nil {
			return goerr.Wrap(err, "failed to encode step output", goerr.V("name", out.name))
		}
		b.WriteString("EOF\n")
	}

	f, err := os.OpenFile(x.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return goerr.Wrap(err, "failed to open GITHUB_OUTPUT", goerr.V("path", x.path))
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		return goerr.Wrap(err, "failed to write GITHUB_OUTPUT", goerr.V("path", x.path))
	}
	return nil
}
