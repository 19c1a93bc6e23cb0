package interfaces

import (
	"context"
	"time"

	"github.com/bssprx/data-platform-containers/pkg/domain/model"
)

// PackageRepository reads and rewrites container package metadata
type PackageRepository interface {
	// List returns the slugs of all packages in sorted order
	List(ctx context.Context) ([]string, error)

	// Load reads <containers>/<slug>/container.yaml
	Load(ctx context.Context, slug string) (*model.Package, error)

	// ReadVersionIndex reads versions.json of a package. ok is false when absent.
	ReadVersionIndex(ctx context.Context, pkg *model.Package) (index map[string]any, ok bool, err error)

	// ReplaceKeys rewrites the first "key:" line for each entry, keeping
	// indentation. It returns the keys that were found. A missing required
	// key is an error and nothing is written.
	ReplaceKeys(ctx context.Context, pkg *model.Package, values []KeyValue) ([]string, error)

	// Root returns the repository root directory
	Root() string
}

// KeyValue is one line-level metadata edit
type KeyValue struct {
	Key      string
	Value    string
	Required bool
}

// Executor runs external commands such as docker and git
type Executor interface {
	// Run streams output to the terminal and fails on a non-zero exit
	Run(ctx context.Context, cmd *model.Command) error

	// Capture collects output. A non-zero exit returns the output together with an error.
	Capture(ctx context.Context, cmd *model.Command) (*model.CommandOutput, error)
}

// UpstreamClient fetches upstream release information over HTTP
type UpstreamClient interface {
	// GetJSON decodes a JSON document into out
	GetJSON(ctx context.Context, url string, timeout time.Duration, out any) error

	// GetText returns the body of a GET request
	GetText(ctx context.Context, url string, timeout time.Duration) (string, error)

	// Head returns the status code of a HEAD request
	Head(ctx context.Context, url string, timeout time.Duration) (int, error)
}

// ReportSink receives the report of a check-all run
type ReportSink interface {
	Publish(ctx context.Context, report *model.UpstreamReport) error
}
