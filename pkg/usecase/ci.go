package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
	"github.com/bssprx/data-platform-containers/pkg/utils/logging"
)

// CIUseCase drives the scheduled upstream check and the follow-up metadata bump
type CIUseCase struct {
	upstream *UpstreamUseCase
	repo     interfaces.PackageRepository
	exec     interfaces.Executor
	out      io.Writer
	sinks    []interfaces.ReportSink
	now      func() time.Time
}

type CIOption func(*CIUseCase)

// WithReportSink adds a destination for check-all reports
func WithReportSink(sink interfaces.ReportSink) CIOption {
	return func(uc *CIUseCase) {
		uc.sinks = append(uc.sinks, sink)
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) CIOption {
	return func(uc *CIUseCase) {
		uc.now = now
	}
}

func NewCI(upstream *UpstreamUseCase, repo interfaces.PackageRepository, exec interfaces.Executor, out io.Writer, opts ...CIOption) *CIUseCase {
	uc := &CIUseCase{
		upstream: upstream,
		repo:     repo,
		exec:     exec,
		out:      out,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// CheckAll checks every slug, prints the results as a JSON array and hands
// the report to each sink. A package whose metadata cannot be checked aborts
// the run.
func (uc *CIUseCase) CheckAll(ctx context.Context, slugs []string) (*model.UpstreamReport, error) {
	results := make([]*model.UpstreamResult, 0, len(slugs))
	for _, slug := range slugs {
		result, err := uc.upstream.Check(ctx, slug)
		if err != nil {
			return nil, goerr.Wrap(err, "upstream check failed", goerr.V("package", slug))
		}
		results = append(results, result)
	}

	report := model.NewUpstreamReport(results, uc.now())

	enc := json.NewEncoder(uc.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report.Results); err != nil {
		return nil, goerr.Wrap(err, "failed to write results")
	}

	for _, sink := range uc.sinks {
		if err := sink.Publish(ctx, report); err != nil {
			return nil, err
		}
	}

	logging.From(ctx).Info("Checked upstream versions",
		"packages", len(report.Results),
		"updates", len(report.Updates),
	)
	return report, nil
}

var pythonVersionPattern = regexp.MustCompile(`python(\d+\.\d+)`)

// ApplyUpdates writes detected versions into container metadata and returns
// the sorted slugs of the packages that changed.
func (uc *CIUseCase) ApplyUpdates(ctx context.Context, entries []model.UpdateEntry) ([]string, error) {
	if len(entries) == 0 {
		uc.printf("No updates detected.\n")
		return nil, nil
	}

	touched := map[string]struct{}{}
	for _, entry := range entries {
		changed, err := uc.applyUpdate(ctx, entry)
		if err != nil {
			return nil, err
		}
		if changed {
			touched[entry.Package] = struct{}{}
		}
	}

	slugs := make([]string, 0, len(touched))
	for slug := range touched {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	if len(slugs) == 0 {
		uc.printf("No container metadata changes applied.\n")
	} else {
		uc.printf("Updated: %s\n", strings.Join(slugs, ", "))
	}
	return slugs, nil
}

func (uc *CIUseCase) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(uc.out, format, args...)
}

func (uc *CIUseCase) applyUpdate(ctx context.Context, entry model.UpdateEntry) (bool, error) {
	if entry.Package == "" || entry.Latest == "" {
		return false, nil
	}

	pkg, err := uc.repo.Load(ctx, entry.Package)
	if err != nil {
		return false, goerr.Wrap(err, "missing container metadata", goerr.V("package", entry.Package))
	}

	values := []interfaces.KeyValue{{Key: "current", Value: entry.Latest}}

	switch entry.Package {
	case "airflow":
		baseImage, err := uc.airflowBaseImage(ctx, pkg, entry.Latest)
		if err != nil {
			return false, err
		}
		values = append(values, interfaces.KeyValue{Key: "base_image", Value: baseImage, Required: true})

	case "spark":
		args := pkg.Metadata.Build.Args
		if v := entry.IcebergRuntimeFlavor; v != "" && v != args["ICEBERG_RUNTIME_FLAVOR"] {
			values = append(values, interfaces.KeyValue{Key: "ICEBERG_RUNTIME_FLAVOR", Value: v})
		}
		if v := entry.IcebergVersion; v != "" && v != args["ICEBERG_VERSION"] {
			values = append(values, interfaces.KeyValue{Key: "ICEBERG_VERSION", Value: v})
		}
	}

	found, err := uc.repo.ReplaceKeys(ctx, pkg, values)
	if err != nil {
		return false, goerr.Wrap(err, "failed to apply update", goerr.V("package", entry.Package))
	}

	logging.From(ctx).Info("Applied upstream update",
		"package", entry.Package,
		"latest", entry.Latest,
		"keys", found,
	)
	return len(found) > 0, nil
}

// airflowBaseImage pins the official image of the new release to its digest
func (uc *CIUseCase) airflowBaseImage(ctx context.Context, pkg *model.Package, latest string) (string, error) {
	py := pkg.Metadata.Build.Args["PYTHON_VERSION"]
	if py == "" {
		if m := pythonVersionPattern.FindStringSubmatch(pkg.Metadata.Runtime.BaseImage); m != nil {
			py = m[1]
		}
	}
	if py == "" {
		return "", goerr.New("unable to determine Airflow PYTHON_VERSION for base image update")
	}

	tag := fmt.Sprintf("apache/airflow:%s-python%s", latest, py)
	digest, err := uc.fetchDigest(ctx, tag)
	if err != nil {
		return "", err
	}
	return tag + "@" + digest, nil
}

func (uc *CIUseCase) fetchDigest(ctx context.Context, image string) (string, error) {
	out, err := uc.exec.Capture(ctx, &model.Command{
		Name: "docker",
		Args: []string{"buildx", "imagetools", "inspect", image},
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to inspect image", goerr.V("image", image))
	}
	for _, line := range strings.Split(out.Stdout, "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "Digest:"); ok {
			return strings.TrimSpace(rest), nil
		}
	}
	return "", goerr.New("unable to find digest for image", goerr.V("image", image))
}
