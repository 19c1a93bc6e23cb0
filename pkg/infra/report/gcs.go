package report

import (
	"context"
	"encoding/json"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
)

// GCS archives every report as a JSON object
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ interfaces.ReportSink = &GCS{}

func NewGCS(client *storage.Client, bucket, prefix string) *GCS {
	return &GCS{client: client, bucket: bucket, prefix: prefix}
}

// ObjectName returns <prefix>/YYYY/MM/DD/HHMMSS.json for the report time
func ObjectName(prefix string, report *model.UpstreamReport) string {
	return path.Join(prefix, report.GeneratedAt.UTC().Format("2006/01/02/150405")+".json")
}

func (x *GCS) Publish(ctx context.Context, report *model.UpstreamReport) error {
	name := ObjectName(x.prefix, report)
	w := x.client.Bucket(x.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"

	if err := json.NewEncoder(w).Encode(report); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write report", goerr.V("bucket", x.bucket), goerr.V("object", name))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to upload report", goerr.V("bucket", x.bucket), goerr.V("object", name))
	}
	return nil
}
