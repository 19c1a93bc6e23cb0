package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces/mocks"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
	"github.com/bssprx/data-platform-containers/pkg/infra/container"
	"github.com/bssprx/data-platform-containers/pkg/infra/upstream"
	"github.com/bssprx/data-platform-containers/pkg/usecase"
)

func pypiClient(t *testing.T, version string, wantURL string) *mocks.UpstreamClientMock {
	return &mocks.UpstreamClientMock{
		GetJSONFunc: func(ctx context.Context, url string, timeout time.Duration, out any) error {
			if wantURL != "" {
				gt.V(t, url).Equal(wantURL)
			}
			return json.Unmarshal([]byte(`{"info":{"version":"`+version+`"}}`), out)
		},
	}
}

func checkOne(t *testing.T, yaml string, client *mocks.UpstreamClientMock, opts ...usecase.UpstreamOption) (*model.UpstreamResult, error) {
	t.Helper()
	root := setupPackages(t, map[string]string{"pkg": yaml})
	uc := usecase.NewUpstream(container.New(root), client, opts...)
	return uc.Check(context.Background(), "pkg")
}

func TestUpstream_PyPI(t *testing.T) {
	const meta = "slug: dbt\nversion:\n  strategy: pypi\n  component: dbt-core\n  current: 1.7.0\n  timeout: 3\n"

	t.Run("update available", func(t *testing.T) {
		client := pypiClient(t, "1.8.2", "https://pypi.org/pypi/dbt-core/json")
		client.GetJSONFunc = func(ctx context.Context, url string, timeout time.Duration, out any) error {
			gt.V(t, url).Equal("https://pypi.org/pypi/dbt-core/json")
			gt.V(t, timeout).Equal(3 * time.Second)
			return json.Unmarshal([]byte(`{"info":{"version":"1.8.2"}}`), out)
		}
		res, err := checkOne(t, meta, client)
		gt.NoError(t, err)
		gt.V(t, *res).Equal(model.UpstreamResult{
			Package:  "dbt",
			Strategy: "pypi",
			Current:  "1.7.0",
			Latest:   "1.8.2",
			Status:   model.UpstreamUpdateAvailable,
			Source:   "https://pypi.org/pypi/dbt-core/json",
		})
		gt.V(t, res.Status.ExitCode()).Equal(2)
	})

	t.Run("equal version is up to date", func(t *testing.T) {
		res, err := checkOne(t, meta, pypiClient(t, "1.7.0", ""))
		gt.NoError(t, err)
		gt.V(t, res.Status).Equal(model.UpstreamUpToDate)
		gt.V(t, res.Latest).Equal("1.7.0")
	})

	t.Run("slug is used without component", func(t *testing.T) {
		client := pypiClient(t, "2.0.0", "http://index.local/pypi/dbt/json")
		res, err := checkOne(t, "slug: dbt\nversion:\n  strategy: pypi\n  current: 1.0.0\n", client, usecase.WithPyPIBaseURL("http://index.local/"))
		gt.NoError(t, err)
		gt.V(t, res.Status).Equal(model.UpstreamUpdateAvailable)
	})

	t.Run("missing version field", func(t *testing.T) {
		res, err := checkOne(t, meta, pypiClient(t, "", ""))
		gt.NoError(t, err)
		gt.V(t, res.Status).Equal(model.UpstreamError)
		gt.V(t, res.Error).Equal("unable to determine latest PyPI version")
		gt.V(t, res.Latest).Equal("")
	})

	t.Run("http failure", func(t *testing.T) {
		client := &mocks.UpstreamClientMock{
			GetJSONFunc: func(ctx context.Context, url string, timeout time.Duration, out any) error {
				return errors.New("unexpected status code: 503")
			},
		}
		res, err := checkOne(t, meta, client)
		gt.NoError(t, err)
		gt.V(t, res.Status).Equal(model.UpstreamError)
		gt.V(t, res.Error).Equal("unexpected status code: 503")
		gt.V(t, res.Source).Equal("https://pypi.org/pypi/dbt-core/json")
		gt.V(t, res.Status.ExitCode()).Equal(0)
	})

	t.Run("missing current fails the command", func(t *testing.T) {
		_, err := checkOne(t, "version:\n  strategy: pypi\n", &mocks.UpstreamClientMock{})
		gt.Error(t, err)
	})
}

func TestUpstream_HTTPDirectory(t *testing.T) {
	const listing = `<a href="spark-3.4.3/">spark-3.4.3/</a>
<a href="SPARK-3.5.10/">SPARK-3.5.10/</a>
<a href="spark-3.5.9/">spark-3.5.9/</a>
<a href="spark-preview/">spark-preview/</a>`

	text := func(body string) *mocks.UpstreamClientMock {
		return &mocks.UpstreamClientMock{
			GetTextFunc: func(ctx context.Context, url string, timeout time.Duration) (string, error) {
				gt.V(t, url).Equal("https://archive.apache.org/dist/spark/")
				return body, nil
			},
		}
	}
	meta := func(current, extra string) string {
		return "slug: spark\nversion:\n  strategy: http-directory\n  current: " + current + "\n" + extra +
			"  source:\n    url: https://archive.apache.org/dist/spark/\n    regex: 'spark-(\\d+\\.\\d+\\.\\d+)/'\n"
	}

	t.Run("capture group and numeric ordering", func(t *testing.T) {
		res, err := checkOne(t, meta("3.5.1", ""), text(listing))
		gt.NoError(t, err)
		gt.V(t, res.Status).Equal(model.UpstreamUpdateAvailable)
		gt.V(t, res.Latest).Equal("3.5.10")
		gt.V(t, res.Source).Equal("https://archive.apache.org/dist/spark/")
	})

	t.Run("no matches", func(t *testing.T) {
		res, err := checkOne(t, meta("3.5.1", ""), text("<html></html>"))
		gt.NoError(t, err)
		gt.V(t, res.Status).Equal(model.UpstreamError)
		gt.V(t, res.Error).Equal("no matches from http-directory source")
	})

	t.Run("missing configuration", func(t *testing.T) {
		res, err := checkOne(t, "version:\n  strategy: http-directory\n  current: 1.0.0\n", &mocks.UpstreamClientMock{})
		gt.NoError(t, err)
		gt.V(t, res.Status).Equal(model.UpstreamError)
		gt.V(t, res.Package).Equal("pkg")
	})

	t.Run("constraint blocks", func(t *testing.T) {
		res, err := checkOne(t, meta("3.4.0", "  constraint: '< 3.5'\n"), text(listing))
		gt.NoError(t, err)
		gt.V(t, res.Status).Equal(model.UpstreamBlocked)
		gt.V(t, res.Latest).Equal("3.5.10")
		gt.String(t, res.Error).Contains("does not satisfy constraint")
	})

	t.Run("constraint allows", func(t *testing.T) {
		res, err := checkOne(t, meta("3.4.0", "  constraint: '>= 3.4, < 4'\n"), text(listing))
		gt.NoError(t, err)
		gt.V(t, res.Status).Equal(model.UpstreamUpdateAvailable)
	})

	t.Run("invalid constraint", func(t *testing.T) {
		res, err := checkOne(t, meta("3.4.0", "  constraint: 'not a constraint'\n"), text(listing))
		gt.NoError(t, err)
		gt.V(t, res.Status).Equal(model.UpstreamError)
	})
}

func TestUpstream_VerifyURL(t *testing.T) {
	const meta = "slug: dbt\nversion:\n  strategy: pypi\n  current: 1.0.0\n  source:\n    verify_url: https://dl.example.com/dbt-{version}.tar.gz\n"

	for _, tc := range []struct {
		name   string
		code   int
		err    error
		status model.UpstreamStatus
	}{
		{name: "artifact present", code: http.StatusOK, status: model.UpstreamUpdateAvailable},
		{name: "artifact missing", code: http.StatusNotFound, status: model.UpstreamBlocked},
		{name: "request failure", err: errors.New("connection refused"), status: model.UpstreamBlocked},
	} {
		t.Run(tc.name, func(t *testing.T) {
			client := pypiClient(t, "1.1.0", "")
			client.HeadFunc = func(ctx context.Context, url string, timeout time.Duration) (int, error) {
				gt.V(t, url).Equal("https://dl.example.com/dbt-1.1.0.tar.gz")
				return tc.code, tc.err
			}
			res, err := checkOne(t, meta, client)
			gt.NoError(t, err)
			gt.V(t, res.Status).Equal(tc.status)
		})
	}
}

func TestUpstream_Maven(t *testing.T) {
	const metadataXML = `<?xml version="1.0" encoding="UTF-8"?>
<metadata>
  <groupId>org.apache.iceberg</groupId>
  <artifactId>iceberg-core</artifactId>
  <versioning>
    <latest>1.7.0-rc1</latest>
    <release>1.6.1</release>
    <versions>
      <version>1.5.2</version>
      <version>1.6.1</version>
      <version>1.7.0-rc1</version>
    </versions>
  </versioning>
</metadata>`

	client := func(wantURL string) *mocks.UpstreamClientMock {
		return &mocks.UpstreamClientMock{
			GetTextFunc: func(ctx context.Context, url string, timeout time.Duration) (string, error) {
				gt.V(t, url).Equal(wantURL)
				return metadataXML, nil
			},
		}
	}

	t.Run("derived url and regex filter", func(t *testing.T) {
		yaml := "slug: iceberg\nversion:\n  strategy: maven\n  component: org.apache.iceberg:iceberg-core\n  current: 1.5.2\n  source:\n    regex: '^(\\d+\\.\\d+\\.\\d+)$'\n"
		res, err := checkOne(t, yaml, client("https://repo1.maven.org/maven2/org/apache/iceberg/iceberg-core/maven-metadata.xml"))
		gt.NoError(t, err)
		gt.V(t, res.Status).Equal(model.UpstreamUpdateAvailable)
		gt.V(t, res.Latest).Equal("1.6.1")
	})

	t.Run("explicit url without filter", func(t *testing.T) {
		yaml := "version:\n  strategy: maven\n  current: 1.7.0-rc1\n  source:\n    url: https://mirror.local/maven-metadata.xml\n"
		res, err := checkOne(t, yaml, client("https://mirror.local/maven-metadata.xml"))
		gt.NoError(t, err)
		gt.V(t, res.Status).Equal(model.UpstreamUpToDate)
	})

	t.Run("missing configuration", func(t *testing.T) {
		res, err := checkOne(t, "version:\n  strategy: maven\n  current: 1.0.0\n", &mocks.UpstreamClientMock{})
		gt.NoError(t, err)
		gt.V(t, res.Status).Equal(model.UpstreamError)
		gt.V(t, res.Error).Equal("missing maven configuration")
	})
}

func TestUpstream_VersionIndex(t *testing.T) {
	setup := func(t *testing.T, yaml, index string) *usecase.UpstreamUseCase {
		root := setupPackages(t, map[string]string{"python-base": yaml})
		if index != "" {
			writeFile(t, filepath.Join(root, "containers", "python-base", "versions.json"), index)
		}
		return usecase.NewUpstream(container.New(root), &mocks.UpstreamClientMock{})
	}

	t.Run("slug prefix entry", func(t *testing.T) {
		uc := setup(t, "version:\n  strategy: manual\n  current: 3.11.9\n", `{"python": {"3.11.9": {}, "3.12.4": {}, "3.9.19": {}}}`)
		res, err := uc.Check(context.Background(), "python-base")
		gt.NoError(t, err)
		gt.V(t, res.Strategy).Equal("manual")
		gt.V(t, res.Status).Equal(model.UpstreamUpdateAvailable)
		gt.V(t, res.Latest).Equal("3.12.4")
	})

	t.Run("no index", func(t *testing.T) {
		uc := setup(t, "version:\n  current: 3.11.9\n", "")
		res, err := uc.Check(context.Background(), "python-base")
		gt.NoError(t, err)
		gt.V(t, res.Status).Equal(model.UpstreamSkipped)
		gt.V(t, res.Latest).Equal("")
	})

	t.Run("no matching entry", func(t *testing.T) {
		uc := setup(t, "version:\n  current: 3.11.9\n", `{"ruby": {"3.3.0": {}}}`)
		res, err := uc.Check(context.Background(), "python-base")
		gt.NoError(t, err)
		gt.V(t, res.Status).Equal(model.UpstreamSkipped)
	})

	t.Run("equal versions pick a stable key", func(t *testing.T) {
		uc := setup(t, "version:\n  current: 3.11\n", `{"python": {"3.12": {}, "3.012": {}, "3.0012": {}, "3.9": {}}}`)
		for range 20 {
			res, err := uc.Check(context.Background(), "python-base")
			gt.NoError(t, err)
			gt.V(t, res.Latest).Equal("3.0012")
		}
	})

	t.Run("candidate order", func(t *testing.T) {
		gt.V(t, usecase.IndexCandidates("Apache-Spark", "python-base")).Equal([]string{
			"apache-spark", "apache_spark", "python-base", "python_base", "python",
		})
	})
}

func TestUpstream_WithHTTPServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/pypi/"):
			_, _ = w.Write([]byte(`{"info": {"version": "2.10.1"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	root := setupPackages(t, map[string]string{
		"airflow": "version:\n  strategy: pypi\n  component: apache-airflow\n  current: 2.9.3\n",
		"broken":  "version:\n  strategy: http-directory\n  current: 1.0\n  source:\n    url: " + srv.URL + "/missing/\n    pattern: 'v(\\d+)'\n",
	})
	uc := usecase.NewUpstream(container.New(root), upstream.New(), usecase.WithPyPIBaseURL(srv.URL))

	res, err := uc.Check(context.Background(), "airflow")
	gt.NoError(t, err)
	gt.V(t, res.Status).Equal(model.UpstreamUpdateAvailable)
	gt.V(t, res.Latest).Equal("2.10.1")

	res, err = uc.Check(context.Background(), "broken")
	gt.NoError(t, err)
	gt.V(t, res.Status).Equal(model.UpstreamError)
	gt.V(t, res.Source).Equal(srv.URL + "/missing/")
}
