package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/urfave/cli/v3"

	dpc "github.com/bssprx/data-platform-containers/pkg/cli"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
)

const dbtYAML = `slug: dbt
publish:
  image: ghcr.io/example/containers/dbt
  tags:
    - "!version.current"
version:
  strategy: pypi
  component: dbt-core
  current: 1.8.0
`

func setupRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "containers", "dbt", "container.yaml")
	gt.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	gt.NoError(t, os.WriteFile(path, []byte(dbtYAML), 0o644))
	return root
}

func pypiServer(t *testing.T, version string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pypi/dbt-core/json" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"info": map[string]string{"version": version}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := dpc.RunWithOutput(context.Background(), append([]string{"dpc"}, args...), &out)
	return out.String(), err
}

func TestRun_ListPackages(t *testing.T) {
	out, err := run(t, "--root", setupRoot(t))
	gt.NoError(t, err)
	gt.String(t, out).Contains("Available packages:\n- dbt\n")
}

func TestRun_CheckUpstream(t *testing.T) {
	root := setupRoot(t)

	t.Run("update available exits 2", func(t *testing.T) {
		srv := pypiServer(t, "1.9.1")
		out, err := run(t, "--root", root, "check-upstream", "--pypi-url", srv.URL, "dbt")
		gt.Error(t, err)
		gt.V(t, dpc.ExitCode(err)).Equal(2)

		var result model.UpstreamResult
		gt.NoError(t, json.Unmarshal([]byte(out), &result))
		gt.V(t, result.Status).Equal(model.UpstreamUpdateAvailable)
		gt.V(t, result.Latest).Equal("1.9.1")
	})

	t.Run("up to date exits 0", func(t *testing.T) {
		srv := pypiServer(t, "1.8.0")
		out, err := run(t, "--root", root, "check-upstream", "--pypi-url", srv.URL, "dbt")
		gt.NoError(t, err)
		gt.V(t, dpc.ExitCode(err)).Equal(0)
		gt.String(t, out).Contains(`"status":"up_to_date"`)
	})

	t.Run("registry failure is reported, exits 0", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		out, err := run(t, "--root", root, "check-upstream", "--pypi-url", srv.URL, "dbt")
		gt.NoError(t, err)
		gt.String(t, out).Contains(`"status":"error"`)
	})

	t.Run("source url is printed unescaped", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<a href="spark-3.5.1/">spark-3.5.1/</a>`))
		}))
		defer srv.Close()

		source := srv.URL + "/dist/spark/?C=M&O=D"
		path := filepath.Join(root, "containers", "spark", "container.yaml")
		gt.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		gt.NoError(t, os.WriteFile(path, []byte("version:\n  strategy: http-directory\n  current: 3.5.1\n  source:\n    url: \""+source+"\"\n    regex: 'spark-(\\d+\\.\\d+\\.\\d+)/'\n"), 0o644))

		out, err := run(t, "--root", root, "check-upstream", "spark")
		gt.NoError(t, err)
		gt.String(t, out).Contains(`"source":"` + source + `"`)
		gt.False(t, strings.Contains(out, `\u0026`))
	})

	t.Run("missing slug", func(t *testing.T) {
		_, err := run(t, "--root", root, "check-upstream")
		gt.Error(t, err)
		gt.V(t, dpc.ExitCode(err)).Equal(1)
	})
}

func TestRun_CheckAll(t *testing.T) {
	root := setupRoot(t)

	t.Run("no package list", func(t *testing.T) {
		t.Setenv("PACKAGES_JSON", "")
		out, err := run(t, "--root", root, "check-all")
		gt.NoError(t, err)
		gt.String(t, out).Contains("::warning::PACKAGES_JSON not provided; nothing to check")
	})

	t.Run("writes step outputs", func(t *testing.T) {
		srv := pypiServer(t, "1.9.1")
		output := filepath.Join(t.TempDir(), "github_output")
		t.Setenv("GITHUB_OUTPUT", output)
		t.Setenv("DPC_SLACK_WEBHOOK_URL", "")
		t.Setenv("DPC_REPORT_BUCKET", "")

		out, err := run(t, "--root", root, "check-all", "--pypi-url", srv.URL, "--packages", `["dbt"]`)
		gt.NoError(t, err)

		var results []model.UpstreamResult
		gt.NoError(t, json.Unmarshal([]byte(out), &results))
		gt.A(t, results).Length(1)

		raw, err := os.ReadFile(output)
		gt.NoError(t, err)
		gt.String(t, string(raw)).Contains("updates_count<<")
	})
}

func TestRun_ApplyUpdates(t *testing.T) {
	root := setupRoot(t)

	t.Run("nothing provided", func(t *testing.T) {
		t.Setenv("UPDATES_JSON", "")
		out, err := run(t, "--root", root, "apply-updates")
		gt.NoError(t, err)
		gt.String(t, out).Contains("No updates provided; nothing to do.")
	})

	t.Run("rewrites current", func(t *testing.T) {
		out, err := run(t, "--root", root, "apply-updates", "--updates", `[{"package":"dbt","latest":"1.9.1"}]`)
		gt.NoError(t, err)
		gt.String(t, out).Contains("Updated: dbt")

		raw, err := os.ReadFile(filepath.Join(root, "containers", "dbt", "container.yaml"))
		gt.NoError(t, err)
		gt.String(t, string(raw)).Contains(`current: "1.9.1"`)
	})
}

func TestRun_RetagIncludeStable(t *testing.T) {
	root := setupRoot(t)
	t.Setenv("GITHUB_SHA", "0123456789abcdef")

	for _, value := range []string{"1", "yes", "true"} {
		t.Run(value, func(t *testing.T) {
			t.Setenv("PACKAGE_INCLUDE_STABLE", value)
			out, err := run(t, "--root", root, "retag", "--dry-run", "--source-namespace", "docker.io/mirror", "dbt")
			gt.NoError(t, err)
			gt.String(t, out).Contains("--tag ghcr.io/example/containers/dbt:stable docker.io/mirror/dbt:stable")
		})
	}

	t.Run("unset", func(t *testing.T) {
		t.Setenv("PACKAGE_INCLUDE_STABLE", "")
		out, err := run(t, "--root", root, "retag", "--dry-run", "--source-namespace", "docker.io/mirror", "dbt")
		gt.NoError(t, err)
		gt.False(t, strings.Contains(out, ":stable"))
	})
}

func TestRun_InvalidLogLevel(t *testing.T) {
	_, err := run(t, "--log-level", "loud", "--root", setupRoot(t))
	gt.Error(t, err)
	gt.V(t, dpc.ExitCode(err)).Equal(1)
}

func TestExitCode(t *testing.T) {
	gt.V(t, dpc.ExitCode(nil)).Equal(0)
	gt.V(t, dpc.ExitCode(errors.New("boom"))).Equal(1)
	gt.V(t, dpc.ExitCode(cli.Exit("", 2))).Equal(2)
}
