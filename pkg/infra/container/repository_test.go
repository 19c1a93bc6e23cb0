package container_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
	"github.com/bssprx/data-platform-containers/pkg/infra/container"
)

const sparkYAML = `# Spark runtime image
slug: spark
build:
  dockerfile: Dockerfile
  context: .
  args:
    SPARK_VERSION: "!version.current"
    ICEBERG_VERSION: "1.6.1"
    JAVA_MAJOR: 17
publish:
  image: ghcr.io/example/containers/spark
  tags:
    - "!version.current"
version:
  strategy: http-directory
  current: 3.5.1
  source:
    url: https://archive.apache.org/dist/spark/
    regex: 'spark-(\d+\.\d+\.\d+)/'
    timeout: 5
tests:
  - name: metadata
    command: python3 tests/metadata.py
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	gt.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "containers", "spark", "container.yaml"), sparkYAML)
	writeFile(t, filepath.Join(root, "containers", "airflow", "container.yaml"), "version:\n  current: \"3.0.2\"\n")
	writeFile(t, filepath.Join(root, "containers", "_template", "container.yaml"), "slug: template\n")
	writeFile(t, filepath.Join(root, "containers", ".hidden", "container.yaml"), "slug: hidden\n")
	gt.NoError(t, os.MkdirAll(filepath.Join(root, "containers", "empty"), 0o755))
	return root
}

func TestRepository_List(t *testing.T) {
	repo := container.New(setupRoot(t))
	slugs, err := repo.List(context.Background())
	gt.NoError(t, err)
	gt.V(t, slugs).Equal([]string{"airflow", "spark"})
}

func TestRepository_Load(t *testing.T) {
	ctx := context.Background()
	root := setupRoot(t)
	repo := container.New(root)

	t.Run("typed metadata", func(t *testing.T) {
		pkg, err := repo.Load(ctx, "spark")
		gt.NoError(t, err)
		gt.V(t, pkg.Dir).Equal(filepath.Join(root, "containers", "spark"))

		meta := pkg.Metadata
		gt.V(t, meta.Version.Current).Equal("3.5.1")
		gt.V(t, meta.Version.Strategy).Equal(model.StrategyHTTPDirectory)
		gt.V(t, meta.Version.Source.Timeout).Equal(5.0)
		gt.V(t, meta.Build.Args["JAVA_MAJOR"]).Equal("17")
		gt.V(t, meta.Build.Args["SPARK_VERSION"]).Equal("!version.current")
		gt.V(t, meta.Publish.Tags).Equal([]string{"!version.current"})
		gt.V(t, len(meta.Tests)).Equal(1)
		gt.V(t, meta.Tests[0].Name).Equal("metadata")
	})

	t.Run("raw document", func(t *testing.T) {
		pkg, err := repo.Load(ctx, "spark")
		gt.NoError(t, err)
		v, err := model.ResolveToken(pkg.Document, "!publish.image")
		gt.NoError(t, err)
		gt.V(t, v).Equal(any("ghcr.io/example/containers/spark"))
	})

	t.Run("missing package", func(t *testing.T) {
		_, err := repo.Load(ctx, "nope")
		gt.Error(t, err)
		gt.True(t, errors.Is(err, model.ErrPackageNotFound))
	})

	t.Run("path traversal refused", func(t *testing.T) {
		_, err := repo.Load(ctx, "../containers")
		gt.Error(t, err)
	})
}

func TestRepository_ReadVersionIndex(t *testing.T) {
	ctx := context.Background()
	root := setupRoot(t)
	repo := container.New(root)

	pkg, err := repo.Load(ctx, "airflow")
	gt.NoError(t, err)

	_, ok, err := repo.ReadVersionIndex(ctx, pkg)
	gt.NoError(t, err)
	gt.False(t, ok)

	writeFile(t, filepath.Join(pkg.Dir, "versions.json"), `{"airflow": {"3.0.2": {}, "3.1.0": {}}}`)
	index, ok, err := repo.ReadVersionIndex(ctx, pkg)
	gt.NoError(t, err)
	gt.True(t, ok)
	gt.V(t, len(index)).Equal(1)

	writeFile(t, filepath.Join(pkg.Dir, "versions.json"), `{broken`)
	_, _, err = repo.ReadVersionIndex(ctx, pkg)
	gt.Error(t, err)
}

func TestRepository_ReplaceKeys(t *testing.T) {
	ctx := context.Background()
	root := setupRoot(t)
	repo := container.New(root)

	pkg, err := repo.Load(ctx, "spark")
	gt.NoError(t, err)

	replaced, err := repo.ReplaceKeys(ctx, pkg, []interfaces.KeyValue{
		{Key: "current", Value: "3.5.2"},
		{Key: "ICEBERG_VERSION", Value: "1.7.0"},
		{Key: "missing_key", Value: "x"},
	})
	gt.NoError(t, err)
	gt.V(t, replaced).Equal([]string{"current", "ICEBERG_VERSION"})

	raw, err := os.ReadFile(pkg.Path)
	gt.NoError(t, err)
	gt.String(t, string(raw)).Contains("  current: \"3.5.2\"\n")
	gt.String(t, string(raw)).Contains("    ICEBERG_VERSION: \"1.7.0\"\n")
	gt.String(t, string(raw)).Contains("# Spark runtime image\n")

	reloaded, err := repo.Load(ctx, "spark")
	gt.NoError(t, err)
	gt.V(t, reloaded.Metadata.Version.Current).Equal("3.5.2")
	gt.V(t, reloaded.Metadata.Build.Args["ICEBERG_VERSION"]).Equal("1.7.0")

	t.Run("missing required key writes nothing", func(t *testing.T) {
		before, err := os.ReadFile(pkg.Path)
		gt.NoError(t, err)
		_, err = repo.ReplaceKeys(ctx, pkg, []interfaces.KeyValue{
			{Key: "current", Value: "9.9.9"},
			{Key: "base_image", Value: "x", Required: true},
		})
		gt.Error(t, err)
		after, err := os.ReadFile(pkg.Path)
		gt.NoError(t, err)
		gt.V(t, string(after)).Equal(string(before))
	})

	t.Run("nothing to replace leaves file untouched", func(t *testing.T) {
		before, err := os.ReadFile(pkg.Path)
		gt.NoError(t, err)
		replaced, err := repo.ReplaceKeys(ctx, pkg, []interfaces.KeyValue{{Key: "absent", Value: "1"}})
		gt.NoError(t, err)
		gt.V(t, len(replaced)).Equal(0)
		after, err := os.ReadFile(pkg.Path)
		gt.NoError(t, err)
		gt.V(t, string(after)).Equal(string(before))
	})
}
