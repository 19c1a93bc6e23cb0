package container

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
)

const (
	metadataFile     = "container.yaml"
	versionIndexFile = "versions.json"
	templateDir      = "_template"
)

type repository struct {
	root string
}

// New returns a repository over <root>/containers
func New(root string) interfaces.PackageRepository {
	return &repository{root: root}
}

func (r *repository) Root() string {
	return r.root
}

func (r *repository) containersDir() string {
	return filepath.Join(r.root, "containers")
}

// List returns package slugs, skipping hidden directories and the template
func (r *repository) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.containersDir())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read containers directory", goerr.V("dir", r.containersDir()))
	}

	var slugs []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") || name == templateDir {
			continue
		}
		if _, err := os.Stat(filepath.Join(r.containersDir(), name, metadataFile)); err != nil {
			continue
		}
		slugs = append(slugs, name)
	}
	sort.Strings(slugs)
	return slugs, nil
}

func (r *repository) Load(ctx context.Context, slug string) (*model.Package, error) {
	if slug == "" || strings.ContainsAny(slug, `/\`) || slug == "." || slug == ".." {
		return nil, goerr.New("invalid package slug", goerr.V("slug", slug))
	}

	dir := filepath.Join(r.containersDir(), slug)
	path := filepath.Join(dir, metadataFile)

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(model.ErrPackageNotFound, "failed to load package", goerr.V("path", path))
		}
		return nil, goerr.Wrap(err, "failed to read container metadata", goerr.V("path", path))
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to parse container metadata", goerr.V("path", path))
	}
	if doc == nil {
		doc = map[string]any{}
	}

	var meta model.Metadata
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return nil, goerr.Wrap(err, "failed to decode container metadata", goerr.V("path", path))
	}

	return &model.Package{
		Slug:     slug,
		Dir:      dir,
		Path:     path,
		Metadata: &meta,
		Document: doc,
	}, nil
}

func (r *repository) ReadVersionIndex(ctx context.Context, pkg *model.Package) (map[string]any, bool, error) {
	path := filepath.Join(pkg.Dir, versionIndexFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, goerr.Wrap(err, "failed to read version index", goerr.V("path", path))
	}

	var index map[string]any
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, false, goerr.Wrap(err, "failed to parse version index", goerr.V("path", path))
	}
	return index, true, nil
}

// ReplaceKeys edits container.yaml line by line so comments and layout survive
func (r *repository) ReplaceKeys(ctx context.Context, pkg *model.Package, values []interfaces.KeyValue) ([]string, error) {
	info, err := os.Stat(pkg.Path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to stat container metadata", goerr.V("path", pkg.Path))
	}
	raw, err := os.ReadFile(pkg.Path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read container metadata", goerr.V("path", pkg.Path))
	}

	lines := strings.SplitAfter(string(raw), "\n")
	var replaced []string
	for _, kv := range values {
		if replaceKey(lines, kv.Key, kv.Value) {
			replaced = append(replaced, kv.Key)
			continue
		}
		if kv.Required {
			return nil, goerr.New("unable to update metadata key",
				goerr.V("path", pkg.Path),
				goerr.V("key", kv.Key))
		}
	}

	if len(replaced) == 0 {
		return nil, nil
	}

	if err := os.WriteFile(pkg.Path, []byte(strings.Join(lines, "")), info.Mode().Perm()); err != nil {
		return nil, goerr.Wrap(err, "failed to write container metadata", goerr.V("path", pkg.Path))
	}
	return replaced, nil
}

func replaceKey(lines []string, key, value string) bool {
	for i, line := range lines {
		stripped := strings.TrimLeft(line, " \t")
		if !strings.HasPrefix(stripped, key+":") {
			continue
		}
		indent := line[:len(line)-len(stripped)]
		lines[i] = indent + key + ": " + quote(value) + "\n"
		return true
	}
	return false
}

func quote(value string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(value, `\`, `\\`), `"`, `\"`) + `"`
}
