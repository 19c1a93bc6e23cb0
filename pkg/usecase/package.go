package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
	"github.com/bssprx/data-platform-containers/pkg/utils/logging"
)

// TagOptions controls the extra tags added to every image
type TagOptions struct {
	IncludeStable bool
	GitSHA        string // empty falls back to git rev-parse
}

// BuildOptions controls docker build
type BuildOptions struct {
	TagOptions
	Platforms string // comma separated; non-empty switches to buildx
	Push      bool
}

// RetagOptions controls copying published tags from another registry namespace
type RetagOptions struct {
	TagOptions
	SourceImage     string
	SourceNamespace string
	DryRun          bool
	SkipMissing     bool
}

// PackageUseCase builds, tests and publishes container packages
type PackageUseCase struct {
	repo interfaces.PackageRepository
	exec interfaces.Executor
	out  io.Writer
}

// NewPackage creates a PackageUseCase. Progress lines go to out.
func NewPackage(repo interfaces.PackageRepository, exec interfaces.Executor, out io.Writer) *PackageUseCase {
	return &PackageUseCase{
		repo: repo,
		exec: exec,
		out:  out,
	}
}

func (uc *PackageUseCase) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(uc.out, format, args...)
}

// List returns all package slugs
func (uc *PackageUseCase) List(ctx context.Context) ([]string, error) {
	return uc.repo.List(ctx)
}

// ResolveTags returns the tag names (without image) for a package
func (uc *PackageUseCase) ResolveTags(ctx context.Context, pkg *model.Package, opts TagOptions) ([]string, error) {
	meta := pkg.Metadata
	if meta.Publish.Image == "" {
		return nil, goerr.New("publish.image must be set in container.yaml", goerr.V("package", pkg.Slug))
	}
	if len(meta.Publish.Tags) == 0 {
		return nil, goerr.New("publish.tags must contain at least one entry", goerr.V("package", pkg.Slug))
	}

	var tags []string
	add := func(tag string) {
		for _, t := range tags {
			if t == tag {
				return
			}
		}
		tags = append(tags, tag)
	}

	for _, raw := range meta.Publish.Tags {
		v, err := model.ResolveToken(pkg.Document, raw)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to resolve publish tag", goerr.V("package", pkg.Slug))
		}
		tags = append(tags, fmt.Sprint(v))
	}

	if parts := strings.Split(strings.TrimSpace(meta.Version.Current), "."); len(parts) >= 3 &&
		isNumeric(parts[0]) && isNumeric(parts[1]) && isNumeric(parts[2]) {
		add(parts[0])
		add(parts[0] + "." + parts[1])
		add(parts[0] + "." + parts[1] + "." + parts[2])
	}

	add("latest")
	if opts.IncludeStable {
		add("stable")
	}

	if sha := uc.gitSHA(ctx, opts.GitSHA); sha != "" {
		add("sha-" + sha)
	}

	return tags, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (uc *PackageUseCase) gitSHA(ctx context.Context, fromEnv string) string {
	if sha := strings.TrimSpace(fromEnv); sha != "" {
		if len(sha) > 12 {
			sha = sha[:12]
		}
		return sha
	}

	out, err := uc.exec.Capture(ctx, &model.Command{
		Name: "git",
		Args: []string{"rev-parse", "--short=12", "HEAD"},
		Dir:  uc.repo.Root(),
	})
	if err != nil {
		logging.From(ctx).Debug("git sha unavailable", "error", err)
		return ""
	}
	return strings.TrimSpace(out.Stdout)
}

// ImageRefs returns fully qualified image:tag references
func (uc *PackageUseCase) ImageRefs(ctx context.Context, pkg *model.Package, opts TagOptions) ([]string, error) {
	tags, err := uc.ResolveTags(ctx, pkg, opts)
	if err != nil {
		return nil, err
	}
	refs := make([]string, 0, len(tags))
	for _, tag := range tags {
		refs = append(refs, pkg.Metadata.Publish.Image+":"+tag)
	}
	return refs, nil
}

// BuildArgs resolves build.args; keys are returned sorted
func BuildArgs(pkg *model.Package) ([]string, map[string]string, error) {
	resolved := make(map[string]string, len(pkg.Metadata.Build.Args))
	keys := make([]string, 0, len(pkg.Metadata.Build.Args))
	for key, raw := range pkg.Metadata.Build.Args {
		v, err := model.ResolveToken(pkg.Document, raw)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to resolve build arg", goerr.V("arg", key))
		}
		resolved[key] = fmt.Sprint(v)
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, resolved, nil
}

// Build runs docker build (or buildx build when platforms are set)
func (uc *PackageUseCase) Build(ctx context.Context, slug string, opts BuildOptions) error {
	pkg, err := uc.repo.Load(ctx, slug)
	if err != nil {
		return err
	}
	meta := pkg.Metadata

	dockerfile := meta.Build.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}
	buildContext := meta.Build.Context
	if buildContext == "" {
		buildContext = "."
	}
	contextDir := filepath.Join(pkg.Dir, buildContext)
	if _, err := os.Stat(contextDir); err != nil {
		return goerr.New("build context not found", goerr.V("dir", contextDir))
	}

	refs, err := uc.ImageRefs(ctx, pkg, opts.TagOptions)
	if err != nil {
		return err
	}
	base, err := meta.ImageBase()
	if err != nil {
		return err
	}
	localTag := base + ":local"

	keys, args, err := BuildArgs(pkg)
	if err != nil {
		return err
	}

	platforms := strings.TrimSpace(opts.Platforms)
	useBuildx := platforms != ""

	cmd := &model.Command{Name: "docker", Dir: pkg.Dir}
	if useBuildx {
		cmd.Args = []string{"buildx", "build"}
	} else {
		cmd.Args = []string{"build"}
	}
	cmd.Args = append(cmd.Args, "-f", filepath.Join(pkg.Dir, dockerfile))

	if useBuildx {
		cmd.Args = append(cmd.Args, "--platform", platforms)
		switch {
		case opts.Push:
			cmd.Args = append(cmd.Args, "--push")
		case !strings.Contains(platforms, ","):
			cmd.Args = append(cmd.Args, "--load")
		default:
			return goerr.New("multi-architecture builds require push to be enabled", goerr.V("platforms", platforms))
		}
	}

	hasLocal := false
	for _, ref := range refs {
		cmd.Args = append(cmd.Args, "-t", ref)
		hasLocal = hasLocal || ref == localTag
	}
	if !hasLocal {
		cmd.Args = append(cmd.Args, "-t", localTag)
	}

	for _, key := range keys {
		cmd.Args = append(cmd.Args, "--build-arg", key+"="+args[key])
	}
	cmd.Args = append(cmd.Args, contextDir)

	uc.printf("→ %s\n", cmd.String())
	if err := uc.exec.Run(ctx, cmd); err != nil {
		return goerr.Wrap(err, "docker build failed", goerr.V("package", slug))
	}
	return nil
}

// Test runs each declared test command with bash in the package directory
func (uc *PackageUseCase) Test(ctx context.Context, slug string) error {
	pkg, err := uc.repo.Load(ctx, slug)
	if err != nil {
		return err
	}

	if len(pkg.Metadata.Tests) == 0 {
		uc.printf("no tests defined; skipping\n")
		return nil
	}

	env := testEnv(os.Environ(), filepath.Join(uc.repo.Root(), ".venv", "bin"))

	for _, test := range pkg.Metadata.Tests {
		name := test.Name
		if name == "" {
			name = "unnamed"
		}
		if test.Command == "" {
			uc.printf("Skipping test '%s' with no command\n", name)
			continue
		}

		uc.printf("→ running test '%s'\n", name)
		if err := uc.exec.Run(ctx, &model.Command{
			Name: "bash",
			Args: []string{"-c", test.Command},
			Dir:  pkg.Dir,
			Env:  env,
		}); err != nil {
			return goerr.Wrap(err, "package test failed", goerr.V("package", slug), goerr.V("test", name))
		}
	}
	return nil
}

// testEnv prepends a repository virtualenv to PATH when it exists
func testEnv(environ []string, venvBin string) []string {
	env := append([]string(nil), environ...)
	if info, err := os.Stat(venvBin); err != nil || !info.IsDir() {
		return env
	}

	pathIdx, hasVirtualEnv := -1, false
	for i, kv := range env {
		switch {
		case strings.HasPrefix(kv, "PATH="):
			pathIdx = i
		case strings.HasPrefix(kv, "VIRTUAL_ENV="):
			hasVirtualEnv = true
		}
	}

	var entries []string
	if pathIdx >= 0 {
		for _, p := range filepath.SplitList(strings.TrimPrefix(env[pathIdx], "PATH=")) {
			if p != "" {
				entries = append(entries, p)
			}
		}
	}

	found := false
	for _, p := range entries {
		if p == venvBin {
			found = true
			break
		}
	}
	if !found {
		path := "PATH=" + strings.Join(append([]string{venvBin}, entries...), string(os.PathListSeparator))
		if pathIdx >= 0 {
			env[pathIdx] = path
		} else {
			env = append(env, path)
		}
	}

	if !hasVirtualEnv {
		env = append(env, "VIRTUAL_ENV="+filepath.Dir(venvBin))
	}
	return env
}

// Publish pushes every resolved tag
func (uc *PackageUseCase) Publish(ctx context.Context, slug string, opts TagOptions) error {
	pkg, err := uc.repo.Load(ctx, slug)
	if err != nil {
		return err
	}

	refs, err := uc.ImageRefs(ctx, pkg, opts)
	if err != nil {
		return err
	}

	for _, ref := range refs {
		uc.printf("→ docker push %s\n", ref)
		if err := uc.exec.Run(ctx, &model.Command{Name: "docker", Args: []string{"push", ref}}); err != nil {
			return goerr.Wrap(err, "docker push failed", goerr.V("ref", ref))
		}
	}
	return nil
}

// SourceImage picks the retag source from an explicit image or a namespace
func SourceImage(meta *model.Metadata, image, namespace string) (string, error) {
	switch {
	case image != "" && namespace != "":
		return "", goerr.New("provide either a source image or a source namespace, not both")
	case image != "":
		return image, nil
	case namespace != "":
		base, err := meta.ImageBase()
		if err != nil {
			return "", err
		}
		return strings.TrimRight(namespace, "/") + "/" + base, nil
	default:
		return "", goerr.New("missing source image: provide a source image or a source namespace")
	}
}

// Retag copies every resolved tag from the source image with buildx imagetools
func (uc *PackageUseCase) Retag(ctx context.Context, slug string, opts RetagOptions) error {
	pkg, err := uc.repo.Load(ctx, slug)
	if err != nil {
		return err
	}

	source, err := SourceImage(pkg.Metadata, opts.SourceImage, opts.SourceNamespace)
	if err != nil {
		return err
	}

	tags, err := uc.ResolveTags(ctx, pkg, opts.TagOptions)
	if err != nil {
		return err
	}

	for _, tag := range tags {
		src := source + ":" + tag
		dest := pkg.Metadata.Publish.Image + ":" + tag
		cmd := &model.Command{
			Name: "docker",
			Args: []string{"buildx", "imagetools", "create", "--tag", dest, src},
		}
		uc.printf("→ %s\n", cmd.String())
		if opts.DryRun {
			continue
		}

		out, err := uc.exec.Capture(ctx, cmd)
		if err == nil {
			continue
		}
		combined := ""
		if out != nil {
			combined = out.Combined()
		}
		if opts.SkipMissing && strings.Contains(strings.ToLower(combined), "not found") {
			uc.printf("→ skipping missing source tag: %s\n", src)
			continue
		}
		if combined == "" {
			combined = "retag failed for " + src
		}
		return goerr.Wrap(err, combined, goerr.V("source", src), goerr.V("dest", dest))
	}
	return nil
}

// RetagAll retags every package in order, stopping at the first failure
func (uc *PackageUseCase) RetagAll(ctx context.Context, opts RetagOptions) error {
	slugs, err := uc.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, slug := range slugs {
		if err := uc.Retag(ctx, slug, opts); err != nil {
			return err
		}
	}
	return nil
}

// Show writes the metadata document as indented JSON
func (uc *PackageUseCase) Show(ctx context.Context, slug string) error {
	pkg, err := uc.repo.Load(ctx, slug)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(uc.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pkg.Document); err != nil {
		return goerr.Wrap(err, "failed to encode metadata", goerr.V("package", slug))
	}
	return nil
}

// DetectVersion prints the version strategy of a package
func (uc *PackageUseCase) DetectVersion(ctx context.Context, slug string) error {
	pkg, err := uc.repo.Load(ctx, slug)
	if err != nil {
		return err
	}

	v := pkg.Metadata.Version
	uc.printf("Strategy: %s\n", v.Strategy)
	uc.printf("Current: %s\n", v.Current)
	if v.Notes != "" {
		uc.printf("Notes: %s\n", v.Notes)
	}
	if v.StrategyName() != model.StrategyManual {
		uc.printf("Run check-upstream %s to query the upstream source\n", slug)
	}
	return nil
}
