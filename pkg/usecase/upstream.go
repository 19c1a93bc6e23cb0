package usecase

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/m-mizutani/goerr/v2"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
	"github.com/bssprx/data-platform-containers/pkg/utils/logging"
)

const (
	DefaultPyPIBaseURL  = "https://pypi.org"
	DefaultMavenBaseURL = "https://repo1.maven.org/maven2"
)

// UpstreamUseCase checks upstream registries for newer releases
type UpstreamUseCase struct {
	repo         interfaces.PackageRepository
	client       interfaces.UpstreamClient
	pypiBaseURL  string
	mavenBaseURL string
}

// UpstreamOption configures UpstreamUseCase
type UpstreamOption func(*UpstreamUseCase)

// WithPyPIBaseURL overrides the package index host
func WithPyPIBaseURL(u string) UpstreamOption {
	return func(uc *UpstreamUseCase) {
		uc.pypiBaseURL = strings.TrimRight(u, "/")
	}
}

// WithMavenBaseURL overrides the Maven repository used for group:artifact components
func WithMavenBaseURL(u string) UpstreamOption {
	return func(uc *UpstreamUseCase) {
		uc.mavenBaseURL = strings.TrimRight(u, "/")
	}
}

// NewUpstream creates an UpstreamUseCase
func NewUpstream(repo interfaces.PackageRepository, client interfaces.UpstreamClient, opts ...UpstreamOption) *UpstreamUseCase {
	uc := &UpstreamUseCase{
		repo:         repo,
		client:       client,
		pypiBaseURL:  DefaultPyPIBaseURL,
		mavenBaseURL: DefaultMavenBaseURL,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Check runs the upstream check of one package. Source failures are reported
// in the result; the error return is reserved for unusable metadata.
func (uc *UpstreamUseCase) Check(ctx context.Context, slug string) (*model.UpstreamResult, error) {
	pkg, err := uc.repo.Load(ctx, slug)
	if err != nil {
		return nil, err
	}

	v := pkg.Metadata.Version
	current := strings.TrimSpace(v.Current)
	if current == "" {
		return nil, goerr.New("version.current must be set for upstream checks", goerr.V("package", slug))
	}

	base := model.UpstreamResult{
		Package:  pkg.PackageSlug(),
		Strategy: v.StrategyName(),
		Current:  current,
		Status:   model.UpstreamSkipped,
	}

	var result *model.UpstreamResult
	switch base.Strategy {
	case model.StrategyPyPI:
		result = uc.checkPyPI(ctx, pkg, base)
	case model.StrategyHTTPDirectory:
		result = uc.checkHTTPDirectory(ctx, pkg, base)
	case model.StrategyMaven:
		result = uc.checkMaven(ctx, pkg, base)
	default:
		result, err = uc.checkVersionIndex(ctx, pkg, base)
		if err != nil {
			return nil, err
		}
	}

	logging.From(ctx).Info("Upstream check completed",
		"package", result.Package,
		"strategy", result.Strategy,
		"current", result.Current,
		"latest", result.Latest,
		"status", result.Status,
	)
	return result, nil
}

func failed(r model.UpstreamResult, source, msg string) *model.UpstreamResult {
	r.Status = model.UpstreamError
	r.Error = msg
	r.Source = source
	return &r
}

func (uc *UpstreamUseCase) checkPyPI(ctx context.Context, pkg *model.Package, r model.UpstreamResult) *model.UpstreamResult {
	v := pkg.Metadata.Version
	name := strings.TrimSpace(v.Component)
	if name == "" {
		name = strings.TrimSpace(r.Package)
	}
	if name == "" {
		return failed(r, "", "missing PyPI package name")
	}

	source := uc.pypiBaseURL + "/pypi/" + url.PathEscape(name) + "/json"
	var payload struct {
		Info struct {
			Version string `json:"version"`
		} `json:"info"`
	}
	if err := uc.client.GetJSON(ctx, source, seconds(v.EffectiveTimeout()), &payload); err != nil {
		return failed(r, source, err.Error())
	}
	if payload.Info.Version == "" {
		return failed(r, source, "unable to determine latest PyPI version")
	}

	r.Source = source
	return uc.decide(ctx, pkg, r, payload.Info.Version)
}

func (uc *UpstreamUseCase) checkHTTPDirectory(ctx context.Context, pkg *model.Package, r model.UpstreamResult) *model.UpstreamResult {
	src := pkg.Metadata.Version.Source
	pattern := src.MatchPattern()
	if src.URL == "" || pattern == "" {
		return failed(r, "", "missing http-directory configuration")
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return failed(r, src.URL, "invalid http-directory pattern: "+err.Error())
	}

	body, err := uc.client.GetText(ctx, src.URL, seconds(src.EffectiveTimeout()))
	if err != nil {
		return failed(r, src.URL, err.Error())
	}

	matches := extractMatches(re, body)
	latest, ok := model.MaxVersion(matches)
	if !ok {
		return failed(r, src.URL, "no matches from http-directory source")
	}

	r.Source = src.URL
	return uc.decide(ctx, pkg, r, latest)
}

// extractMatches returns every match, or its first capture group when the pattern has groups
func extractMatches(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if re.NumSubexp() > 0 {
			out = append(out, m[1])
		} else {
			out = append(out, m[0])
		}
	}
	return out
}

type mavenMetadata struct {
	Versioning struct {
		Latest   string   `xml:"latest"`
		Release  string   `xml:"release"`
		Versions []string `xml:"versions>version"`
	} `xml:"versioning"`
}

func (uc *UpstreamUseCase) mavenMetadataURL(pkg *model.Package) string {
	src := pkg.Metadata.Version.Source
	if src.URL != "" {
		return src.URL
	}
	group, artifact, ok := strings.Cut(strings.TrimSpace(pkg.Metadata.Version.Component), ":")
	if !ok || group == "" || artifact == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s/maven-metadata.xml", uc.mavenBaseURL, strings.ReplaceAll(group, ".", "/"), artifact)
}

func (uc *UpstreamUseCase) checkMaven(ctx context.Context, pkg *model.Package, r model.UpstreamResult) *model.UpstreamResult {
	src := pkg.Metadata.Version.Source
	source := uc.mavenMetadataURL(pkg)
	if source == "" {
		return failed(r, "", "missing maven configuration")
	}

	var filter *regexp.Regexp
	if pattern := src.MatchPattern(); pattern != "" {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return failed(r, source, "invalid maven version pattern: "+err.Error())
		}
		filter = re
	}

	body, err := uc.client.GetText(ctx, source, seconds(src.EffectiveTimeout()))
	if err != nil {
		return failed(r, source, err.Error())
	}

	var meta mavenMetadata
	if err := xml.Unmarshal([]byte(body), &meta); err != nil {
		return failed(r, source, "failed to parse maven metadata: "+err.Error())
	}

	var candidates []string
	for _, version := range meta.Versioning.Versions {
		version = strings.TrimSpace(version)
		if filter == nil {
			candidates = append(candidates, version)
			continue
		}
		candidates = append(candidates, extractMatches(filter, version)...)
	}

	latest, ok := model.MaxVersion(candidates)
	if !ok {
		return failed(r, source, "no versions found in maven metadata")
	}

	r.Source = source
	return uc.decide(ctx, pkg, r, latest)
}

// indexCandidates lists the names a package may be recorded under in versions.json
func indexCandidates(component, slug string) []string {
	var out []string
	if component != "" {
		c := strings.ToLower(component)
		out = append(out, c, strings.ReplaceAll(c, "-", "_"))
	}
	if slug != "" {
		s := strings.ToLower(slug)
		prefix, _, _ := strings.Cut(s, "-")
		out = append(out, s, strings.ReplaceAll(s, "-", "_"), prefix)
	}
	return out
}

func (uc *UpstreamUseCase) checkVersionIndex(ctx context.Context, pkg *model.Package, r model.UpstreamResult) (*model.UpstreamResult, error) {
	index, ok, err := uc.repo.ReadVersionIndex(ctx, pkg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &r, nil
	}

	for _, key := range indexCandidates(pkg.Metadata.Version.Component, r.Package) {
		entry, found := index[key].(map[string]any)
		if key == "" || !found {
			continue
		}
		versions := make([]string, 0, len(entry))
		for version := range entry {
			versions = append(versions, version)
		}
		// equal keys such as "1.02" and "1.2" resolve to the first in sorted order
		sort.Strings(versions)
		latest, ok := model.MaxVersion(versions)
		if !ok {
			return &r, nil
		}
		return uc.decide(ctx, pkg, r, latest), nil
	}
	return &r, nil
}

// decide classifies a discovered latest version against current
func (uc *UpstreamUseCase) decide(ctx context.Context, pkg *model.Package, r model.UpstreamResult, latest string) *model.UpstreamResult {
	r.Latest = latest
	if !model.IsNewer(latest, r.Current) {
		r.Status = model.UpstreamUpToDate
		return &r
	}

	v := pkg.Metadata.Version
	if v.Constraint != "" {
		constraint, err := semver.NewConstraint(v.Constraint)
		if err != nil {
			r.Status = model.UpstreamError
			r.Error = "invalid version constraint: " + err.Error()
			return &r
		}
		// versions that are not semver cannot be gated by a constraint
		if parsed, err := semver.NewVersion(latest); err == nil && !constraint.Check(parsed) {
			r.Status = model.UpstreamBlocked
			r.Error = fmt.Sprintf("latest %s does not satisfy constraint %q", latest, v.Constraint)
			return &r
		}
	}

	if v.Source.VerifyURL != "" {
		target := strings.ReplaceAll(v.Source.VerifyURL, "{version}", latest)
		code, err := uc.client.Head(ctx, target, seconds(v.Source.EffectiveTimeout()))
		switch {
		case err != nil:
			r.Status = model.UpstreamBlocked
			r.Error = "release artifact check failed: " + err.Error()
			return &r
		case code < 200 || code >= 300:
			r.Status = model.UpstreamBlocked
			r.Error = fmt.Sprintf("release artifact not available (HTTP %d): %s", code, target)
			return &r
		}
	}

	r.Status = model.UpstreamUpdateAvailable
	return &r
}
