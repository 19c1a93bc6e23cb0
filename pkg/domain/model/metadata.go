package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

const (
	StrategyManual        = "manual"
	StrategyPyPI          = "pypi"
	StrategyHTTPDirectory = "http-directory"
	StrategyMaven         = "maven"

	// DefaultUpstreamTimeout is used when a metadata file sets no timeout, in seconds
	DefaultUpstreamTimeout = 10.0
)

// Metadata is the typed view of a package's container.yaml
type Metadata struct {
	Slug    string      `yaml:"slug"`
	Build   BuildSpec   `yaml:"build"`
	Publish PublishSpec `yaml:"publish"`
	Version VersionSpec `yaml:"version"`
	Runtime RuntimeSpec `yaml:"runtime"`
	Tests   []TestSpec  `yaml:"tests"`
}

type BuildSpec struct {
	Dockerfile string            `yaml:"dockerfile"`
	Context    string            `yaml:"context"`
	Args       map[string]string `yaml:"args"`
}

type PublishSpec struct {
	Image string   `yaml:"image"`
	Tags  []string `yaml:"tags"`
}

type VersionSpec struct {
	Strategy   string       `yaml:"strategy"`
	Current    string       `yaml:"current"`
	Component  string       `yaml:"component"`
	Notes      string       `yaml:"notes"`
	Timeout    float64      `yaml:"timeout"`
	Constraint string       `yaml:"constraint"`
	Source     UpstreamSpec `yaml:"source"`
}

// UpstreamSpec configures where http-directory and maven checks look
type UpstreamSpec struct {
	URL       string  `yaml:"url"`
	Regex     string  `yaml:"regex"`
	Pattern   string  `yaml:"pattern"`
	Timeout   float64 `yaml:"timeout"`
	VerifyURL string  `yaml:"verify_url"`
}

type RuntimeSpec struct {
	BaseImage string `yaml:"base_image"`
}

type TestSpec struct {
	Name    string `yaml:"name"`
	Command string `yaml:"command"`
}

// Package is a loaded container package: its directory, typed metadata and
// the raw document used for token resolution and display.
type Package struct {
	Slug     string
	Dir      string
	Path     string
	Metadata *Metadata
	Document map[string]any
}

// StrategyName returns the configured strategy, "manual" when unset
func (v VersionSpec) StrategyName() string {
	if s := strings.TrimSpace(v.Strategy); s != "" {
		return s
	}
	return StrategyManual
}

// EffectiveTimeout returns the pypi timeout in seconds
func (v VersionSpec) EffectiveTimeout() float64 {
	if v.Timeout > 0 {
		return v.Timeout
	}
	return DefaultUpstreamTimeout
}

// EffectiveTimeout returns the source timeout in seconds
func (s UpstreamSpec) EffectiveTimeout() float64 {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultUpstreamTimeout
}

// MatchPattern returns regex, falling back to pattern
func (s UpstreamSpec) MatchPattern() string {
	if s.Regex != "" {
		return s.Regex
	}
	return s.Pattern
}

// PackageSlug prefers the slug declared in metadata over the directory name
func (p *Package) PackageSlug() string {
	if p.Metadata != nil && p.Metadata.Slug != "" {
		return p.Metadata.Slug
	}
	return p.Slug
}

// ImageBase returns the last path element of publish.image
func (m *Metadata) ImageBase() (string, error) {
	if m.Publish.Image == "" {
		return "", goerr.New("publish.image must be set in container.yaml")
	}
	image := m.Publish.Image
	if idx := strings.LastIndex(image, "/"); idx >= 0 {
		image = image[idx+1:]
	}
	return image, nil
}

// ResolveToken returns value unchanged unless it is a "!a.b.c" reference, in
// which case the referenced value of the document is returned.
func ResolveToken(doc map[string]any, value string) (any, error) {
	if !strings.HasPrefix(value, "!") {
		return value, nil
	}
	path := value[1:]

	var node any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, goerr.New("unable to resolve token in metadata", goerr.V("token", value))
		}
		next, ok := m[part]
		if !ok {
			return nil, goerr.New("unable to resolve token in metadata", goerr.V("token", value))
		}
		node = next
	}
	return node, nil
}
