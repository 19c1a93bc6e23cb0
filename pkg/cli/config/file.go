package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// File is an optional TOML file supplying flag values. Nested tables are
// joined with "-", so [jwt] expiration = "2h" sets --jwt-expiration.
type File struct {
	Path string
}

func (c *File) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "TOML file with default flag values",
			Destination: &c.Path,
			Sources:     cli.EnvVars("DPC_CONFIG"),
		},
	}
}

// Setter is the part of *cli.Command used to apply file values
type Setter interface {
	IsSet(name string) bool
	Set(name, value string) error
}

// Apply sets every flag found in the file that was not given on the command
// line or through the environment. Unknown keys are errors.
func (c *File) Apply(cmd Setter) error {
	if c.Path == "" {
		return nil
	}

	raw, err := os.ReadFile(c.Path)
	if err != nil {
		return goerr.Wrap(err, "failed to read config file", goerr.V("path", c.Path))
	}

	var doc map[string]any
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return goerr.Wrap(err, "failed to parse config file", goerr.V("path", c.Path))
	}

	values := make(map[string][]string)
	if err := flatten("", doc, values); err != nil {
		return goerr.Wrap(err, "invalid config file", goerr.V("path", c.Path))
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if cmd.IsSet(name) {
			continue
		}
		for _, v := range values[name] {
			if err := cmd.Set(name, v); err != nil {
				return goerr.Wrap(err, "failed to apply config value",
					goerr.V("path", c.Path),
					goerr.V("flag", name))
			}
		}
	}
	return nil
}

func flatten(prefix string, node map[string]any, out map[string][]string) error {
	for key, value := range node {
		name := strings.ReplaceAll(key, "_", "-")
		if prefix != "" {
			name = prefix + "-" + name
		}

		switch v := value.(type) {
		case map[string]any:
			if err := flatten(name, v, out); err != nil {
				return err
			}
		case []any:
			for _, item := range v {
				s, err := scalar(item)
				if err != nil {
					return goerr.Wrap(err, "unsupported array item", goerr.V("key", name))
				}
				out[name] = append(out[name], s)
			}
		default:
			s, err := scalar(v)
			if err != nil {
				return goerr.Wrap(err, "unsupported value", goerr.V("key", name))
			}
			out[name] = []string{s}
		}
	}
	return nil
}

func scalar(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool, int64, float64:
		return fmt.Sprint(x), nil
	default:
		return "", goerr.New("value must be a string, number or boolean", goerr.V("type", fmt.Sprintf("%T", v)))
	}
}
