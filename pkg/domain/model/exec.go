package model

import "strings"

// Command describes an external program invocation
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string // nil inherits the current environment
}

// String renders the command line for display
func (c *Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// CommandOutput holds the captured streams of a finished command
type CommandOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Combined joins the non-empty trimmed streams, stderr first
func (o *CommandOutput) Combined() string {
	var lines []string
	for _, s := range []string{o.Stderr, o.Stdout} {
		if s = strings.TrimSpace(s); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}
