package exec

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	osexec "os/exec"

	"github.com/m-mizutani/goerr/v2"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
	"github.com/bssprx/data-platform-containers/pkg/utils/logging"
)

type executor struct {
	stdout io.Writer
	stderr io.Writer
}

// Option configures the executor
type Option func(*executor)

// WithOutput sets where streamed command output goes
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *executor) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// New returns an Executor backed by os/exec
func New(opts ...Option) interfaces.Executor {
	e := &executor{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *executor) command(ctx context.Context, cmd *model.Command) *osexec.Cmd {
	c := osexec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if cmd.Env != nil {
		c.Env = cmd.Env
	}
	return c
}

func (e *executor) Run(ctx context.Context, cmd *model.Command) error {
	logging.From(ctx).Debug("Running command", "command", cmd.String(), "dir", cmd.Dir)

	c := e.command(ctx, cmd)
	c.Stdout = e.stdout
	c.Stderr = e.stderr

	if err := c.Run(); err != nil {
		return goerr.Wrap(err, "command failed",
			goerr.V("command", cmd.String()),
			goerr.V("exit_code", exitCode(err)),
		)
	}
	return nil
}

func (e *executor) Capture(ctx context.Context, cmd *model.Command) (*model.CommandOutput, error) {
	logging.From(ctx).Debug("Capturing command", "command", cmd.String(), "dir", cmd.Dir)

	var stdout, stderr bytes.Buffer
	c := e.command(ctx, cmd)
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	out := &model.CommandOutput{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode(err),
	}
	if err != nil {
		return out, goerr.Wrap(err, "command failed",
			goerr.V("command", cmd.String()),
			goerr.V("exit_code", out.ExitCode),
		)
	}
	return out, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
