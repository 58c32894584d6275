package stamp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/quintans/faults"
)

// Command is an external program to run in Dir.
type Command struct {
	Dir  string
	Name string
	Args []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is what a finished external program left behind.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// ProcessRunner runs external programs.
// A program that ran and exited non-zero is not an error for the runner; only failing to run it is.
type ProcessRunner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec, capturing stdout and stderr.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, faults.Wrap(err)
	}
	return res, nil
}

// CommandError reports an external step that exited with a non-zero status.
type CommandError struct {
	Step    string
	Command Command
	Result  Result
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %q exited with status %d", e.Step, e.Command.String(), e.Result.ExitCode)
}

// runStep runs c and turns a non-zero exit into a *CommandError.
func runStep(ctx context.Context, runner ProcessRunner, step string, c Command) error {
	res, err := runner.Run(ctx, c)
	if err != nil {
		return faults.Errorf("%s: %w", step, err)
	}
	if res.ExitCode != 0 {
		return faults.Wrap(&CommandError{Step: step, Command: c, Result: res})
	}
	return nil
}
