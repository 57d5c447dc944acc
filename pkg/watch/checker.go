package watch

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// RolloutComplete is what a check prints when the rollout has
// finished; `kubectl rollout status` says e.g., `deployment "api"
// successfully rolled out`.
const RolloutComplete = "successfully rolled out"

// Checker runs one check command.
type Checker interface {
	Check(ctx context.Context, dir, cmd string) (Result, error)
}

// CommandChecker runs check commands directly, split on whitespace;
// there is no shell, so no quoting or expansion.
type CommandChecker struct{}

// Check is ResultSuccess if the command's stdout contains
// RolloutComplete, and ResultPending otherwise, whatever the exit
// status. It is ResultError only if the command could not be started.
// A command still running when ctx ends is killed.
func (CommandChecker) Check(ctx context.Context, dir, cmd string) (Result, error) {
	args := strings.Fields(cmd)
	if len(args) == 0 {
		return ResultError, errors.New("empty check command")
	}
	c := exec.CommandContext(ctx, args[0], args[1:]...)
	c.Dir = dir
	stdout := &bytes.Buffer{}
	c.Stdout = stdout

	err := c.Run()
	if strings.Contains(stdout.String(), RolloutComplete) {
		return ResultSuccess, nil
	}
	// killed for running out of time is still only pending
	if _, exited := err.(*exec.ExitError); err != nil && !exited && ctx.Err() == nil {
		return ResultError, errors.Wrapf(err, "running %q", args[0])
	}
	return ResultPending, nil
}
