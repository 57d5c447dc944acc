package kube

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	deployerr "github.com/deploybot/deploybot/pkg/errors"
)

// Kubectl applies files with the kubectl binary.
type Kubectl struct {
	exe string
}

func NewKubectl(exe string) *Kubectl {
	if exe == "" {
		exe = "kubectl"
	}
	return &Kubectl{exe: exe}
}

// ResourceError is the failure to apply a single file.
type ResourceError struct {
	File  string
	Error error
}

// ApplyError lists every file that failed to apply.
type ApplyError []ResourceError

func (err ApplyError) Error() string {
	var errs []string
	for _, e := range err {
		errs = append(errs, e.File+": "+e.Error.Error())
	}
	return strings.Join(errs, "; ")
}

// Result tallies an apply: every file ends up in exactly one of
// Applied or Failed.
type Result struct {
	Applied []string
	Failed  ApplyError
}

// Apply runs `kubectl apply -f <file> --context=<kubeContext>` in dir
// for each file. A failure does not stop the others being attempted.
func (c *Kubectl) Apply(ctx context.Context, logger log.Logger, dir, kubeContext string, files []string) Result {
	var result Result
	for _, file := range files {
		if err := c.doCommand(ctx, logger, dir, "apply", "-f", file, "--context="+kubeContext); err != nil {
			logger.Log("event", "kube_file_apply_exception", "file", file, "err", err)
			result.Failed = append(result.Failed, ResourceError{File: file, Error: err})
			continue
		}
		logger.Log("event", "kube_file_apply_ok", "file", file)
		result.Applied = append(result.Applied, file)
	}
	return result
}

func (c *Kubectl) doCommand(ctx context.Context, logger log.Logger, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, c.exe, args...)
	cmd.Dir = dir
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdout := &bytes.Buffer{}
	cmd.Stdout = stdout

	begin := time.Now()
	err := cmd.Run()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		err = errors.Wrap(errors.New(msg), "running kubectl")
	}

	logger.Log("cmd", "kubectl "+strings.Join(args, " "), "took", time.Since(begin), "err", err, "output", strings.TrimSpace(stdout.String()))
	return err
}

func applyError(kubeContext string, err ApplyError) error {
	return &deployerr.Error{
		Type: deployerr.User,
		Err:  err,
		Help: `Some resource files could not be applied to context ` + kubeContext + `

The files that failed, and kubectl's complaint about each, are given
above. Files not listed were applied.
`,
	}
}
