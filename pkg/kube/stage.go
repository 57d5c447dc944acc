package kube

import (
	"context"

	"github.com/go-kit/kit/log"

	"github.com/deploybot/deploybot/pkg/job"
	"github.com/deploybot/deploybot/pkg/manifest"
)

// Stage rewrites a job's resource files with its image tag and
// applies them to the resource's kube context.
type Stage struct {
	kubectl *Kubectl
	logger  log.Logger
}

func NewStage(kubectl *Kubectl, logger log.Logger) *Stage {
	return &Stage{kubectl: kubectl, logger: logger}
}

// Deploy fails if the manifest cannot be resolved, if any file cannot
// be rewritten, if the resource has no kube_context, or if any file
// fails to apply. Every rewritten file is attempted regardless.
func (s *Stage) Deploy(ctx context.Context, dir string, j *job.Job) (Result, error) {
	logger := log.With(s.logger, "jobID", j.ID)

	res, err := manifest.ResolveIn(dir, j.Locator)
	if err != nil {
		return Result{}, err
	}

	latest, err := Rewrite(dir, res.Files(), j.ImageTag)
	if err != nil {
		return Result{}, err
	}
	logger.Log("event", "kube_files_rewritten", "count", len(latest), "image", j.ImageTag)

	kubeContext, err := res.Context()
	if err != nil {
		logger.Log("event", "kube_context_exception", "err", err)
		return Result{}, err
	}

	result := s.kubectl.Apply(ctx, logger, dir, kubeContext, latest)
	logger.Log("event", "kube_apply", "applied", len(result.Applied), "failed", len(result.Failed))
	if len(result.Failed) > 0 {
		return result, applyError(kubeContext, result.Failed)
	}
	return result, nil
}
