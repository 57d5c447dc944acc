package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/deploybot/deploybot/pkg/git"
	"github.com/deploybot/deploybot/pkg/job"
	"github.com/deploybot/deploybot/pkg/kube"
	"github.com/deploybot/deploybot/pkg/manifest"
	"github.com/deploybot/deploybot/pkg/metrics"
	"github.com/deploybot/deploybot/pkg/notify"
	"github.com/deploybot/deploybot/pkg/watch"
)

// Stage names, as used in notification subjects and metrics.
const (
	StageGit    = "git"
	StageDocker = "docker"
	StageKube   = "kube"
	StageWatch  = "watch"
)

// Notification subjects other than <stage>_stage_starting and
// <stage>_stage_exception.
const (
	SubjectKubeCompleted  = "kube_stage_completed"
	SubjectWatchPending   = "watch_stage_pending"
	SubjectWatchCompleted = "watch_stage_completed"
	SubjectWatchException = "watch_stage_exception"
	SubjectWatchTimeout   = "watch_stage_timeout"
	SubjectDeployComplete = "deploy_completed"
)

func startingSubject(stage string) string {
	return stage + "_stage_starting"
}

func exceptionSubject(stage string) string {
	return stage + "_stage_exception"
}

// Source checks out the commit named by a job into dir.
type Source interface {
	Fetch(ctx context.Context, dir string, j *job.Job) (sha string, err error)
}

// Builder builds and publishes a job's image.
type Builder interface {
	Build(ctx context.Context, dir string, j *job.Job) (imageTag string, err error)
}

// Deployer templates and applies a job's resource files.
type Deployer interface {
	Deploy(ctx context.Context, dir string, j *job.Job) (kube.Result, error)
}

// Watcher observes a job's rollout.
type Watcher interface {
	Specs(dir string, j *job.Job) ([]manifest.WatchSpec, error)
	Poll(ctx context.Context, dir string, spec manifest.WatchSpec, observe func(watch.Attempt)) watch.Outcome
}

// Publisher accepts notification events without waiting on their
// delivery.
type Publisher interface {
	Publish(e notify.Event) error
}

type Stages struct {
	Source   Source
	Builder  Builder
	Deployer Deployer
	Watcher  Watcher
}

// Orchestrator runs a job through each stage in turn, stopping at the
// first that fails. Nothing is retried or undone.
type Orchestrator struct {
	stages    Stages
	publisher Publisher
	logger    log.Logger
}

func NewOrchestrator(stages Stages, publisher Publisher, logger log.Logger) *Orchestrator {
	return &Orchestrator{stages: stages, publisher: publisher, logger: logger}
}

// Run takes j from admitted to deployed, working in dir. It returns
// nil on success, or the *StageError of the stage that failed. The
// rollout watch never fails a job.
func (o *Orchestrator) Run(ctx context.Context, dir string, j *job.Job) error {
	r := &run{Orchestrator: o, job: j, repo: git.SafeURL(j.Repo), logger: log.With(o.logger, "jobID", j.ID)}

	if err := r.stage(StageGit, func() error {
		sha, err := o.stages.Source.Fetch(ctx, dir, j)
		if err == nil {
			j.SHA = sha
		}
		return err
	}); err != nil {
		return err
	}

	if err := r.stage(StageDocker, func() error {
		tag, err := o.stages.Builder.Build(ctx, dir, j)
		if err == nil {
			j.ImageTag = tag
		}
		return err
	}); err != nil {
		return err
	}

	if err := r.stage(StageKube, func() error {
		result, err := o.stages.Deployer.Deploy(ctx, dir, j)
		r.logger.Log("event", "kube_apply_result", "applied", len(result.Applied), "failed", len(result.Failed))
		return err
	}); err != nil {
		return err
	}
	r.publish(SubjectKubeCompleted, notify.StatePending)

	r.stage(StageWatch, func() error {
		r.watch(ctx, dir)
		return nil
	})

	r.logger.Log("event", "deploy_completed", "sha", j.SHA, "image", j.ImageTag, "path", j.Locator)
	r.publish(SubjectDeployComplete, notify.StateSuccess)
	return nil
}

// run is the state of one job going through the pipeline.
type run struct {
	*Orchestrator
	job    *job.Job
	repo   string
	logger log.Logger
}

func (r *run) publish(subject string, state notify.State) {
	// a failure here is the dispatcher's to report
	_ = r.publisher.Publish(notify.NewEvent(subject, state, r.job, r.repo))
}

func (r *run) stage(name string, f func() error) error {
	r.logger.Log("event", startingSubject(name))
	r.publish(startingSubject(name), notify.StatePending)

	begin := time.Now()
	err := f()
	stageDuration.With(metrics.LabelStage, name, metrics.LabelSuccess, fmt.Sprint(err == nil)).Observe(time.Since(begin).Seconds())
	if err == nil {
		r.logger.Log("event", name+"_stage_completed", "took", time.Since(begin))
		return nil
	}

	code := CodeOf(err)
	r.logger.Log("event", exceptionSubject(name), "code", code, "err", err)
	r.publish(exceptionSubject(name), notify.StateError)
	return &StageError{Stage: name, Code: code, Err: err}
}

func (r *run) watch(ctx context.Context, dir string) {
	specs, err := r.stages.Watcher.Specs(dir, r.job)
	if err != nil {
		r.logger.Log("event", "watch_stage_skipped", "err", err)
		return
	}

	for _, spec := range specs {
		outcome := r.stages.Watcher.Poll(ctx, dir, spec, func(a watch.Attempt) {
			if a.Decision == watch.Pending {
				r.publish(SubjectWatchPending, notify.StatePending)
			}
		})
		switch outcome.Decision {
		case watch.Success:
			r.logger.Log("event", SubjectWatchCompleted, "cmd", spec.Cmd, "attempts", outcome.Attempts)
			r.publish(SubjectWatchCompleted, notify.StateSuccess)
		case watch.Exceeded:
			r.logger.Log("event", SubjectWatchTimeout, "cmd", spec.Cmd, "attempts", outcome.Attempts, "wait", spec.Wait)
			r.publish(SubjectWatchTimeout, notify.StatePending)
		default:
			r.logger.Log("event", SubjectWatchException, "cmd", spec.Cmd, "attempts", outcome.Attempts, "err", outcome.Err)
			r.publish(SubjectWatchException, notify.StateError)
		}
	}
}
