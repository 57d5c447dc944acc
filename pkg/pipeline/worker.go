package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	deployerr "github.com/deploybot/deploybot/pkg/errors"
	"github.com/deploybot/deploybot/pkg/job"
	"github.com/deploybot/deploybot/pkg/metrics"
)

var ErrBusy = &deployerr.Error{
	Type: deployerr.Unavailable,
	Err:  job.ErrQueueFull,
	Help: `A deploy is already running, and another is waiting

Only one deploy runs at a time, and only one more may wait for it.
Try again once the current deploy has finished.
`,
}

// Worker runs queued jobs one at a time, each to completion.
type Worker struct {
	queue        *job.Queue
	orchestrator *Orchestrator
	workspace    Workspace
	statuses     *job.StatusCache
	logger       log.Logger
	running      int32
}

func NewWorker(queue *job.Queue, orchestrator *Orchestrator, workspace Workspace, statuses *job.StatusCache, logger log.Logger) *Worker {
	return &Worker{
		queue:        queue,
		orchestrator: orchestrator,
		workspace:    workspace,
		statuses:     statuses,
		logger:       logger,
	}
}

// Enqueue admits j if there is room, without waiting; otherwise it
// returns ErrBusy.
func (w *Worker) Enqueue(j *job.Job) error {
	// Recorded before the send, so the worker's "running" always
	// lands after it.
	w.statuses.SetStatus(j.ID, job.Status{StatusString: job.StatusQueued})
	if err := w.queue.TryEnqueue(j); err != nil {
		w.statuses.Remove(j.ID)
		return ErrBusy
	}
	queueLength.Set(float64(w.queue.Len()))
	return nil
}

// Status is the last known status of a job, if it is still
// remembered.
func (w *Worker) Status(id job.ID) (job.Status, bool) {
	return w.statuses.Status(id)
}

// Health is an error unless the loop is running.
func (w *Worker) Health() error {
	if atomic.LoadInt32(&w.running) == 0 {
		return fmt.Errorf("deploy worker is not running")
	}
	return nil
}

// Loop runs jobs until ctx is done. The job in progress when that
// happens sees the cancellation through its stages.
func (w *Worker) Loop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.StoreInt32(&w.running, 1)
	defer atomic.StoreInt32(&w.running, 0)

	w.logger.Log("event", "deploy_loop_starting")
	for {
		select {
		case <-ctx.Done():
			w.logger.Log("event", "deploy_loop_stopping", "queued", w.queue.Len())
			return
		case j := <-w.queue.Ready():
			queueLength.Set(float64(w.queue.Len()))
			w.runJob(ctx, j)
		}
	}
}

func (w *Worker) runJob(ctx context.Context, j *job.Job) {
	logger := log.With(w.logger, "jobID", j.ID)
	w.statuses.SetStatus(j.ID, job.Status{StatusString: job.StatusRunning})

	begin := time.Now()
	err := w.workspace.Create(j.ID)
	if err == nil {
		err = w.orchestrator.Run(ctx, w.workspace.Dir(j.ID), j)
	} else {
		err = &StageError{Stage: "workspace", Code: CodeToolFailure, Err: err}
	}
	if rmErr := w.workspace.Remove(j.ID); rmErr != nil {
		logger.Log("event", "workspace_remove_exception", "err", rmErr)
	}

	code := ExitCode(err)
	jobDuration.With(metrics.LabelSuccess, fmt.Sprint(err == nil)).Observe(time.Since(begin).Seconds())
	status := job.Status{StatusString: job.StatusSucceeded, Code: code, SHA: j.SHA, ImageTag: j.ImageTag}
	if err != nil {
		status.StatusString = job.StatusFailed
		status.Err = errors.Cause(err).Error()
	}
	w.statuses.SetStatus(j.ID, status)
	logger.Log("event", "deploy_finished", "code", code, "took", time.Since(begin))
}
