// Package watch polls rollout checks until they report success or
// run out of time.
package watch

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/deploybot/deploybot/pkg/job"
	"github.com/deploybot/deploybot/pkg/manifest"
)

// Attempt is one run of a check, and the decision made after it.
type Attempt struct {
	Cmd      string
	Number   int
	Elapsed  time.Duration
	Result   Result
	Decision Decision
	Err      error
}

// Outcome is how polling a spec ended. Decision is never Pending.
type Outcome struct {
	Decision Decision
	Attempts int
	Err      error
}

type Stage struct {
	checker Checker
	clock   Clock
	logger  log.Logger
}

func NewStage(checker Checker, clock Clock, logger log.Logger) *Stage {
	return &Stage{checker: checker, clock: clock, logger: logger}
}

// Specs resolves the job's rollout checks. A resource with no watches
// key is an error.
func (s *Stage) Specs(dir string, j *job.Job) ([]manifest.WatchSpec, error) {
	res, err := manifest.ResolveIn(dir, j.Locator)
	if err != nil {
		return nil, err
	}
	return res.WatchSpecs()
}

// MinAttemptTimeout bounds a check attempt made when none of the
// wait budget is left, e.g., the single attempt of a zero wait.
const MinAttemptTimeout = 10 * time.Second

func attemptTimeout(remaining time.Duration) time.Duration {
	if remaining <= 0 {
		return MinAttemptTimeout
	}
	return remaining
}

// Poll runs spec's command until the policy stops it, calling observe
// after every attempt. Elapsed time counts the intervals waited, so a
// slow command does not use up the budget; but each attempt is
// killed once it has run for what is left of the wait, and then
// polling ends with Exceeded. Cancelling ctx ends polling with
// Failure.
func (s *Stage) Poll(ctx context.Context, dir string, spec manifest.WatchSpec, observe func(Attempt)) Outcome {
	policy := Policy{Interval: spec.Sleep, Deadline: spec.Wait}
	logger := log.With(s.logger, "cmd", spec.Cmd)

	var elapsed time.Duration
	for n := 1; ; n++ {
		begin := s.clock.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout(spec.Wait-elapsed))
		result, err := s.checker.Check(attemptCtx, dir, spec.Cmd)
		timedOut := attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
		cancel()
		decision := policy.Next(elapsed, result)
		if timedOut && decision == Pending {
			// the check itself ran out the budget
			decision = Exceeded
		}
		logger.Log("event", "watch_attempt", "attempt", n, "elapsed", elapsed, "result", result, "decision", decision, "took", s.clock.Now().Sub(begin), "err", err)

		if observe != nil {
			observe(Attempt{Cmd: spec.Cmd, Number: n, Elapsed: elapsed, Result: result, Decision: decision, Err: err})
		}
		if decision != Pending {
			return Outcome{Decision: decision, Attempts: n, Err: err}
		}

		select {
		case <-s.clock.After(policy.Interval):
			elapsed += policy.Interval
		case <-ctx.Done():
			return Outcome{Decision: Failure, Attempts: n, Err: ctx.Err()}
		}
	}
}
