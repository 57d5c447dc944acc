package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deploybot/deploybot/pkg/job"
)

var ErrTimeout = errors.New("timeout")

type statusAPI interface {
	DeployStatus(ctx context.Context, id job.ID) (job.Status, error)
}

// awaitJob polls for a job to have been completed, with exponential
// backoff. A failed job is returned as an error carrying its code.
func awaitJob(ctx context.Context, client statusAPI, id job.ID, timeout time.Duration) (job.Status, error) {
	var result job.Status
	err := backoff(100*time.Millisecond, 2, 50, timeout, func() (bool, error) {
		j, err := client.DeployStatus(ctx, id)
		if err != nil {
			return false, err
		}
		switch j.StatusString {
		case job.StatusFailed:
			return false, fmt.Errorf("job failed with code %d: %s", j.Code, j.Err)
		case job.StatusSucceeded:
			result = j
			return true, nil
		}
		return false, nil
	})
	return result, err
}

// backoff polls for f() to have been completed, with exponential backoff.
func backoff(initialDelay, factor, maxFactor, timeout time.Duration, f func() (bool, error)) error {
	maxDelay := initialDelay * maxFactor
	finish := time.Now().Add(timeout)
	for delay := initialDelay; time.Now().Before(finish); delay = min(delay*factor, maxDelay) {
		ok, err := f()
		if ok || err != nil {
			return err
		}
		// If we don't have time to try again, stop
		if time.Now().Add(delay).After(finish) {
			break
		}
		time.Sleep(delay)
	}
	return ErrTimeout
}

func min(t1, t2 time.Duration) time.Duration {
	if t1 < t2 {
		return t1
	}
	return t2
}
