// Package notify delivers job progress events to Slack, off the
// pipeline's critical path.
package notify

import (
	"github.com/deploybot/deploybot/pkg/job"
)

type State string

const (
	StatePending State = "pending"
	StateError   State = "error"
	StateSuccess State = "success"
)

// Event is one stage transition of a job. It is a value: once
// published, nothing else refers to it.
type Event struct {
	Subject  string
	State    State
	JobID    job.ID
	Resource string
	Repo     string
	Tag      string
	SHA      string
}

// NewEvent describes j at the moment of publishing. Repo is expected
// to be safe to show, i.e., without credentials.
func NewEvent(subject string, state State, j *job.Job, repo string) Event {
	return Event{
		Subject:  subject,
		State:    state,
		JobID:    j.ID,
		Resource: j.Locator,
		Repo:     repo,
		Tag:      j.Tag,
		SHA:      j.SHA,
	}
}
