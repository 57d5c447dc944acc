package job

import (
	"errors"

	"github.com/google/uuid"
)

type ID string

// NewID returns a fresh, time-ordered job identifier. It is safe to
// use as a directory name and as a docker tag.
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the random source does
		return ID(uuid.NewString())
	}
	return ID(id.String())
}

func (id ID) String() string {
	return string(id)
}

// Job is one deployment attempt. It is created at admission, then
// owned by the single goroutine running its pipeline; nothing else
// writes to it.
type Job struct {
	ID      ID
	Repo    string
	Tag     string
	Locator string

	// SHA is the resolved commit, set once by the source stage.
	SHA string
	// ImageTag is <image_name>:<id>, set by the build stage.
	ImageTag string
}

type StatusString string

const (
	StatusQueued    StatusString = "queued"
	StatusRunning   StatusString = "running"
	StatusFailed    StatusString = "failed"
	StatusSucceeded StatusString = "succeeded"
)

// Status holds the possible states of a job; either,
//  1. queued or otherwise pending
//  2. running
//  3. succeeded, with the resolved commit and image
//  4. failed, with the code of the stage that failed
type Status struct {
	StatusString StatusString `json:"status"`
	Code         int          `json:"code"`
	Err          string       `json:"error,omitempty"`
	SHA          string       `json:"sha,omitempty"`
	ImageTag     string       `json:"image,omitempty"`
}

func (s Status) Error() string {
	return s.Err
}

// ErrQueueFull is returned by TryEnqueue when there is no room for
// another job.
var ErrQueueFull = errors.New("deploy queue is full")

// Queue is a bounded queue of jobs. Enqueuing never blocks: it either
// succeeds or reports that the queue is full. Dequeuing is done by
// receiving from Ready.
type Queue struct {
	ready chan *Job
}

func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		ready: make(chan *Job, capacity),
	}
}

// TryEnqueue puts a job onto the queue, or returns ErrQueueFull
// without waiting.
func (q *Queue) TryEnqueue(j *Job) error {
	select {
	case q.ready <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// Ready returns a channel that can be used to dequeue jobs.
func (q *Queue) Ready() <-chan *Job {
	return q.ready
}

// This is not guaranteed to be up-to-date; a job may be dequeued
// right after the length is read.
func (q *Queue) Len() int {
	return len(q.ready)
}
