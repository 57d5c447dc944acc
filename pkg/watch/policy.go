package watch

import "time"

// Result classifies a single run of a check command.
type Result int

const (
	// The check ran but did not report a completed rollout.
	ResultPending Result = iota
	// The check reported a completed rollout.
	ResultSuccess
	// The check could not be run.
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultError:
		return "error"
	default:
		return "pending"
	}
}

// Decision is what to do after an attempt.
type Decision int

const (
	// Wait an interval and try again.
	Pending Decision = iota
	Success
	Failure
	// The wait budget does not allow another attempt.
	Exceeded
)

func (d Decision) String() string {
	switch d {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Exceeded:
		return "exceeded"
	default:
		return "pending"
	}
}

// Policy allows attempts every Interval, for as long as the next
// attempt would start no later than Deadline.
type Policy struct {
	Interval time.Duration
	Deadline time.Duration
}

// Next decides, given an attempt made at elapsed with result r,
// whether to poll again. With Interval 20s and Deadline 60s, attempts
// are made at 0s, 20s, 40s and 60s. A non-positive Interval allows a
// single attempt.
func (p Policy) Next(elapsed time.Duration, r Result) Decision {
	switch r {
	case ResultSuccess:
		return Success
	case ResultError:
		return Failure
	}
	if p.Interval <= 0 || elapsed+p.Interval > p.Deadline {
		return Exceeded
	}
	return Pending
}
