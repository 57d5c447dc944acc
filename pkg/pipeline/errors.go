package pipeline

import (
	"fmt"
	"net/http"

	deployerr "github.com/deploybot/deploybot/pkg/errors"
)

// Status codes recorded for a finished job.
const (
	CodeOK          = 0
	CodeBadInput    = http.StatusBadRequest
	CodeToolFailure = http.StatusInternalServerError
)

// StageError is the failure of one stage of a job, with the code the
// job ends with.
type StageError struct {
	Stage string
	Code  int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed (%d): %s", e.Stage, e.Code, e.Err)
}

func (e *StageError) Cause() error {
	return e.Err
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// CodeOf is the status code for a stage that failed with err: caller
// mistakes are CodeBadInput, anything else CodeToolFailure.
func CodeOf(err error) int {
	switch {
	case err == nil:
		return CodeOK
	case deployerr.IsUser(err):
		return CodeBadInput
	default:
		return CodeToolFailure
	}
}

// ExitCode is the status code a job ended with, given what its
// pipeline returned.
func ExitCode(err error) int {
	if err == nil {
		return CodeOK
	}
	if se, ok := err.(*StageError); ok {
		return se.Code
	}
	return CodeToolFailure
}
