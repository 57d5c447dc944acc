package httperror

import (
	"fmt"
	"net/http"
)

// When an API call fails, we may want to distinguish among the causes
// by status code. This type is the error returned for a non-"HTTP 20x"
// response that doesn't carry one of our own errors.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (err *APIError) Error() string {
	if err.Body == "" {
		return err.Status
	}
	return fmt.Sprintf("%s (%s)", err.Status, err.Body)
}

// Was the request refused because the daemon is busy?
func (err *APIError) IsBusy() bool {
	return err.StatusCode == http.StatusTooManyRequests
}

// Does this error mean the daemon is unavailable, or unhealthy?
func (err *APIError) IsUnavailable() bool {
	switch err.StatusCode {
	case 502, 503, 504:
		return true
	}
	return false
}

func (err *APIError) IsUnauthorized() bool {
	return err.StatusCode == http.StatusUnauthorized
}

// Is this resource missing? For a deploy status, this means the job
// is unknown or forgotten.
func (err *APIError) IsMissing() bool {
	return err.StatusCode == http.StatusNotFound
}
