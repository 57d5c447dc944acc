package errors

import (
	"encoding/json"
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// Representation of errors in deploybot. These are divided into a
// small number of categories, essentially distinguished by whose
// fault the error is; i.e., is this error:
//   - a problem with a tool or service we drive, so worth trying again?
//   - not going to work until the caller sends something different?
//   - a refusal, because the caller could not be authenticated or we
//     are busy?
type Error struct {
	Type Type
	// a message that can be printed out for the user
	Help string `json:"help"`
	// the underlying error that can be e.g., logged for developers to look at
	Err error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Type string

const (
	// The operation looked fine on paper, but something went wrong
	// running an external tool or talking to a service.
	Server Type = "server"
	// The thing you mentioned, whatever it is, just doesn't exist
	Missing Type = "missing"
	// The request was well-formed, but refers to something that
	// cannot be resolved (a ref, a manifest entry, a field).
	User Type = "user"
	// No trusted key vouches for the request.
	Unauthorized Type = "unauthorized"
	// The request was fine, but there is no capacity to take it now.
	Unavailable Type = "unavailable"
)

// TypeOf digs through wrapped errors for an *Error, and reports its
// type. Anything unrecognised is a Server error.
func TypeOf(err error) Type {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	if e, ok := pkgerrors.Cause(err).(*Error); ok {
		return e.Type
	}
	return Server
}

func IsMissing(err error) bool {
	return err != nil && TypeOf(err) == Missing
}

func IsUser(err error) bool {
	return err != nil && TypeOf(err) == User
}

func (e *Error) MarshalJSON() ([]byte, error) {
	var errMsg string
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	jsonable := &struct {
		Type string `json:"type"`
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{
		Type: string(e.Type),
		Help: e.Help,
		Err:  errMsg,
	}
	return json.Marshal(jsonable)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	jsonable := &struct {
		Type string `json:"type"`
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{}
	if err := json.Unmarshal(data, &jsonable); err != nil {
		return err
	}
	e.Type = Type(jsonable.Type)
	e.Help = jsonable.Help
	if jsonable.Err != "" {
		e.Err = errors.New(jsonable.Err)
	}
	return nil
}

func CoverAllError(err error) *Error {
	return &Error{
		Type: Server,
		Err:  err,
		Help: `Error: ` + err.Error() + `

We don't have a specific help message for the error above. Check the
deploybot logs for the job id in the response.
`,
	}
}
