package http

import (
	"errors"

	deployerr "github.com/deploybot/deploybot/pkg/errors"
)

var ErrorBadRequest = &deployerr.Error{
	Type: deployerr.User,
	Help: `The deploy request could not be understood

The request body must be a JSON object, no larger than 4096 bytes, with
the string fields repo, tag, path, plain_msg and crypto_sign, none of
them empty. deployctl deploy will construct one for you.
`,
	Err: errors.New("malformed deploy request"),
}

func MakeAPINotFound(path string) *deployerr.Error {
	return &deployerr.Error{
		Type: deployerr.Missing,
		Help: `The API endpoint requested is not supported by this server.

Check the address, and that your client is up to date. The path asked
for was

    ` + path + `
`,
		Err: errors.New("API endpoint not found"),
	}
}

func MakeJobNotFound(id string) *deployerr.Error {
	return &deployerr.Error{
		Type: deployerr.Missing,
		Help: `No status is known for job ` + id + `

Only the most recent jobs are remembered, and nothing is remembered
across a restart of the daemon.
`,
		Err: errors.New("unknown job " + id),
	}
}
