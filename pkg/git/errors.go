package git

import (
	deployerr "github.com/deploybot/deploybot/pkg/errors"
)

func CloningError(url string, actual error) error {
	return &deployerr.Error{
		Type: deployerr.User,
		Err:  actual,
		Help: `Could not clone the git repository

There was a problem cloning the repository given in the deploy request,

    ` + url + `

This may be because the deploy key has not been added to it, or
because the repository has been moved, deleted, or never existed.

Please check that there is a repository at the address above, and that
it accepts the deploy key whose fingerprint is given by

    deployctl identity

`,
	}
}

func UnknownRevisionError(spec string, actual error) error {
	return &deployerr.Error{
		Type: deployerr.User,
		Err:  actual,
		Help: `Could not resolve the tag given in the deploy request

    ` + spec + `

The tag must be a single ref (a tag, branch or commit), or a range of
the form A..B or A...B, in which case A is deployed. Check that each ref
exists in the repository.
`,
	}
}

func CheckoutError(rev string, actual error) error {
	return &deployerr.Error{
		Type: deployerr.User,
		Err:  actual,
		Help: `Could not check out commit ` + rev + `

The commit was resolved, but creating the deploy branch at it failed.
`,
	}
}
