package main

import (
	"fmt"
	"strings"
)

// usageError means the command line was wrong, rather than the
// request; main prints the usage after it.
type usageError struct {
	error
}

func newUsageError(format string, args ...interface{}) usageError {
	return usageError{error: fmt.Errorf(format, args...)}
}

// checkExactlyOne complains unless just one of the named flags was
// given.
func checkExactlyOne(flags []string, supplied ...bool) error {
	n := 0
	for _, s := range supplied {
		if s {
			n++
		}
	}
	switch {
	case n == 0:
		return newUsageError("one of %s is needed", strings.Join(flags, " or "))
	case n > 1:
		return newUsageError("%s cannot be used together", strings.Join(flags, " and "))
	}
	return nil
}

var errorWantedNoArgs = newUsageError("this command takes no arguments, only flags")
