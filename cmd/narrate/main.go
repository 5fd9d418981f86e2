package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	err := NewRootCmd().Execute()
	if err == nil {
		return
	}

	_, _ = fmt.Fprintln(os.Stderr, err)

	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	os.Exit(1)
}

// exitError carries a process exit status other than the default 1.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }
