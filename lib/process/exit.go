// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"
)

// ExitError carries a specific exit code out of run(). The message, if
// any, has already been printed.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Fatal writes "error: err" to stderr and exits with code 1, or with
// the code of an *ExitError without printing anything.
func Fatal(err error) {
	var exitError *ExitError
	if errors.As(err, &exitError) {
		os.Exit(exitError.Code)
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
