package invoke

import (
	"errors"
	"fmt"
	"strings"
)

// ErrToolNotFound is returned for names missing from the catalog.
var ErrToolNotFound = errors.New("tool not found")

// ValidationError means the arguments did not satisfy the tool's schema.
type ValidationError struct {
	Tool     string
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return fmt.Sprintf("invalid arguments for %s", e.Tool)
	}
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}

// ExecutionError means the tool's effect failed.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
