package utils

import "fmt"

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return fmt.Errorf("%s", msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// InvariantError marks a violated scheduler invariant (in this module,
// only sched.Scheduler.Join raises one, for a self-join or a second
// joiner). These are
// never recovered from locally: the caller panics with one instead of
// returning it, since the core's own invariants are assumed, not
// defended against once the boundary to the caller is crossed.
type InvariantError struct {
	Op     string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("scheduler invariant violated in %s: %s", e.Op, e.Reason)
}

// Invariant panics with an InvariantError. Named like an assertion so
// call sites read as a statement of what must hold, not a recoverable
// error path.
func Invariant(op, reason string) {
	panic(&InvariantError{Op: op, Reason: reason})
}
