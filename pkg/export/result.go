package export

import (
	"fmt"
	"time"
)

// Result represents the outcome of writing one replay
type Result struct {
	// Success indicates whether every insert succeeded
	Success bool

	// ID is the _id of the summary document
	ID any

	// Updates is the number of update documents inserted
	Updates int

	// Error contains the error if an insert failed
	Error error

	// Duration is how long the writes took
	Duration time.Duration
}

// String returns a human-readable string representation of the result
func (r *Result) String() string {
	if r.Success {
		return fmt.Sprintf("Stored %v with %d updates (took %v)", r.ID, r.Updates, r.Duration)
	}
	return fmt.Sprintf("Failed: %v (took %v)", r.Error, r.Duration)
}
