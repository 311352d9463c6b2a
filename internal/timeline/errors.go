package timeline

import (
	"errors"
	"fmt"
)

// Interval state errors. Each is a configuration error: the caller drove
// the timeline into a state the interval contract does not allow.
var (
	ErrNoOpenInterval   = errors.New("interval has no instance to close")
	ErrCloseBeforeOpen  = errors.New("close tact must be greater than open tact")
	ErrAlreadyClosed    = errors.New("interval instance already closed at a different tact")
	ErrOpenBeforeClosed = errors.New("interval cannot reopen before its previous instance closed")
)

// SequenceError reports a tact introduced out of sequence.
type SequenceError struct {
	Tact int
	// Last is the highest recorded tact, or -1 for an empty timeline.
	Last int
}

// Error implements the error interface.
func (e *SequenceError) Error() string {
	if e.Last < 0 {
		return fmt.Sprintf("tact %d out of sequence: first tact must be 0", e.Tact)
	}
	return fmt.Sprintf("tact %d out of sequence: next tact must be %d", e.Tact, e.Last+1)
}
