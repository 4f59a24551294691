package rollout

import "errors"

// Error implements errors unique to a rollout buffer
type Error struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrFull is returned when pushing to a buffer which holds a
	// complete window that has not yet been read.
	ErrFull = errors.New("buffer full")

	// ErrNotFull is returned when reading a buffer which has not
	// received exactly one window of pushes since the last read.
	ErrNotFull = errors.New("buffer does not hold a complete window")
)

// IsFull returns whether or not an error reports that a rollout buffer
// is full
func IsFull(err error) bool {
	return errors.Is(err, ErrFull)
}

// IsNotFull returns whether or not an error reports that a rollout
// buffer was read before a complete window was pushed
func IsNotFull(err error) bool {
	return errors.Is(err, ErrNotFull)
}
