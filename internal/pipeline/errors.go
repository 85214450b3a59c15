package pipeline

import (
	"errors"
	"fmt"
)

// ErrDataIntegrity marks failures that retrying cannot fix: a missing item
// record, missing upstream context, or scoring output that does not parse.
// They fail the one item and must never requeue the message.
var ErrDataIntegrity = errors.New("data integrity failure")

// Permanent wraps err so consumers drop the message instead of requeueing
func Permanent(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrDataIntegrity, fmt.Sprintf(format, args...))
}

// IsPermanent reports whether err should fail the item without redelivery
func IsPermanent(err error) bool {
	return errors.Is(err, ErrDataIntegrity)
}
