package tracking

import (
	"errors"
	"fmt"

	"github.com/geonotify/geonotify/internal/subject"
)

// Evaluation errors.
var (
	// ErrInvalidInput is matched by every *InputError.
	ErrInvalidInput = errors.New("invalid evaluation input")

	// ErrStoreConflict means a concurrent evaluation updated the subject first.
	// Nothing was persisted or emitted; retry with fresh state.
	ErrStoreConflict = subject.ErrStoreConflict

	// ErrStaleSample means the sample is older than the subject's last known
	// location. Nothing was persisted or emitted.
	ErrStaleSample = errors.New("sample older than last known location")
)

// InputError reports a sample that cannot be evaluated.
type InputError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidInput) match.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}
