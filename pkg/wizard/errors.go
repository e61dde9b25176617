package wizard

import (
	"errors"
	"fmt"
)

var (
	// ErrIntegrity matches every *IntegrityError.
	ErrIntegrity = errors.New("wizard: integrity violation")
	// ErrFinalizing reports a mutation attempted while finalize is running.
	ErrFinalizing = errors.New("wizard: finalize in progress")
	// ErrClosed reports an operation on a closed controller.
	ErrClosed = errors.New("wizard: controller closed")
)

// IntegrityError reports an operation invoked in a state the caller should
// never reach, such as finalizing away from the last step. It is a
// programming error and values are never clamped to recover from it.
type IntegrityError struct {
	Op     string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("wizard: %s: integrity violation: %s", e.Op, e.Detail)
}

// Is lets errors.Is(err, ErrIntegrity) match any IntegrityError.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

func integrity(op, format string, args ...any) error {
	return &IntegrityError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
