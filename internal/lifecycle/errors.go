package lifecycle

import "errors"

var (
	ErrStartFailed   = errors.New("failed to start daemon")
	ErrStopFailed    = errors.New("failed to stop daemon")
	ErrRestartFailed = errors.New("failed to restart daemon")
	ErrStatusFailed  = errors.New("failed to get daemon status")
)

// OpError wraps a lower-layer failure of one orchestrator operation.
// errors.Is matches the operation's sentinel and, through Unwrap, the
// original cause.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return e.sentinel().Error() + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

func (e *OpError) Is(target error) bool { return target == e.sentinel() }

func (e *OpError) sentinel() error {
	switch e.Op {
	case OpStart:
		return ErrStartFailed
	case OpStop:
		return ErrStopFailed
	case OpRestart:
		return ErrRestartFailed
	default:
		return ErrStatusFailed
	}
}
