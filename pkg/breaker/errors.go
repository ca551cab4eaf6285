package breaker

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCircuitOpen matches every admission rejection.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrOperationTimeout matches calls that outlived the circuit timeout.
	ErrOperationTimeout = errors.New("operation timed out")

	// ErrCircuitNotFound is returned by operations on unknown circuit names.
	ErrCircuitNotFound = errors.New("circuit not found")

	// ErrInvalidConfig is wrapped by Config.Validate failures.
	ErrInvalidConfig = errors.New("invalid circuit config")
)

// RejectReason tells why a call was not admitted.
type RejectReason string

const (
	// RejectOpen means the circuit is open and its retry time is in the future.
	RejectOpen RejectReason = "open"
	// RejectProbeLimit means every half-open probe slot is taken.
	RejectProbeLimit RejectReason = "probe_limit"
	// RejectProbabilistic means the admission draw denied the call.
	RejectProbabilistic RejectReason = "probabilistic"
)

// CircuitOpenError is returned when a call is not admitted.
type CircuitOpenError struct {
	Name    string
	Phase   Phase
	Reason  RejectReason
	RetryAt time.Time
}

func (e *CircuitOpenError) Error() string {
	if e.Reason == RejectOpen && !e.RetryAt.IsZero() {
		return fmt.Sprintf("circuit %q rejected call (%s, phase %s, retry at %s)",
			e.Name, e.Reason, e.Phase, e.RetryAt.Format(time.RFC3339Nano))
	}

	return fmt.Sprintf("circuit %q rejected call (%s, phase %s)", e.Name, e.Reason, e.Phase)
}

func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// OperationTimeoutError is returned when the guarded operation did not
// complete within the circuit timeout.
type OperationTimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *OperationTimeoutError) Error() string {
	return fmt.Sprintf("circuit %q: operation exceeded %s", e.Name, e.Timeout)
}

func (e *OperationTimeoutError) Is(target error) bool {
	return target == ErrOperationTimeout
}
