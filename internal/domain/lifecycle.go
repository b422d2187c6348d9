package domain

import (
    "errors"
    "fmt"
)

// Transition is the calendar day state machine. Every store adapter runs it
// against the current status before writing.
//
//  available   -> unavailable | locked
//  unavailable -> available   | locked
//  locked      -> (nothing through the public API)
//
// Rewriting the current status of an available or unavailable day is accepted
// as a no-op.
func Transition(from, to Status, tripRef string) error {
    if !to.Valid() {
        return fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, to)
    }
    if from == StatusLocked {
        return ErrDayLocked
    }
    switch to {
    case StatusLocked:
        if tripRef == "" {
            return fmt.Errorf("%w: locking requires a trip ref", ErrInvalidRequest)
        }
    default:
        if tripRef != "" {
            return fmt.Errorf("%w: trip ref only applies to locked days", ErrInvalidRequest)
        }
    }
    return nil
}

// Reason is the short machine-readable reason reported for a rejected date.
func Reason(err error) string {
    switch {
    case err == nil:
        return ""
    case errors.Is(err, ErrDayLocked):
        return "locked"
    case errors.Is(err, ErrInvalidRequest):
        return "invalid"
    case errors.Is(err, ErrInvariantViolation):
        return "invariant"
    }
    return "error"
}
