package domain

import (
    "fmt"
    "strings"

    "github.com/golang-sql/civil"
)

var (
    // ErrInvalidRequest marks caller errors: malformed dates, unknown role,
    // missing ids. Never retried.
    ErrInvalidRequest = errString("invalid request")

    // ErrNoAvailable is the normal "nobody can take this trip" outcome.
    ErrNoAvailable = errString("no available contractor")

    // ErrAllIneligible is returned when every candidate was filtered out as
    // banned or inactive. It matches ErrNoAvailable under errors.Is.
    ErrAllIneligible error = fmt.Errorf("%w: every candidate is banned or inactive", ErrNoAvailable)

    // ErrDayLocked rejects any ordinary transition out of the locked state.
    ErrDayLocked = errString("day is locked")

    // ErrInvariantViolation indicates store corruption, not contention.
    ErrInvariantViolation = errString("calendar invariant violation")
)

type errString string

func (e errString) Error() string { return string(e) }

// Rejection describes why one date of a write was refused.
type Rejection struct {
    Date    civil.Date
    Current Status
    Reason  string
}

// RejectionError is returned by store writes that refused one or more dates.
// For bulk writes nothing was applied.
type RejectionError struct {
    ContractorID string
    Role         Role
    Rejections   []Rejection
}

func (e *RejectionError) Error() string {
    parts := make([]string, 0, len(e.Rejections))
    for _, r := range e.Rejections {
        parts = append(parts, fmt.Sprintf("%s (%s): %s", r.Date, r.Current, r.Reason))
    }
    return fmt.Sprintf("calendar write rejected for %s/%s: %s", e.ContractorID, e.Role, strings.Join(parts, "; "))
}

func (e *RejectionError) Unwrap() error { return ErrDayLocked }
