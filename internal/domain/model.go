package domain

import (
    "fmt"
    "strings"

    "github.com/golang-sql/civil"
)

// Core domain models for contractor calendars and trip assignment. HTTP types
// live in internal/adapters/http; keep these free of wire concerns.

// Role scopes calendars and eligibility. A person may hold independent
// driver and guide calendars.
type Role string

const (
    RoleDriver Role = "driver"
    RoleGuide  Role = "guide"
)

func (r Role) Valid() bool {
    return r == RoleDriver || r == RoleGuide
}

// ParseRole accepts the lower-case role name.
func ParseRole(s string) (Role, error) {
    r := Role(strings.ToLower(strings.TrimSpace(s)))
    if !r.Valid() {
        return "", fmt.Errorf("%w: unknown role %q", ErrInvalidRequest, s)
    }
    return r, nil
}

// Status of a single calendar day. A day with no stored record is available.
type Status string

const (
    StatusAvailable   Status = "available"
    StatusUnavailable Status = "unavailable"
    StatusLocked      Status = "locked"
)

func (s Status) Valid() bool {
    switch s {
    case StatusAvailable, StatusUnavailable, StatusLocked:
        return true
    }
    return false
}

type CalendarDay struct {
    ContractorID string
    Role         Role
    Date         civil.Date
    Status       Status
    TripRef      string // set iff Status == StatusLocked
}

// Check reports an ErrInvariantViolation when the stored record breaks the
// locked/tripRef pairing.
func (d CalendarDay) Check() error {
    if !d.Status.Valid() {
        return fmt.Errorf("%w: %s/%s %s has status %q", ErrInvariantViolation, d.ContractorID, d.Role, d.Date, d.Status)
    }
    if (d.Status == StatusLocked) != (d.TripRef != "") {
        return fmt.Errorf("%w: %s/%s %s is %s with trip ref %q", ErrInvariantViolation, d.ContractorID, d.Role, d.Date, d.Status, d.TripRef)
    }
    return nil
}

// ContractorProfile is owned by the reputation collaborator; read-only here.
type ContractorProfile struct {
    Email           string
    Role            Role
    Rating          float64 // 0-5
    Active          bool
    Banned          bool
    IsNewContractor bool
    ExperienceRung  int // 1-10, lower is more experienced
    PenaltyPoints   int // 0-100
}

// Eligible reports whether the profile may be considered at all, before any
// calendar lookups.
func (p ContractorProfile) Eligible() bool {
    return p.Active && !p.Banned
}

type AssignmentRequest struct {
    Role   Role
    Dates  []civil.Date
    TripID string
}

func (r AssignmentRequest) Validate() error {
    if !r.Role.Valid() {
        return fmt.Errorf("%w: unknown role %q", ErrInvalidRequest, r.Role)
    }
    if strings.TrimSpace(r.TripID) == "" {
        return fmt.Errorf("%w: trip id is required", ErrInvalidRequest)
    }
    return ValidateDates(r.Dates)
}

type AssignmentResult struct {
    WinnerEmail string
    Score       float64
    LockedDates []civil.Date
}

// LockEvent is emitted after a successful assignment so the trip-management
// collaborator can persist the trip-to-contractor link.
type LockEvent struct {
    TripID       string
    ContractorID string
    Role         Role
    Dates        []civil.Date
}

// DayResult is the per-date outcome of a mark operation.
type DayResult struct {
    Date   civil.Date
    OK     bool
    Status Status // status after the operation
    Reason string // set when !OK
}
