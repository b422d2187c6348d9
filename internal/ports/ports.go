package ports

import (
    "context"

    "github.com/golang-sql/civil"

    "tripcrew/internal/domain"
)

// Assigner picks and locks one contractor for a trip.
type Assigner interface {
    RequestAssignment(ctx context.Context, role domain.Role, tripID string, dates []civil.Date, pool CandidatePoolProvider) (domain.AssignmentResult, error)
}

// Calendars is the contractor-facing calendar surface plus the
// administrative release path.
type Calendars interface {
    Days(ctx context.Context, contractorID string, role domain.Role, dates []civil.Date) (map[civil.Date]domain.Status, error)
    MarkUnavailable(ctx context.Context, contractorID string, role domain.Role, dates []civil.Date) ([]domain.DayResult, error)
    MarkAvailable(ctx context.Context, contractorID string, role domain.Role, dates []civil.Date) ([]domain.DayResult, error)
    ReleaseTrip(ctx context.Context, tripID string) ([]domain.CalendarDay, error)
}

// AssignmentPublisher receives the locked day set after a successful
// assignment.
type AssignmentPublisher interface {
    PublishLocked(ctx context.Context, ev domain.LockEvent) error
}

// Metrics records assignment and calendar outcomes.
type Metrics interface {
    Assignment(role domain.Role, outcome string)
    LockConflict(role domain.Role)
    DayRejected(op string)
}
