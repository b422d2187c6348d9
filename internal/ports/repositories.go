package ports

import (
    "context"

    "github.com/golang-sql/civil"

    "tripcrew/internal/domain"
)

// CalendarStore is the ground truth for contractor availability, keyed by
// (contractorID, role, date). Absent records read as available.
type CalendarStore interface {
    Get(ctx context.Context, contractorID string, role domain.Role, dates []civil.Date) (map[civil.Date]domain.Status, error)

    // SetStatus writes one date. A locked date is rejected with a
    // *domain.RejectionError.
    SetStatus(ctx context.Context, contractorID string, role domain.Role, date civil.Date, status domain.Status, tripRef string) error

    // BulkSet writes every date or none. Concurrent BulkSet calls for the same
    // contractor and role are serialized by the store.
    BulkSet(ctx context.Context, contractorID string, role domain.Role, dates []civil.Date, status domain.Status, tripRef string) error

    // Release is the administrative unlock path. It clears the given dates only
    // where they are locked by tripRef, returning the dates it cleared.
    Release(ctx context.Context, tripRef, contractorID string, role domain.Role, dates []civil.Date) ([]civil.Date, error)

    // LocksForTrip lists every day held by tripRef.
    LocksForTrip(ctx context.Context, tripRef string) ([]domain.CalendarDay, error)
}

// CandidatePoolProvider returns role-filtered contractor profiles. Profiles are
// owned by the reputation collaborator and never written here.
type CandidatePoolProvider interface {
    Candidates(ctx context.Context, role domain.Role) ([]domain.ContractorProfile, error)
}
