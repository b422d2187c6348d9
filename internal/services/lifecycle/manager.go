// Package lifecycle owns calendar day transitions: contractor marks, the
// assignment lock, and the administrative release used on trip cancellation.
package lifecycle

import (
    "context"
    "errors"
    "fmt"
    "log"
    "strings"

    "github.com/golang-sql/civil"

    "tripcrew/internal/domain"
    "tripcrew/internal/metrics"
    "tripcrew/internal/ports"
)

var _ ports.Calendars = (*Manager)(nil)

type Manager struct {
    calendar ports.CalendarStore
    metrics  ports.Metrics
    log      *log.Logger
}

// New wires a manager. Nil metrics or logger fall back to no-op metrics and
// the standard logger.
func New(calendar ports.CalendarStore, m ports.Metrics, logger *log.Logger) *Manager {
    if m == nil {
        m = metrics.Nop{}
    }
    if logger == nil {
        logger = log.Default()
    }
    return &Manager{calendar: calendar, metrics: m, log: logger}
}

func validate(contractorID string, role domain.Role, dates []civil.Date) (string, error) {
    id, err := domain.NormalizeContractorID(contractorID)
    if err != nil {
        return "", err
    }
    if !role.Valid() {
        return "", fmt.Errorf("%w: unknown role %q", domain.ErrInvalidRequest, role)
    }
    if err := domain.ValidateDates(dates); err != nil {
        return "", err
    }
    return id, nil
}

// Days reports the status of each date; dates without a record are available.
func (m *Manager) Days(ctx context.Context, contractorID string, role domain.Role, dates []civil.Date) (map[civil.Date]domain.Status, error) {
    id, err := validate(contractorID, role, dates)
    if err != nil {
        return nil, err
    }
    out, err := m.calendar.Get(ctx, id, role, dates)
    if errors.Is(err, domain.ErrInvariantViolation) {
        m.log.Printf("[invariant] calendar read %s/%s: %v", id, role, err)
    }
    return out, err
}

func (m *Manager) MarkUnavailable(ctx context.Context, contractorID string, role domain.Role, dates []civil.Date) ([]domain.DayResult, error) {
    return m.mark(ctx, "mark_unavailable", contractorID, role, dates, domain.StatusUnavailable)
}

func (m *Manager) MarkAvailable(ctx context.Context, contractorID string, role domain.Role, dates []civil.Date) ([]domain.DayResult, error) {
    return m.mark(ctx, "mark_available", contractorID, role, dates, domain.StatusAvailable)
}

// mark writes each date independently. A locked date is reported in its
// result and does not stop the others; any other store failure aborts.
func (m *Manager) mark(ctx context.Context, op, contractorID string, role domain.Role, dates []civil.Date, to domain.Status) ([]domain.DayResult, error) {
    id, err := validate(contractorID, role, dates)
    if err != nil {
        return nil, err
    }
    results := make([]domain.DayResult, 0, len(dates))
    for _, d := range domain.SortDates(dates) {
        err := m.calendar.SetStatus(ctx, id, role, d, to, "")
        var rej *domain.RejectionError
        switch {
        case err == nil:
            results = append(results, domain.DayResult{Date: d, OK: true, Status: to})
        case errors.As(err, &rej):
            m.metrics.DayRejected(op)
            results = append(results, domain.DayResult{Date: d, Status: domain.StatusLocked, Reason: domain.Reason(err)})
        default:
            if errors.Is(err, domain.ErrInvariantViolation) {
                m.log.Printf("[invariant] %s %s/%s %s: %v", op, id, role, d, err)
            }
            return results, fmt.Errorf("%s %s: %w", op, d, err)
        }
    }
    return results, nil
}

// Lock moves every date to locked for tripID, or none of them. Only the
// assignment engine calls this.
func (m *Manager) Lock(ctx context.Context, contractorID string, role domain.Role, dates []civil.Date, tripID string) error {
    id, err := validate(contractorID, role, dates)
    if err != nil {
        return err
    }
    if strings.TrimSpace(tripID) == "" {
        return fmt.Errorf("%w: trip id is required", domain.ErrInvalidRequest)
    }
    return m.calendar.BulkSet(ctx, id, role, dates, domain.StatusLocked, tripID)
}

// ReleaseTrip is the administrative unlock: every day held by tripID returns
// to available. It sits outside the contractor-facing state machine and is
// only exposed behind the admin route.
func (m *Manager) ReleaseTrip(ctx context.Context, tripID string) ([]domain.CalendarDay, error) {
    tripID = strings.TrimSpace(tripID)
    if tripID == "" {
        return nil, fmt.Errorf("%w: trip id is required", domain.ErrInvalidRequest)
    }
    held, err := m.calendar.LocksForTrip(ctx, tripID)
    if err != nil {
        return nil, err
    }

    type owner struct {
        id   string
        role domain.Role
    }
    var order []owner
    byOwner := map[owner][]civil.Date{}
    for _, day := range held {
        k := owner{day.ContractorID, day.Role}
        if _, ok := byOwner[k]; !ok {
            order = append(order, k)
        }
        byOwner[k] = append(byOwner[k], day.Date)
    }

    var released []domain.CalendarDay
    for _, k := range order {
        dates, err := m.calendar.Release(ctx, tripID, k.id, k.role, byOwner[k])
        if err != nil {
            return released, fmt.Errorf("release %s/%s: %w", k.id, k.role, err)
        }
        for _, d := range dates {
            released = append(released, domain.CalendarDay{ContractorID: k.id, Role: k.role, Date: d, Status: domain.StatusAvailable})
        }
    }
    m.log.Printf("[calendar] released %d days held by trip %s", len(released), tripID)
    return released, nil
}
