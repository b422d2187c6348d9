// Package memory holds in-process adapters used for local runs and tests.
package memory

import (
    "context"
    "sort"
    "strings"
    "sync"

    "github.com/golang-sql/civil"
    "github.com/puzpuzpuz/xsync/v4"

    "tripcrew/internal/domain"
    "tripcrew/internal/ports"
)

var _ ports.CalendarStore = (*Calendar)(nil)

type ownerKey struct {
    contractorID string
    role         domain.Role
}

// calendar holds one contractor's days for one role. The mutex is the
// serialization point for batches and reads alike.
type calendar struct {
    mu   sync.Mutex
    days map[civil.Date]domain.CalendarDay
}

// Calendar is a CalendarStore kept in memory.
type Calendar struct {
    owners *xsync.Map[ownerKey, *calendar]
}

func NewCalendar() *Calendar {
    return &Calendar{owners: xsync.NewMap[ownerKey, *calendar]()}
}

func (s *Calendar) calendar(contractorID string, role domain.Role) *calendar {
    k := ownerKey{contractorID: contractorID, role: role}
    if c, ok := s.owners.Load(k); ok {
        return c
    }
    c, _ := s.owners.LoadOrStore(k, &calendar{days: make(map[civil.Date]domain.CalendarDay)})
    return c
}

func (s *Calendar) Get(ctx context.Context, contractorID string, role domain.Role, dates []civil.Date) (map[civil.Date]domain.Status, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    out := make(map[civil.Date]domain.Status, len(dates))
    c, ok := s.owners.Load(ownerKey{contractorID: contractorID, role: role})
    if !ok {
        for _, d := range dates {
            out[d] = domain.StatusAvailable
        }
        return out, nil
    }
    c.mu.Lock()
    defer c.mu.Unlock()
    for _, d := range dates {
        rec, ok := c.days[d]
        if !ok {
            out[d] = domain.StatusAvailable
            continue
        }
        if err := rec.Check(); err != nil { return nil, err }
        out[d] = rec.Status
    }
    return out, nil
}

func (s *Calendar) SetStatus(ctx context.Context, contractorID string, role domain.Role, date civil.Date, status domain.Status, tripRef string) error {
    return s.BulkSet(ctx, contractorID, role, []civil.Date{date}, status, tripRef)
}

func (s *Calendar) BulkSet(ctx context.Context, contractorID string, role domain.Role, dates []civil.Date, status domain.Status, tripRef string) error {
    if err := ctx.Err(); err != nil { return err }
    if err := domain.ValidateDates(dates); err != nil { return err }
    c := s.calendar(contractorID, role)
    c.mu.Lock()
    defer c.mu.Unlock()

    // check every date before touching any
    var rejected []domain.Rejection
    for _, d := range dates {
        cur := domain.StatusAvailable
        if rec, ok := c.days[d]; ok {
            if err := rec.Check(); err != nil { return err }
            cur = rec.Status
        }
        if err := domain.Transition(cur, status, tripRef); err != nil {
            if cur != domain.StatusLocked { return err }
            rejected = append(rejected, domain.Rejection{Date: d, Current: cur, Reason: domain.Reason(err)})
        }
    }
    if len(rejected) > 0 {
        return &domain.RejectionError{ContractorID: contractorID, Role: role, Rejections: rejected}
    }

    for _, d := range dates {
        if status == domain.StatusAvailable {
            delete(c.days, d)
            continue
        }
        c.days[d] = domain.CalendarDay{ContractorID: contractorID, Role: role, Date: d, Status: status, TripRef: tripRef}
    }
    return nil
}

func (s *Calendar) Release(ctx context.Context, tripRef, contractorID string, role domain.Role, dates []civil.Date) ([]civil.Date, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    if strings.TrimSpace(tripRef) == "" {
        return nil, domain.ErrInvalidRequest
    }
    c, ok := s.owners.Load(ownerKey{contractorID: contractorID, role: role})
    if !ok {
        return nil, nil
    }
    c.mu.Lock()
    defer c.mu.Unlock()
    var released []civil.Date
    for _, d := range dates {
        rec, ok := c.days[d]
        if !ok || rec.Status != domain.StatusLocked || rec.TripRef != tripRef {
            continue
        }
        delete(c.days, d)
        released = append(released, d)
    }
    return domain.SortDates(released), nil
}

func (s *Calendar) LocksForTrip(ctx context.Context, tripRef string) ([]domain.CalendarDay, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    var out []domain.CalendarDay
    s.owners.Range(func(_ ownerKey, c *calendar) bool {
        c.mu.Lock()
        for _, rec := range c.days {
            if rec.Status == domain.StatusLocked && rec.TripRef == tripRef {
                out = append(out, rec)
            }
        }
        c.mu.Unlock()
        return true
    })
    sortDays(out)
    return out, nil
}

func sortDays(days []domain.CalendarDay) {
    sort.Slice(days, func(i, j int) bool {
        a, b := days[i], days[j]
        if a.ContractorID != b.ContractorID { return a.ContractorID < b.ContractorID }
        if a.Role != b.Role { return a.Role < b.Role }
        return a.Date.Before(b.Date)
    })
}
