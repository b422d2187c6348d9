// Package availability filters candidate pools against the calendar store.
package availability

import (
    "context"
    "fmt"

    "github.com/golang-sql/civil"
    "golang.org/x/sync/errgroup"

    "tripcrew/internal/domain"
    "tripcrew/internal/ports"
)

const defaultConcurrency = 8

type Resolver struct {
    calendar    ports.CalendarStore
    concurrency int
}

// New returns a resolver that reads at most concurrency calendars at once.
func New(calendar ports.CalendarStore, concurrency int) *Resolver {
    if concurrency < 1 {
        concurrency = defaultConcurrency
    }
    return &Resolver{calendar: calendar, concurrency: concurrency}
}

// Resolve returns, in input order, the candidates free on every date.
// A candidate free on only some of the dates is excluded.
func (r *Resolver) Resolve(ctx context.Context, role domain.Role, dates []civil.Date, candidates []string) ([]string, error) {
    if !role.Valid() {
        return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidRequest, role)
    }
    if err := domain.ValidateDates(dates); err != nil {
        return nil, err
    }
    candidates = dedupe(candidates)
    free := make([]bool, len(candidates))

    g, gctx := errgroup.WithContext(ctx)
    g.SetLimit(r.concurrency)
    for i, id := range candidates {
        g.Go(func() error {
            statuses, err := r.calendar.Get(gctx, id, role, dates)
            if err != nil {
                return fmt.Errorf("calendar %s/%s: %w", id, role, err)
            }
            free[i] = allAvailable(statuses, dates)
            return nil
        })
    }
    if err := g.Wait(); err != nil {
        return nil, err
    }

    out := make([]string, 0, len(candidates))
    for i, id := range candidates {
        if free[i] {
            out = append(out, id)
        }
    }
    return out, nil
}

func allAvailable(statuses map[civil.Date]domain.Status, dates []civil.Date) bool {
    for _, d := range dates {
        if st, ok := statuses[d]; ok && st != domain.StatusAvailable {
            return false
        }
    }
    return true
}

func dedupe(ids []string) []string {
    seen := make(map[string]struct{}, len(ids))
    out := ids[:0:0]
    for _, id := range ids {
        if _, ok := seen[id]; ok {
            continue
        }
        seen[id] = struct{}{}
        out = append(out, id)
    }
    return out
}
