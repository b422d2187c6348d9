package domain

import (
    "fmt"
    "sort"

    "github.com/golang-sql/civil"
)

// MaxSpanDays caps how many dates one request or from/to range may name.
const MaxSpanDays = 366

// ValidateDates enforces the date-range input contract: between one and
// MaxSpanDays dates, every date valid, no duplicates. Order does not matter.
func ValidateDates(dates []civil.Date) error {
    if len(dates) == 0 {
        return fmt.Errorf("%w: date range is empty", ErrInvalidRequest)
    }
    if len(dates) > MaxSpanDays {
        return fmt.Errorf("%w: %d dates exceeds %d", ErrInvalidRequest, len(dates), MaxSpanDays)
    }
    seen := make(map[civil.Date]struct{}, len(dates))
    for _, d := range dates {
        if !d.IsValid() {
            return fmt.Errorf("%w: invalid date %v", ErrInvalidRequest, d)
        }
        if _, dup := seen[d]; dup {
            return fmt.Errorf("%w: duplicate date %s", ErrInvalidRequest, d)
        }
        seen[d] = struct{}{}
    }
    return nil
}

// SortDates returns an ascending copy.
func SortDates(dates []civil.Date) []civil.Date {
    out := append([]civil.Date(nil), dates...)
    sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
    return out
}

// Span lists every date from..to inclusive.
func Span(from, to civil.Date) ([]civil.Date, error) {
    if !from.IsValid() || !to.IsValid() {
        return nil, fmt.Errorf("%w: invalid range %v..%v", ErrInvalidRequest, from, to)
    }
    if to.Before(from) {
        return nil, fmt.Errorf("%w: range ends before it starts", ErrInvalidRequest)
    }
    n := to.DaysSince(from) + 1
    if n > MaxSpanDays {
        return nil, fmt.Errorf("%w: range of %d days exceeds %d", ErrInvalidRequest, n, MaxSpanDays)
    }
    out := make([]civil.Date, 0, n)
    for d := from; !d.After(to); d = d.AddDays(1) {
        out = append(out, d)
    }
    return out, nil
}
