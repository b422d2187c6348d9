// Package storetest is the behavioral contract every ports.CalendarStore
// adapter must satisfy. Adapter packages call Run from their own tests.
package storetest

import (
    "context"
    "sync"
    "testing"
    "time"

    "github.com/golang-sql/civil"
    "github.com/stretchr/testify/require"

    "tripcrew/internal/domain"
    "tripcrew/internal/ports"
)

// Factory returns an empty store. Cleanup is the factory's job (t.Cleanup).
type Factory func(t *testing.T) ports.CalendarStore

const driver = domain.RoleDriver

// Day returns a date in June 2026, a month with no surprises.
func Day(d int) civil.Date { return civil.Date{Year: 2026, Month: time.June, Day: d} }

// Days returns Day(d) for each argument.
func Days(ds ...int) []civil.Date {
    out := make([]civil.Date, 0, len(ds))
    for _, d := range ds {
        out = append(out, Day(d))
    }
    return out
}

func Run(t *testing.T, newStore Factory) {
    t.Run("AbsentIsAvailable", func(t *testing.T) { testAbsentIsAvailable(t, newStore(t)) })
    t.Run("MarkAndUnmark", func(t *testing.T) { testMarkAndUnmark(t, newStore(t)) })
    t.Run("RolesAreIndependent", func(t *testing.T) { testRolesAreIndependent(t, newStore(t)) })
    t.Run("LockedIsImmutable", func(t *testing.T) { testLockedIsImmutable(t, newStore(t)) })
    t.Run("BulkSetAllOrNothing", func(t *testing.T) { testBulkSetAllOrNothing(t, newStore(t)) })
    t.Run("LockRequiresTripRef", func(t *testing.T) { testLockRequiresTripRef(t, newStore(t)) })
    t.Run("ReleaseMatchesTrip", func(t *testing.T) { testReleaseMatchesTrip(t, newStore(t)) })
    t.Run("ConcurrentOverlappingLocks", func(t *testing.T) { testConcurrentOverlappingLocks(t, newStore(t)) })
    t.Run("ConcurrentDisjointLocks", func(t *testing.T) { testConcurrentDisjointLocks(t, newStore(t)) })
}

func testAbsentIsAvailable(t *testing.T, s ports.CalendarStore) {
    ctx := context.Background()
    got, err := s.Get(ctx, "ana@example.com", driver, Days(1, 2))
    require.NoError(t, err)
    require.Equal(t, map[civil.Date]domain.Status{
        Day(1): domain.StatusAvailable,
        Day(2): domain.StatusAvailable,
    }, got)
}

func testMarkAndUnmark(t *testing.T, s ports.CalendarStore) {
    ctx := context.Background()
    id := "ana@example.com"
    require.NoError(t, s.SetStatus(ctx, id, driver, Day(3), domain.StatusUnavailable, ""))
    require.NoError(t, s.SetStatus(ctx, id, driver, Day(3), domain.StatusUnavailable, ""))

    got, err := s.Get(ctx, id, driver, Days(3, 4))
    require.NoError(t, err)
    require.Equal(t, domain.StatusUnavailable, got[Day(3)])
    require.Equal(t, domain.StatusAvailable, got[Day(4)])

    require.NoError(t, s.SetStatus(ctx, id, driver, Day(3), domain.StatusAvailable, ""))
    got, err = s.Get(ctx, id, driver, Days(3))
    require.NoError(t, err)
    require.Equal(t, domain.StatusAvailable, got[Day(3)])
}

func testRolesAreIndependent(t *testing.T, s ports.CalendarStore) {
    ctx := context.Background()
    id := "sam@example.com"
    require.NoError(t, s.BulkSet(ctx, id, domain.RoleGuide, Days(5, 6), domain.StatusLocked, "trip-g"))

    got, err := s.Get(ctx, id, domain.RoleDriver, Days(5, 6))
    require.NoError(t, err)
    require.Equal(t, domain.StatusAvailable, got[Day(5)])
    require.NoError(t, s.BulkSet(ctx, id, domain.RoleDriver, Days(5, 6), domain.StatusLocked, "trip-d"))
}

func testLockedIsImmutable(t *testing.T, s ports.CalendarStore) {
    ctx := context.Background()
    id := "ana@example.com"
    require.NoError(t, s.SetStatus(ctx, id, driver, Day(7), domain.StatusLocked, "trip-1"))

    for _, st := range []domain.Status{domain.StatusAvailable, domain.StatusUnavailable} {
        err := s.SetStatus(ctx, id, driver, Day(7), st, "")
        require.ErrorIs(t, err, domain.ErrDayLocked)
        var rej *domain.RejectionError
        require.ErrorAs(t, err, &rej)
        require.Len(t, rej.Rejections, 1)
        require.Equal(t, domain.StatusLocked, rej.Rejections[0].Current)
    }
    err := s.SetStatus(ctx, id, driver, Day(7), domain.StatusLocked, "trip-2")
    require.ErrorIs(t, err, domain.ErrDayLocked)

    locks, err := s.LocksForTrip(ctx, "trip-1")
    require.NoError(t, err)
    require.Len(t, locks, 1)
    require.Equal(t, "trip-1", locks[0].TripRef)
}

func testBulkSetAllOrNothing(t *testing.T, s ports.CalendarStore) {
    ctx := context.Background()
    id := "ana@example.com"
    require.NoError(t, s.SetStatus(ctx, id, driver, Day(11), domain.StatusUnavailable, ""))
    require.NoError(t, s.SetStatus(ctx, id, driver, Day(12), domain.StatusLocked, "trip-old"))

    err := s.BulkSet(ctx, id, driver, Days(10, 11, 12, 13), domain.StatusLocked, "trip-new")
    var rej *domain.RejectionError
    require.ErrorAs(t, err, &rej)
    require.Len(t, rej.Rejections, 1)
    require.Equal(t, Day(12), rej.Rejections[0].Date)

    got, err := s.Get(ctx, id, driver, Days(10, 11, 12, 13))
    require.NoError(t, err)
    require.Equal(t, map[civil.Date]domain.Status{
        Day(10): domain.StatusAvailable,
        Day(11): domain.StatusUnavailable,
        Day(12): domain.StatusLocked,
        Day(13): domain.StatusAvailable,
    }, got)

    locks, err := s.LocksForTrip(ctx, "trip-new")
    require.NoError(t, err)
    require.Empty(t, locks)
}

func testLockRequiresTripRef(t *testing.T, s ports.CalendarStore) {
    ctx := context.Background()
    err := s.BulkSet(ctx, "ana@example.com", driver, Days(14), domain.StatusLocked, "")
    require.ErrorIs(t, err, domain.ErrInvalidRequest)
    err = s.BulkSet(ctx, "ana@example.com", driver, nil, domain.StatusUnavailable, "")
    require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func testReleaseMatchesTrip(t *testing.T, s ports.CalendarStore) {
    ctx := context.Background()
    id := "ana@example.com"
    require.NoError(t, s.BulkSet(ctx, id, driver, Days(20, 21), domain.StatusLocked, "trip-a"))
    require.NoError(t, s.SetStatus(ctx, id, driver, Day(22), domain.StatusUnavailable, ""))

    released, err := s.Release(ctx, "trip-b", id, driver, Days(20, 21))
    require.NoError(t, err)
    require.Empty(t, released)

    released, err = s.Release(ctx, "trip-a", id, driver, Days(21, 20, 22))
    require.NoError(t, err)
    require.Equal(t, Days(20, 21), released)

    got, err := s.Get(ctx, id, driver, Days(20, 21, 22))
    require.NoError(t, err)
    require.Equal(t, domain.StatusAvailable, got[Day(20)])
    require.Equal(t, domain.StatusAvailable, got[Day(21)])
    require.Equal(t, domain.StatusUnavailable, got[Day(22)])
}

func testConcurrentOverlappingLocks(t *testing.T, s ports.CalendarStore) {
    ctx := context.Background()
    id := "ana@example.com"
    const racers = 8
    var wg sync.WaitGroup
    errs := make([]error, racers)
    for i := 0; i < racers; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            // every racer overlaps on day 3
            dates := Days(1+i%3, 3)
            if i%3 == 2 {
                dates = Days(3, 4)
            }
            errs[i] = s.BulkSet(ctx, id, driver, dates, domain.StatusLocked, tripName(i))
        }(i)
    }
    wg.Wait()

    winners := 0
    for _, err := range errs {
        if err == nil {
            winners++
            continue
        }
        require.ErrorIs(t, err, domain.ErrDayLocked)
    }
    require.Equal(t, 1, winners)

    held := 0
    for i := 0; i < racers; i++ {
        locks, err := s.LocksForTrip(ctx, tripName(i))
        require.NoError(t, err)
        if errs[i] != nil {
            require.Empty(t, locks, "loser %d left partial locks", i)
            continue
        }
        held += len(locks)
    }
    require.Equal(t, 2, held)
}

func testConcurrentDisjointLocks(t *testing.T, s ports.CalendarStore) {
    ctx := context.Background()
    id := "ana@example.com"
    var wg sync.WaitGroup
    errs := make([]error, 2)
    ranges := [][]civil.Date{Days(1, 2, 3), Days(4, 5, 6)}
    for i := range ranges {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            errs[i] = s.BulkSet(ctx, id, driver, ranges[i], domain.StatusLocked, tripName(i))
        }(i)
    }
    wg.Wait()
    require.NoError(t, errs[0])
    require.NoError(t, errs[1])
}

func tripName(i int) string {
    return "trip-" + string(rune('a'+i))
}
