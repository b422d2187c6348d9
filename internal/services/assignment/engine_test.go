package assignment

import (
    "bytes"
    "context"
    "errors"
    "fmt"
    "log"
    "strings"
    "sync"
    "testing"

    "github.com/golang-sql/civil"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/testutil"
    "github.com/stretchr/testify/require"

    "tripcrew/internal/adapters/memory"
    "tripcrew/internal/adapters/storetest"
    "tripcrew/internal/domain"
    "tripcrew/internal/metrics"
    "tripcrew/internal/services/availability"
    "tripcrew/internal/services/lifecycle"
)

type recordingPublisher struct {
    mu     sync.Mutex
    events []domain.LockEvent
    err    error
}

func (p *recordingPublisher) PublishLocked(_ context.Context, ev domain.LockEvent) error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.events = append(p.events, ev)
    return p.err
}

type harness struct {
    cal       *memory.Calendar
    manager   *lifecycle.Manager
    engine    *Engine
    publisher *recordingPublisher
    logs      *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
    t.Helper()
    h := &harness{cal: memory.NewCalendar(), publisher: &recordingPublisher{}, logs: &bytes.Buffer{}}
    logger := log.New(h.logs, "", 0)
    h.manager = lifecycle.New(h.cal, nil, logger)
    h.engine = New(availability.New(h.cal, 4), h.manager, Options{Publisher: h.publisher, Logger: logger})
    return h
}

func profile(email string, rating float64, rung int) domain.ContractorProfile {
    return domain.ContractorProfile{Email: email, Role: domain.RoleDriver, Rating: rating, Active: true, ExperienceRung: rung}
}

func request(trip string, days ...int) domain.AssignmentRequest {
    return domain.AssignmentRequest{Role: domain.RoleDriver, TripID: trip, Dates: storetest.Days(days...)}
}

func TestAssignPicksHighestScore(t *testing.T) {
    h := newHarness(t)
    ctx := context.Background()
    a := domain.ContractorProfile{Email: "a@example.com", Role: domain.RoleDriver, Rating: 4.5, Active: true, ExperienceRung: 8, PenaltyPoints: 5}
    b := domain.ContractorProfile{Email: "b@example.com", Role: domain.RoleDriver, Rating: 3.8, Active: true, IsNewContractor: true, ExperienceRung: 2}

    res, err := h.engine.Assign(ctx, request("trip-1", 3, 1, 2), []domain.ContractorProfile{a, b})
    require.NoError(t, err)
    require.Equal(t, "b@example.com", res.WinnerEmail)
    require.Equal(t, 107.0, res.Score)
    require.Equal(t, storetest.Days(1, 2, 3), res.LockedDates)

    locks, err := h.cal.LocksForTrip(ctx, "trip-1")
    require.NoError(t, err)
    require.Len(t, locks, 3)
    for _, l := range locks {
        require.Equal(t, "b@example.com", l.ContractorID)
    }

    require.Len(t, h.publisher.events, 1)
    require.Equal(t, domain.LockEvent{TripID: "trip-1", ContractorID: "b@example.com", Role: domain.RoleDriver, Dates: storetest.Days(1, 2, 3)}, h.publisher.events[0])
}

func TestAssignFallsThroughStaggeredAvailability(t *testing.T) {
    h := newHarness(t)
    ctx := context.Background()
    pool := []domain.ContractorProfile{
        profile("first@example.com", 5.0, 1),  // 128
        profile("second@example.com", 4.5, 1), // 118
        profile("third@example.com", 4.0, 1),  // 108
        profile("fourth@example.com", 3.0, 1), // 88
    }
    _, err := h.manager.MarkUnavailable(ctx, "first@example.com", domain.RoleDriver, storetest.Days(2))
    require.NoError(t, err)
    require.NoError(t, h.manager.Lock(ctx, "second@example.com", domain.RoleDriver, storetest.Days(3, 4), "other-trip"))

    res, err := h.engine.Assign(ctx, request("trip-2", 1, 2, 3), pool)
    require.NoError(t, err)
    require.Equal(t, "third@example.com", res.WinnerEmail)
    require.Equal(t, 108.0, res.Score)

    // first is free again once the staggered block moves past the range
    res, err = h.engine.Assign(ctx, request("trip-3", 5, 6), pool)
    require.NoError(t, err)
    require.Equal(t, "first@example.com", res.WinnerEmail)
}

func TestAssignBannedPerfectCandidateIsNeverSelected(t *testing.T) {
    h := newHarness(t)
    star := profile("star@example.com", 5.0, 1)
    star.Banned = true

    _, err := h.engine.Assign(context.Background(), request("trip-1", 1), []domain.ContractorProfile{star})
    require.ErrorIs(t, err, domain.ErrNoAvailable)
    require.ErrorIs(t, err, domain.ErrAllIneligible)

    locks, err := h.cal.LocksForTrip(context.Background(), "trip-1")
    require.NoError(t, err)
    require.Empty(t, locks)
}

func TestAssignSkipsInactiveAndOtherRoles(t *testing.T) {
    h := newHarness(t)
    idle := profile("idle@example.com", 5.0, 1)
    idle.Active = false
    guide := profile("guide@example.com", 5.0, 1)
    guide.Role = domain.RoleGuide
    ok := profile("ok@example.com", 1.0, 10)

    res, err := h.engine.Assign(context.Background(), request("trip-1", 1), []domain.ContractorProfile{idle, guide, ok})
    require.NoError(t, err)
    require.Equal(t, "ok@example.com", res.WinnerEmail)
}

func TestAssignNoAvailable(t *testing.T) {
    h := newHarness(t)
    ctx := context.Background()
    _, err := h.engine.Assign(ctx, request("trip-1", 1), nil)
    require.ErrorIs(t, err, domain.ErrNoAvailable)
    require.NotErrorIs(t, err, domain.ErrAllIneligible)

    _, err = h.manager.MarkUnavailable(ctx, "busy@example.com", domain.RoleDriver, storetest.Days(1))
    require.NoError(t, err)
    _, err = h.engine.Assign(ctx, request("trip-1", 1, 2), []domain.ContractorProfile{profile("busy@example.com", 5, 1)})
    require.ErrorIs(t, err, domain.ErrNoAvailable)
}

func TestAssignCallerErrors(t *testing.T) {
    h := newHarness(t)
    pool := []domain.ContractorProfile{profile("a@example.com", 4, 4)}
    ctx := context.Background()

    _, err := h.engine.Assign(ctx, request("trip-1"), pool)
    require.ErrorIs(t, err, domain.ErrInvalidRequest)

    bad := request("trip-1", 1)
    bad.Role = "pilot"
    _, err = h.engine.Assign(ctx, bad, pool)
    require.ErrorIs(t, err, domain.ErrInvalidRequest)

    _, err = h.engine.Assign(ctx, request("", 1), pool)
    require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestInvalidRolesShareOneMetricLabel(t *testing.T) {
    reg := prometheus.NewRegistry()
    m, err := metrics.NewPrometheus(reg, "")
    require.NoError(t, err)
    h := newHarness(t)
    h.engine = New(availability.New(h.cal, 4), h.manager, Options{Metrics: m, Logger: log.New(h.logs, "", 0)})
    ctx := context.Background()
    pool := []domain.ContractorProfile{profile("a@example.com", 4, 4)}

    for _, role := range []domain.Role{"pilot", "captain", ""} {
        bad := request("trip-1", 1)
        bad.Role = role
        _, err = h.engine.Assign(ctx, bad, pool)
        require.ErrorIs(t, err, domain.ErrInvalidRequest)
    }
    _, err = h.engine.RequestAssignment(ctx, "sherpa", "trip-1", storetest.Days(1), memory.NewProfiles())
    require.ErrorIs(t, err, domain.ErrInvalidRequest)

    require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP tripcrew_assignments_total Assignment requests by role and outcome.
# TYPE tripcrew_assignments_total counter
tripcrew_assignments_total{outcome="invalid",role="unknown"} 4
`), "tripcrew_assignments_total"))
}

// racingLocker lets a competing trip grab one day of the first candidate it
// is asked to lock, reproducing a race between resolve and lock.
type racingLocker struct {
    inner *lifecycle.Manager
    once  sync.Once
}

func (r *racingLocker) Lock(ctx context.Context, id string, role domain.Role, dates []civil.Date, trip string) error {
    r.once.Do(func() {
        if err := r.inner.Lock(ctx, id, role, dates[:1], "competitor"); err != nil {
            panic(err)
        }
    })
    return r.inner.Lock(ctx, id, role, dates, trip)
}

func TestAssignRetriesNextCandidateAfterLostRace(t *testing.T) {
    h := newHarness(t)
    reg := prometheus.NewRegistry()
    m, err := metrics.NewPrometheus(reg, "")
    require.NoError(t, err)
    engine := New(availability.New(h.cal, 4), &racingLocker{inner: h.manager}, Options{Publisher: h.publisher, Metrics: m, Logger: log.New(h.logs, "", 0)})

    pool := []domain.ContractorProfile{profile("top@example.com", 5, 1), profile("next@example.com", 4, 1)}
    res, err := engine.Assign(context.Background(), request("trip-1", 1, 2), pool)
    require.NoError(t, err)
    require.Equal(t, "next@example.com", res.WinnerEmail)
    require.Contains(t, h.logs.String(), "lost lock on top@example.com")

    // the loser holds only the competitor's day, never a partial trip-1 lock
    days, err := h.cal.Get(context.Background(), "top@example.com", domain.RoleDriver, storetest.Days(1, 2))
    require.NoError(t, err)
    require.Equal(t, domain.StatusLocked, days[storetest.Day(1)])
    require.Equal(t, domain.StatusAvailable, days[storetest.Day(2)])

    n, err := testutil.GatherAndCount(reg, "tripcrew_lock_conflicts_total")
    require.NoError(t, err)
    require.Equal(t, 1, n)
}

type alwaysContended struct{}

func (alwaysContended) Lock(_ context.Context, id string, role domain.Role, dates []civil.Date, _ string) error {
    return &domain.RejectionError{ContractorID: id, Role: role, Rejections: []domain.Rejection{{Date: dates[0], Current: domain.StatusLocked, Reason: "locked"}}}
}

func TestAssignExhaustedContentionDegradesToNoAvailable(t *testing.T) {
    h := newHarness(t)
    engine := New(availability.New(h.cal, 4), alwaysContended{}, Options{Logger: log.New(h.logs, "", 0)})
    pool := []domain.ContractorProfile{profile("a@example.com", 5, 1), profile("b@example.com", 4, 1), profile("c@example.com", 3, 1)}

    _, err := engine.Assign(context.Background(), request("trip-1", 1), pool)
    require.ErrorIs(t, err, domain.ErrNoAvailable)
    require.NotErrorIs(t, err, domain.ErrDayLocked)
}

type brokenLocker struct{ err error }

func (b brokenLocker) Lock(context.Context, string, domain.Role, []civil.Date, string) error {
    return b.err
}

func TestAssignSurfacesInvariantViolation(t *testing.T) {
    h := newHarness(t)
    corrupt := fmt.Errorf("%w: locked day without trip ref", domain.ErrInvariantViolation)
    engine := New(availability.New(h.cal, 4), brokenLocker{err: corrupt}, Options{Logger: log.New(h.logs, "", 0)})

    _, err := engine.Assign(context.Background(), request("trip-1", 1), []domain.ContractorProfile{profile("a@example.com", 5, 1), profile("b@example.com", 4, 1)})
    require.ErrorIs(t, err, domain.ErrInvariantViolation)
    require.NotErrorIs(t, err, domain.ErrNoAvailable)
    require.Contains(t, h.logs.String(), "[invariant] trip trip-1")
}

func TestAssignStoreFailureIsNotRetried(t *testing.T) {
    h := newHarness(t)
    down := errors.New("connection refused")
    engine := New(availability.New(h.cal, 4), brokenLocker{err: down}, Options{Logger: log.New(h.logs, "", 0)})
    _, err := engine.Assign(context.Background(), request("trip-1", 1), []domain.ContractorProfile{profile("a@example.com", 5, 1)})
    require.ErrorIs(t, err, down)
}

func TestAssignPublishFailureKeepsLock(t *testing.T) {
    h := newHarness(t)
    h.publisher.err = errors.New("sink unavailable")
    res, err := h.engine.Assign(context.Background(), request("trip-1", 1), []domain.ContractorProfile{profile("a@example.com", 5, 1)})
    require.NoError(t, err)
    require.Equal(t, "a@example.com", res.WinnerEmail)
    require.Contains(t, h.logs.String(), "publish lock event")
}

func TestConcurrentAssignmentsNeverDoubleLock(t *testing.T) {
    h := newHarness(t)
    ctx := context.Background()
    solo := []domain.ContractorProfile{profile("solo@example.com", 4, 3)}

    var wg sync.WaitGroup
    const racers = 6
    errs := make([]error, racers)
    for i := 0; i < racers; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            // {3,4} or {4,5}: every pair overlaps on day 4
            _, errs[i] = h.engine.Assign(ctx, request(fmt.Sprintf("trip-%d", i), 3+i%2, 4+i%2), solo)
        }(i)
    }
    wg.Wait()

    wins := 0
    for _, err := range errs {
        if err == nil {
            wins++
            continue
        }
        require.ErrorIs(t, err, domain.ErrNoAvailable)
    }
    require.Equal(t, 1, wins)

    // disjoint ranges for the same contractor both succeed
    var wg2 sync.WaitGroup
    errs2 := make([]error, 2)
    for i, days := range [][]int{{10, 11}, {12, 13}} {
        wg2.Add(1)
        go func(i int, days []int) {
            defer wg2.Done()
            _, errs2[i] = h.engine.Assign(ctx, request(fmt.Sprintf("later-%d", i), days...), solo)
        }(i, days)
    }
    wg2.Wait()
    require.NoError(t, errs2[0])
    require.NoError(t, errs2[1])
}

func TestRequestAssignmentUsesProvider(t *testing.T) {
    h := newHarness(t)
    profiles := memory.NewProfiles(
        profile("a@example.com", 3, 5),
        profile("B@Example.com", 5, 5),
        profile("c@example.com", 4, 5),
    )
    res, err := h.engine.RequestAssignment(context.Background(), domain.RoleDriver, "trip-1", storetest.Days(1), profiles)
    require.NoError(t, err)
    require.Equal(t, "b@example.com", res.WinnerEmail)

    subset, err := Restrict(profiles, []string{"a@example.com", "C@example.com"})
    require.NoError(t, err)
    res, err = h.engine.RequestAssignment(context.Background(), domain.RoleDriver, "trip-2", storetest.Days(1), subset)
    require.NoError(t, err)
    require.Equal(t, "c@example.com", res.WinnerEmail)

    _, err = h.engine.RequestAssignment(context.Background(), domain.RoleDriver, "trip-3", nil, profiles)
    require.ErrorIs(t, err, domain.ErrInvalidRequest)
}
