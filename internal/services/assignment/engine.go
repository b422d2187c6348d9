// Package assignment picks one contractor for a trip and locks their days.
package assignment

import (
    "context"
    "errors"
    "fmt"
    "log"

    "github.com/golang-sql/civil"

    "tripcrew/internal/domain"
    "tripcrew/internal/metrics"
    "tripcrew/internal/ports"
    "tripcrew/internal/services/scoring"
)

var _ ports.Assigner = (*Engine)(nil)

// unknownRole labels outcomes for requests whose role failed validation.
const unknownRole domain.Role = "unknown"

// Resolver filters candidates to those free on every date.
type Resolver interface {
    Resolve(ctx context.Context, role domain.Role, dates []civil.Date, candidates []string) ([]string, error)
}

// Locker atomically locks every date for a trip, or none.
type Locker interface {
    Lock(ctx context.Context, contractorID string, role domain.Role, dates []civil.Date, tripID string) error
}

type Options struct {
    Publisher ports.AssignmentPublisher
    Metrics   ports.Metrics
    Logger    *log.Logger
}

type Engine struct {
    resolver  Resolver
    locker    Locker
    publisher ports.AssignmentPublisher
    metrics   ports.Metrics
    log       *log.Logger
}

func New(resolver Resolver, locker Locker, opts Options) *Engine {
    e := &Engine{resolver: resolver, locker: locker, publisher: opts.Publisher, metrics: opts.Metrics, log: opts.Logger}
    if e.log == nil {
        e.log = log.Default()
    }
    if e.metrics == nil {
        e.metrics = metrics.Nop{}
    }
    if e.publisher == nil {
        e.publisher = LogPublisher{Logger: e.log}
    }
    return e
}

// RequestAssignment loads the role's candidate pool from pool and assigns.
func (e *Engine) RequestAssignment(ctx context.Context, role domain.Role, tripID string, dates []civil.Date, pool ports.CandidatePoolProvider) (domain.AssignmentResult, error) {
    req := domain.AssignmentRequest{Role: role, Dates: dates, TripID: tripID}
    if err := req.Validate(); err != nil {
        e.record(role, metrics.OutcomeInvalid)
        return domain.AssignmentResult{}, err
    }
    profiles, err := pool.Candidates(ctx, role)
    if err != nil {
        e.record(role, metrics.OutcomeError)
        return domain.AssignmentResult{}, fmt.Errorf("load candidates: %w", err)
    }
    return e.Assign(ctx, req, profiles)
}

// Assign picks the best available eligible candidate and locks their days.
// When a lock loses a race to another trip the next-ranked candidate is
// tried, so the loop runs at most once per candidate.
func (e *Engine) Assign(ctx context.Context, req domain.AssignmentRequest, pool []domain.ContractorProfile) (domain.AssignmentResult, error) {
    res, outcome, err := e.assign(ctx, req, pool)
    e.record(req.Role, outcome)
    return res, err
}

func (e *Engine) record(role domain.Role, outcome string) {
    if !role.Valid() {
        role = unknownRole
    }
    e.metrics.Assignment(role, outcome)
}

func (e *Engine) assign(ctx context.Context, req domain.AssignmentRequest, pool []domain.ContractorProfile) (domain.AssignmentResult, string, error) {
    if err := req.Validate(); err != nil {
        return domain.AssignmentResult{}, metrics.OutcomeInvalid, err
    }

    eligible, considered := e.eligible(req.Role, pool)
    if len(eligible) == 0 {
        if considered > 0 {
            return domain.AssignmentResult{}, metrics.OutcomeIneligible, domain.ErrAllIneligible
        }
        return domain.AssignmentResult{}, metrics.OutcomeNoAvailable, domain.ErrNoAvailable
    }

    ids := make([]string, len(eligible))
    for i, p := range eligible {
        ids[i] = p.Email
    }
    free, err := e.resolver.Resolve(ctx, req.Role, req.Dates, ids)
    if err != nil {
        return domain.AssignmentResult{}, e.failure(req, err), err
    }
    if len(free) == 0 {
        return domain.AssignmentResult{}, metrics.OutcomeNoAvailable, domain.ErrNoAvailable
    }

    freeSet := make(map[string]struct{}, len(free))
    for _, id := range free {
        freeSet[id] = struct{}{}
    }
    survivors := make([]domain.ContractorProfile, 0, len(free))
    for _, p := range eligible {
        if _, ok := freeSet[p.Email]; ok {
            survivors = append(survivors, p)
        }
    }

    for _, cand := range scoring.Rank(survivors) {
        err := e.locker.Lock(ctx, cand.Profile.Email, req.Role, req.Dates, req.TripID)
        var rej *domain.RejectionError
        switch {
        case err == nil:
            res := domain.AssignmentResult{
                WinnerEmail: cand.Profile.Email,
                Score:       cand.Score,
                LockedDates: domain.SortDates(req.Dates),
            }
            e.publish(ctx, req, res)
            return res, metrics.OutcomeAssigned, nil
        case errors.As(err, &rej):
            e.metrics.LockConflict(req.Role)
            e.log.Printf("[assign] trip %s: lost lock on %s (%d days taken), trying next candidate", req.TripID, cand.Profile.Email, len(rej.Rejections))
            continue
        default:
            return domain.AssignmentResult{}, e.failure(req, err), err
        }
    }
    return domain.AssignmentResult{}, metrics.OutcomeNoAvailable, domain.ErrNoAvailable
}

// eligible drops wrong-role, banned and inactive profiles before any calendar
// I/O. considered counts the role-matching profiles seen.
func (e *Engine) eligible(role domain.Role, pool []domain.ContractorProfile) (out []domain.ContractorProfile, considered int) {
    seen := make(map[string]struct{}, len(pool))
    for _, p := range pool {
        if p.Role != role {
            continue
        }
        id, err := domain.NormalizeContractorID(p.Email)
        if err != nil {
            e.log.Printf("[assign] skipping profile: %v", err)
            continue
        }
        considered++
        if !p.Eligible() {
            continue
        }
        if _, dup := seen[id]; dup {
            continue
        }
        seen[id] = struct{}{}
        p.Email = id
        out = append(out, p)
    }
    return out, considered
}

func (e *Engine) failure(req domain.AssignmentRequest, err error) string {
    if errors.Is(err, domain.ErrInvariantViolation) {
        e.log.Printf("[invariant] trip %s (%s): %v", req.TripID, req.Role, err)
    }
    return metrics.OutcomeError
}

func (e *Engine) publish(ctx context.Context, req domain.AssignmentRequest, res domain.AssignmentResult) {
    ev := domain.LockEvent{TripID: req.TripID, ContractorID: res.WinnerEmail, Role: req.Role, Dates: res.LockedDates}
    if err := e.publisher.PublishLocked(ctx, ev); err != nil {
        // the lock is committed; the collaborator can recover it via LocksForTrip
        e.log.Printf("[assign] trip %s: publish lock event: %v", req.TripID, err)
    }
}
