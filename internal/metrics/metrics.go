// Package metrics records assignment and calendar outcomes.
package metrics

import (
    "github.com/prometheus/client_golang/prometheus"

    "tripcrew/internal/domain"
    "tripcrew/internal/ports"
)

// Outcome labels for the assignments counter.
const (
    OutcomeAssigned    = "assigned"
    OutcomeNoAvailable = "no_available"
    OutcomeIneligible  = "all_ineligible"
    OutcomeInvalid     = "invalid"
    OutcomeError       = "error"
)

var (
    _ ports.Metrics = Nop{}
    _ ports.Metrics = (*Prometheus)(nil)
)

// Nop discards everything.
type Nop struct{}

func (Nop) Assignment(domain.Role, string) {}
func (Nop) LockConflict(domain.Role)        {}
func (Nop) DayRejected(string)              {}

// Prometheus implements ports.Metrics with counters registered on reg.
type Prometheus struct {
    assignments   *prometheus.CounterVec
    lockConflicts *prometheus.CounterVec
    dayRejections *prometheus.CounterVec
}

// NewPrometheus registers the collectors on reg (prometheus.DefaultRegisterer
// when nil) under namespace ("tripcrew" when empty).
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
    if reg == nil {
        reg = prometheus.DefaultRegisterer
    }
    if namespace == "" {
        namespace = "tripcrew"
    }
    p := &Prometheus{
        assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "assignments_total",
            Help:      "Assignment requests by role and outcome.",
        }, []string{"role", "outcome"}),
        lockConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "lock_conflicts_total",
            Help:      "Bulk lock attempts lost to a concurrent assignment, by role.",
        }, []string{"role"}),
        dayRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "day_rejections_total",
            Help:      "Calendar day writes rejected because the day is locked, by operation.",
        }, []string{"op"}),
    }
    for _, c := range []prometheus.Collector{p.assignments, p.lockConflicts, p.dayRejections} {
        if err := reg.Register(c); err != nil {
            return nil, err
        }
    }
    return p, nil
}

func (p *Prometheus) Assignment(role domain.Role, outcome string) {
    p.assignments.WithLabelValues(string(role), outcome).Inc()
}

func (p *Prometheus) LockConflict(role domain.Role) {
    p.lockConflicts.WithLabelValues(string(role)).Inc()
}

func (p *Prometheus) DayRejected(op string) {
    p.dayRejections.WithLabelValues(op).Inc()
}
