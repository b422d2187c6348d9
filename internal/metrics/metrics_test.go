package metrics

import (
    "testing"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/testutil"
    "github.com/stretchr/testify/require"

    "tripcrew/internal/domain"
)

func TestPrometheusCounters(t *testing.T) {
    reg := prometheus.NewRegistry()
    p, err := NewPrometheus(reg, "")
    require.NoError(t, err)

    p.Assignment(domain.RoleDriver, OutcomeAssigned)
    p.Assignment(domain.RoleDriver, OutcomeAssigned)
    p.Assignment(domain.RoleGuide, OutcomeNoAvailable)
    p.LockConflict(domain.RoleGuide)
    p.DayRejected("mark_available")

    require.Equal(t, 2.0, testutil.ToFloat64(p.assignments.WithLabelValues("driver", OutcomeAssigned)))
    require.Equal(t, 1.0, testutil.ToFloat64(p.assignments.WithLabelValues("guide", OutcomeNoAvailable)))
    require.Equal(t, 1.0, testutil.ToFloat64(p.lockConflicts.WithLabelValues("guide")))
    require.Equal(t, 1.0, testutil.ToFloat64(p.dayRejections.WithLabelValues("mark_available")))

    n, err := testutil.GatherAndCount(reg, "tripcrew_assignments_total")
    require.NoError(t, err)
    require.Equal(t, 2, n)
}

func TestPrometheusDoubleRegistrationFails(t *testing.T) {
    reg := prometheus.NewRegistry()
    _, err := NewPrometheus(reg, "x")
    require.NoError(t, err)
    _, err = NewPrometheus(reg, "x")
    require.Error(t, err)
}
