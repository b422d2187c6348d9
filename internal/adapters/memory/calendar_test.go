package memory

import (
    "context"
    "testing"

    "github.com/stretchr/testify/require"

    "tripcrew/internal/adapters/storetest"
    "tripcrew/internal/domain"
    "tripcrew/internal/ports"
)

func TestCalendarContract(t *testing.T) {
    storetest.Run(t, func(t *testing.T) ports.CalendarStore { return NewCalendar() })
}

func TestCalendarHonorsCanceledContext(t *testing.T) {
    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    _, err := NewCalendar().Get(ctx, "ana@example.com", domain.RoleDriver, storetest.Days(1))
    require.ErrorIs(t, err, context.Canceled)
}

func TestReadsDoNotCreateCalendars(t *testing.T) {
    s := NewCalendar()
    got, err := s.Get(context.Background(), "ghost@example.com", domain.RoleGuide, storetest.Days(1, 2))
    require.NoError(t, err)
    require.Equal(t, domain.StatusAvailable, got[storetest.Day(1)])
    require.Equal(t, domain.StatusAvailable, got[storetest.Day(2)])
    require.Zero(t, s.owners.Size())

    released, err := s.Release(context.Background(), "trip-1", "ghost@example.com", domain.RoleGuide, storetest.Days(1))
    require.NoError(t, err)
    require.Empty(t, released)
    require.Zero(t, s.owners.Size())

    require.NoError(t, s.SetStatus(context.Background(), "ghost@example.com", domain.RoleGuide, storetest.Day(1), domain.StatusUnavailable, ""))
    require.Equal(t, 1, s.owners.Size())
}

func TestProfilesCandidatesByRole(t *testing.T) {
    p := NewProfiles(
        domain.ContractorProfile{Email: "zoe@example.com", Role: domain.RoleGuide},
        domain.ContractorProfile{Email: "bob@example.com", Role: domain.RoleDriver},
        domain.ContractorProfile{Email: "amy@example.com", Role: domain.RoleGuide},
    )
    got, err := p.Candidates(context.Background(), domain.RoleGuide)
    require.NoError(t, err)
    require.Len(t, got, 2)
    require.Equal(t, "amy@example.com", got[0].Email)
    require.Equal(t, "zoe@example.com", got[1].Email)
}
