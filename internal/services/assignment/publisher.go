package assignment

import (
    "context"
    "log"
    "strings"

    "tripcrew/internal/domain"
    "tripcrew/internal/ports"
)

var _ ports.AssignmentPublisher = LogPublisher{}

// LogPublisher writes lock events to the log. It is the default when no
// trip-management sink is wired.
type LogPublisher struct{ Logger *log.Logger }

func (p LogPublisher) PublishLocked(_ context.Context, ev domain.LockEvent) error {
    l := p.Logger
    if l == nil {
        l = log.Default()
    }
    days := make([]string, len(ev.Dates))
    for i, d := range ev.Dates {
        days[i] = d.String()
    }
    l.Printf("[assign] trip %s locked %s/%s on %s", ev.TripID, ev.ContractorID, ev.Role, strings.Join(days, ","))
    return nil
}
