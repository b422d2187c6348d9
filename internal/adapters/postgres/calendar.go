package postgres

import (
    "context"
    "fmt"
    "strings"
    "time"

    "github.com/golang-sql/civil"
    "github.com/jackc/pgx/v5"

    "tripcrew/internal/domain"
    "tripcrew/internal/ports"
)

var _ ports.CalendarStore = (*DB)(nil)

func toTimes(dates []civil.Date) []time.Time {
    out := make([]time.Time, len(dates))
    for i, d := range dates {
        out[i] = d.In(time.UTC)
    }
    return out
}

// loadDays reads stored rows for dates. With forUpdate the rows stay locked
// until the surrounding transaction ends.
func loadDays(ctx context.Context, q interface {
    Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, contractorID string, role domain.Role, dates []civil.Date, forUpdate bool) (map[civil.Date]domain.CalendarDay, error) {
    query := `
        SELECT day, status, COALESCE(trip_ref, '')
        FROM calendar_days
        WHERE contractor_id = $1 AND role = $2 AND day = ANY($3)
    `
    if forUpdate {
        query += ` FOR UPDATE`
    }
    rows, err := q.Query(ctx, query, contractorID, string(role), toTimes(dates))
    if err != nil {
        return nil, fmt.Errorf("load calendar: %w", err)
    }
    defer rows.Close()
    out := make(map[civil.Date]domain.CalendarDay, len(dates))
    for rows.Next() {
        var day time.Time
        var status, tripRef string
        if err := rows.Scan(&day, &status, &tripRef); err != nil {
            return nil, err
        }
        rec := domain.CalendarDay{ContractorID: contractorID, Role: role, Date: civil.DateOf(day), Status: domain.Status(status), TripRef: tripRef}
        if err := rec.Check(); err != nil {
            return nil, err
        }
        out[rec.Date] = rec
    }
    return out, rows.Err()
}

func (db *DB) Get(ctx context.Context, contractorID string, role domain.Role, dates []civil.Date) (map[civil.Date]domain.Status, error) {
    out := make(map[civil.Date]domain.Status, len(dates))
    if len(dates) == 0 {
        return out, nil
    }
    recs, err := loadDays(ctx, db.Pool, contractorID, role, dates, false)
    if err != nil {
        return nil, err
    }
    for _, d := range dates {
        out[d] = domain.StatusAvailable
        if rec, ok := recs[d]; ok {
            out[d] = rec.Status
        }
    }
    return out, nil
}

func (db *DB) SetStatus(ctx context.Context, contractorID string, role domain.Role, date civil.Date, status domain.Status, tripRef string) error {
    return db.BulkSet(ctx, contractorID, role, []civil.Date{date}, status, tripRef)
}

// BulkSet serializes on a transaction-scoped advisory lock for
// (contractor, role), so competing batches queue even for days that have no
// row yet. Every date is checked before the single conditional write.
func (db *DB) BulkSet(ctx context.Context, contractorID string, role domain.Role, dates []civil.Date, status domain.Status, tripRef string) error {
    if err := domain.ValidateDates(dates); err != nil {
        return err
    }
    return db.withTx(ctx, func(tx pgx.Tx) error {
        if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, contractorID+"|"+string(role)); err != nil {
            return fmt.Errorf("advisory lock: %w", err)
        }
        current, err := loadDays(ctx, tx, contractorID, role, dates, true)
        if err != nil {
            return err
        }
        var rejected []domain.Rejection
        for _, d := range dates {
            cur := domain.StatusAvailable
            if rec, ok := current[d]; ok {
                cur = rec.Status
            }
            if terr := domain.Transition(cur, status, tripRef); terr != nil {
                if cur != domain.StatusLocked {
                    return terr
                }
                rejected = append(rejected, domain.Rejection{Date: d, Current: cur, Reason: domain.Reason(terr)})
            }
        }
        if len(rejected) > 0 {
            return &domain.RejectionError{ContractorID: contractorID, Role: role, Rejections: rejected}
        }

        if status == domain.StatusAvailable {
            _, err = tx.Exec(ctx, `
                DELETE FROM calendar_days
                WHERE contractor_id = $1 AND role = $2 AND day = ANY($3) AND status = 'unavailable'
            `, contractorID, string(role), toTimes(dates))
            return err
        }
        tag, err := tx.Exec(ctx, `
            INSERT INTO calendar_days (contractor_id, role, day, status, trip_ref)
            SELECT $1, $2, d, $4, NULLIF($5, '') FROM unnest($3::date[]) AS d
            ON CONFLICT (contractor_id, role, day) DO UPDATE
            SET status = EXCLUDED.status, trip_ref = EXCLUDED.trip_ref, updated_at = now()
            WHERE calendar_days.status <> 'locked'
        `, contractorID, string(role), toTimes(dates), string(status), tripRef)
        if err != nil {
            return err
        }
        if int(tag.RowsAffected()) != len(dates) {
            // rows were checked under lock above; a short write means the
            // table changed underneath us
            return fmt.Errorf("%w: wrote %d of %d days for %s/%s", domain.ErrInvariantViolation, tag.RowsAffected(), len(dates), contractorID, role)
        }
        return nil
    })
}

func (db *DB) Release(ctx context.Context, tripRef, contractorID string, role domain.Role, dates []civil.Date) ([]civil.Date, error) {
    if strings.TrimSpace(tripRef) == "" {
        return nil, fmt.Errorf("%w: trip ref is required", domain.ErrInvalidRequest)
    }
    var released []civil.Date
    err := db.withTx(ctx, func(tx pgx.Tx) error {
        released = released[:0]
        rows, err := tx.Query(ctx, `
            DELETE FROM calendar_days
            WHERE contractor_id = $1 AND role = $2 AND day = ANY($3) AND status = 'locked' AND trip_ref = $4
            RETURNING day
        `, contractorID, string(role), toTimes(dates), tripRef)
        if err != nil {
            return err
        }
        days, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
        if err != nil {
            return err
        }
        for _, d := range days {
            released = append(released, civil.DateOf(d))
        }
        return nil
    })
    if err != nil {
        return nil, err
    }
    return domain.SortDates(released), nil
}

func (db *DB) LocksForTrip(ctx context.Context, tripRef string) ([]domain.CalendarDay, error) {
    rows, err := db.Pool.Query(ctx, `
        SELECT contractor_id, role, day FROM calendar_days
        WHERE trip_ref = $1 AND status = 'locked'
        ORDER BY contractor_id, role, day
    `, tripRef)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []domain.CalendarDay
    for rows.Next() {
        var id, role string
        var day time.Time
        if err := rows.Scan(&id, &role, &day); err != nil {
            return nil, err
        }
        out = append(out, domain.CalendarDay{ContractorID: id, Role: domain.Role(role), Date: civil.DateOf(day), Status: domain.StatusLocked, TripRef: tripRef})
    }
    return out, rows.Err()
}
