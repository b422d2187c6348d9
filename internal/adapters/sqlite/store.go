// Package sqlite provides a SQLite-backed calendar store for single-node
// deployments and tests.
package sqlite

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/golang-sql/civil"
    "github.com/pressly/goose/v3"
    _ "modernc.org/sqlite"

    "tripcrew/internal/adapters/sqlite/migrations"
    "tripcrew/internal/domain"
    "tripcrew/internal/ports"
)

var (
    _ ports.CalendarStore         = (*Store)(nil)
    _ ports.CandidatePoolProvider = (*Store)(nil)
)

// Store persists calendar days in SQLite. Writes go through a single
// connection, so every transaction is serialized.
type Store struct {
    db *sql.DB
}

// Open opens path (":memory:" is allowed) and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
    path = strings.TrimSpace(path)
    if path == "" {
        return nil, fmt.Errorf("storage path is required")
    }
    dsn := path
    if path != ":memory:" {
        dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
    }
    db, err := sql.Open("sqlite", dsn)
    if err != nil {
        return nil, fmt.Errorf("open sqlite db: %w", err)
    }
    db.SetMaxOpenConns(1)
    if err := db.PingContext(ctx); err != nil {
        _ = db.Close()
        return nil, fmt.Errorf("ping sqlite db: %w", err)
    }
    if err := migrate(ctx, db); err != nil {
        _ = db.Close()
        return nil, err
    }
    return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
    provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.FS)
    if err != nil {
        return fmt.Errorf("migration provider: %w", err)
    }
    if _, err := provider.Up(ctx); err != nil {
        return fmt.Errorf("run migrations: %w", err)
    }
    return nil
}

func (s *Store) Close() error {
    if s == nil || s.db == nil {
        return nil
    }
    return s.db.Close()
}

type querier interface {
    QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func placeholders(n int) string {
    return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// load reads the stored records for dates; absent dates are missing from the map.
func load(ctx context.Context, q querier, contractorID string, role domain.Role, dates []civil.Date) (map[civil.Date]domain.CalendarDay, error) {
    args := make([]any, 0, len(dates)+2)
    args = append(args, contractorID, string(role))
    for _, d := range dates {
        args = append(args, d.String())
    }
    rows, err := q.QueryContext(ctx, `
        SELECT day, status, COALESCE(trip_ref, '')
        FROM calendar_days
        WHERE contractor_id = ? AND role = ? AND day IN (`+placeholders(len(dates))+`)
    `, args...)
    if err != nil {
        return nil, fmt.Errorf("load calendar: %w", err)
    }
    defer rows.Close()
    out := make(map[civil.Date]domain.CalendarDay, len(dates))
    for rows.Next() {
        var rawDay, status, tripRef string
        if err := rows.Scan(&rawDay, &status, &tripRef); err != nil {
            return nil, err
        }
        d, err := civil.ParseDate(rawDay)
        if err != nil {
            return nil, fmt.Errorf("%w: stored day %q: %v", domain.ErrInvariantViolation, rawDay, err)
        }
        rec := domain.CalendarDay{ContractorID: contractorID, Role: role, Date: d, Status: domain.Status(status), TripRef: tripRef}
        if err := rec.Check(); err != nil {
            return nil, err
        }
        out[d] = rec
    }
    return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, contractorID string, role domain.Role, dates []civil.Date) (map[civil.Date]domain.Status, error) {
    out := make(map[civil.Date]domain.Status, len(dates))
    if len(dates) == 0 {
        return out, nil
    }
    recs, err := load(ctx, s.db, contractorID, role, dates)
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

func (s *Store) SetStatus(ctx context.Context, contractorID string, role domain.Role, date civil.Date, status domain.Status, tripRef string) error {
    return s.BulkSet(ctx, contractorID, role, []civil.Date{date}, status, tripRef)
}

// BulkSet checks and writes every date inside one transaction.
func (s *Store) BulkSet(ctx context.Context, contractorID string, role domain.Role, dates []civil.Date, status domain.Status, tripRef string) (err error) {
    if err := domain.ValidateDates(dates); err != nil {
        return err
    }
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func() {
        if err != nil { _ = tx.Rollback() } else { err = tx.Commit() }
    }()

    current, err := load(ctx, tx, contractorID, role, dates)
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

    now := time.Now().UTC().UnixMilli()
    for _, d := range dates {
        if status == domain.StatusAvailable {
            if _, err = tx.ExecContext(ctx, `
                DELETE FROM calendar_days WHERE contractor_id = ? AND role = ? AND day = ? AND status = 'unavailable'
            `, contractorID, string(role), d.String()); err != nil {
                return fmt.Errorf("clear %s: %w", d, err)
            }
            continue
        }
        var ref any
        if tripRef != "" {
            ref = tripRef
        }
        if _, err = tx.ExecContext(ctx, `
            INSERT INTO calendar_days (contractor_id, role, day, status, trip_ref, updated_at)
            VALUES (?, ?, ?, ?, ?, ?)
            ON CONFLICT (contractor_id, role, day) DO UPDATE
            SET status = excluded.status, trip_ref = excluded.trip_ref, updated_at = excluded.updated_at
            WHERE calendar_days.status <> 'locked'
        `, contractorID, string(role), d.String(), string(status), ref, now); err != nil {
            return fmt.Errorf("write %s: %w", d, err)
        }
    }
    return nil
}

func (s *Store) Release(ctx context.Context, tripRef, contractorID string, role domain.Role, dates []civil.Date) ([]civil.Date, error) {
    if strings.TrimSpace(tripRef) == "" {
        return nil, fmt.Errorf("%w: trip ref is required", domain.ErrInvalidRequest)
    }
    var released []civil.Date
    for _, d := range domain.SortDates(dates) {
        res, err := s.db.ExecContext(ctx, `
            DELETE FROM calendar_days
            WHERE contractor_id = ? AND role = ? AND day = ? AND status = 'locked' AND trip_ref = ?
        `, contractorID, string(role), d.String(), tripRef)
        if err != nil {
            return released, fmt.Errorf("release %s: %w", d, err)
        }
        if n, _ := res.RowsAffected(); n > 0 {
            released = append(released, d)
        }
    }
    return released, nil
}

func (s *Store) LocksForTrip(ctx context.Context, tripRef string) ([]domain.CalendarDay, error) {
    rows, err := s.db.QueryContext(ctx, `
        SELECT contractor_id, role, day FROM calendar_days
        WHERE trip_ref = ? AND status = 'locked'
        ORDER BY contractor_id, role, day
    `, tripRef)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []domain.CalendarDay
    for rows.Next() {
        var id, role, rawDay string
        if err := rows.Scan(&id, &role, &rawDay); err != nil {
            return nil, err
        }
        d, err := civil.ParseDate(rawDay)
        if err != nil {
            return nil, fmt.Errorf("%w: stored day %q: %v", domain.ErrInvariantViolation, rawDay, err)
        }
        out = append(out, domain.CalendarDay{ContractorID: id, Role: domain.Role(role), Date: d, Status: domain.StatusLocked, TripRef: tripRef})
    }
    return out, rows.Err()
}

// Candidates reads contractor profiles for role.
func (s *Store) Candidates(ctx context.Context, role domain.Role) ([]domain.ContractorProfile, error) {
    rows, err := s.db.QueryContext(ctx, `
        SELECT email, rating, active, banned, is_new, experience_rung, penalty_points
        FROM contractor_profiles WHERE role = ? ORDER BY email
    `, string(role))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []domain.ContractorProfile
    for rows.Next() {
        p := domain.ContractorProfile{Role: role}
        if err := rows.Scan(&p.Email, &p.Rating, &p.Active, &p.Banned, &p.IsNewContractor, &p.ExperienceRung, &p.PenaltyPoints); err != nil {
            return nil, err
        }
        out = append(out, p)
    }
    return out, rows.Err()
}

// PutProfile upserts a profile. The reputation service owns this table in
// production; this exists for seeding local databases and tests.
func (s *Store) PutProfile(ctx context.Context, p domain.ContractorProfile) error {
    if !p.Role.Valid() {
        return errors.New("profile role is required")
    }
    _, err := s.db.ExecContext(ctx, `
        INSERT INTO contractor_profiles (email, role, rating, active, banned, is_new, experience_rung, penalty_points)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (email, role) DO UPDATE SET
            rating = excluded.rating, active = excluded.active, banned = excluded.banned,
            is_new = excluded.is_new, experience_rung = excluded.experience_rung, penalty_points = excluded.penalty_points
    `, p.Email, string(p.Role), p.Rating, p.Active, p.Banned, p.IsNewContractor, p.ExperienceRung, p.PenaltyPoints)
    return err
}
