package postgres

import (
    "context"

    "github.com/jackc/pgx/v5"

    "tripcrew/internal/domain"
    "tripcrew/internal/ports"
)

var _ ports.CandidatePoolProvider = (*DB)(nil)

// Candidates reads role-scoped profiles from the reputation service's table.
func (db *DB) Candidates(ctx context.Context, role domain.Role) ([]domain.ContractorProfile, error) {
    rows, err := db.Pool.Query(ctx, `
        SELECT email, rating, active, banned, is_new, experience_rung, penalty_points
        FROM contractor_profiles
        WHERE role = $1
        ORDER BY email
    `, string(role))
    if err != nil {
        return nil, err
    }
    return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ContractorProfile, error) {
        p := domain.ContractorProfile{Role: role}
        err := row.Scan(&p.Email, &p.Rating, &p.Active, &p.Banned, &p.IsNewContractor, &p.ExperienceRung, &p.PenaltyPoints)
        return p, err
    })
}
