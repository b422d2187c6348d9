package assignment

import (
    "context"
    "fmt"

    "tripcrew/internal/domain"
    "tripcrew/internal/ports"
)

// Restrict narrows a provider's pool to the given emails. An empty list
// leaves the pool untouched; a list where no entry is a valid email is a
// caller error.
func Restrict(pool ports.CandidatePoolProvider, emails []string) (ports.CandidatePoolProvider, error) {
    if len(emails) == 0 {
        return pool, nil
    }
    allow := make(map[string]struct{}, len(emails))
    for _, e := range emails {
        if id, err := domain.NormalizeContractorID(e); err == nil {
            allow[id] = struct{}{}
        }
    }
    if len(allow) == 0 {
        return nil, fmt.Errorf("%w: none of %d candidates is a valid email", domain.ErrInvalidRequest, len(emails))
    }
    return restricted{pool: pool, allow: allow}, nil
}

type restricted struct {
    pool  ports.CandidatePoolProvider
    allow map[string]struct{}
}

func (r restricted) Candidates(ctx context.Context, role domain.Role) ([]domain.ContractorProfile, error) {
    all, err := r.pool.Candidates(ctx, role)
    if err != nil {
        return nil, err
    }
    out := all[:0:0]
    for _, p := range all {
        id, err := domain.NormalizeContractorID(p.Email)
        if err != nil {
            continue
        }
        if _, ok := r.allow[id]; ok {
            out = append(out, p)
        }
    }
    return out, nil
}
