package memory

import (
    "context"
    "sort"

    "github.com/puzpuzpuz/xsync/v4"

    "tripcrew/internal/domain"
    "tripcrew/internal/ports"
)

var _ ports.CandidatePoolProvider = (*Profiles)(nil)

// Profiles is a read-mostly profile directory, seeded by tests and local runs.
type Profiles struct {
    byKey *xsync.Map[ownerKey, domain.ContractorProfile]
}

func NewProfiles(profiles ...domain.ContractorProfile) *Profiles {
    p := &Profiles{byKey: xsync.NewMap[ownerKey, domain.ContractorProfile]()}
    for _, prof := range profiles {
        p.Put(prof)
    }
    return p
}

func (p *Profiles) Put(prof domain.ContractorProfile) {
    p.byKey.Store(ownerKey{contractorID: prof.Email, role: prof.Role}, prof)
}

func (p *Profiles) Candidates(ctx context.Context, role domain.Role) ([]domain.ContractorProfile, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    var out []domain.ContractorProfile
    p.byKey.Range(func(k ownerKey, prof domain.ContractorProfile) bool {
        if k.role == role {
            out = append(out, prof)
        }
        return true
    })
    sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
    return out, nil
}
