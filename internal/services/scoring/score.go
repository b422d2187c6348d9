// Package scoring ranks contractors by reputation. Everything here is pure.
package scoring

import (
    "sort"

    "tripcrew/internal/domain"
)

// Weights are carried over unchanged from the legacy ranking. They are ad hoc
// rather than fitted; changing any of them reorders existing assignments.
const (
    ratingWeight  = 20.0
    activeBonus   = 10.0
    bannedPenalty = 100.0
    newcomerBonus = 5.0
    rungCeiling   = 10
    rungWeight    = 2.0
)

// Score maps a profile to a comparable rank. Higher is better.
func Score(p domain.ContractorProfile) float64 {
    s := p.Rating * ratingWeight
    if p.Active {
        s += activeBonus
    }
    if p.Banned {
        s -= bannedPenalty
    }
    if p.IsNewContractor {
        s += newcomerBonus
    }
    s += float64(rungCeiling-p.ExperienceRung) * rungWeight
    s -= float64(p.PenaltyPoints)
    return s
}

type Ranked struct {
    Profile domain.ContractorProfile
    Score   float64
}

// Rank orders profiles by score, highest first; equal scores order by email
// so the result never depends on input order.
func Rank(profiles []domain.ContractorProfile) []Ranked {
    out := make([]Ranked, len(profiles))
    for i, p := range profiles {
        out[i] = Ranked{Profile: p, Score: Score(p)}
    }
    sort.Slice(out, func(i, j int) bool {
        if out[i].Score != out[j].Score {
            return out[i].Score > out[j].Score
        }
        return out[i].Profile.Email < out[j].Profile.Email
    })
    return out
}
