package scoring

import (
    "testing"

    "github.com/stretchr/testify/require"

    "tripcrew/internal/domain"
)

var (
    veteran = domain.ContractorProfile{
        Email: "a@example.com", Rating: 4.5, Active: true,
        ExperienceRung: 8, PenaltyPoints: 5,
    }
    newcomer = domain.ContractorProfile{
        Email: "b@example.com", Rating: 3.8, Active: true, IsNewContractor: true,
        ExperienceRung: 2,
    }
)

func TestScoreReferenceValues(t *testing.T) {
    require.Equal(t, 99.0, Score(veteran))
    require.Equal(t, 107.0, Score(newcomer))

    ranked := Rank([]domain.ContractorProfile{veteran, newcomer})
    require.Equal(t, "b@example.com", ranked[0].Profile.Email)
    require.Equal(t, 107.0, ranked[0].Score)
    require.Equal(t, "a@example.com", ranked[1].Profile.Email)
    require.Equal(t, 99.0, ranked[1].Score)
}

func TestScoreTerms(t *testing.T) {
    base := domain.ContractorProfile{ExperienceRung: 10}
    require.Equal(t, 0.0, Score(base))

    p := base
    p.Active = true
    require.Equal(t, 10.0, Score(p))

    p = base
    p.Banned = true
    require.Equal(t, -100.0, Score(p))

    p = base
    p.IsNewContractor = true
    require.Equal(t, 5.0, Score(p))

    p = base
    p.ExperienceRung = 1
    require.Equal(t, 18.0, Score(p))

    p = base
    p.PenaltyPoints = 40
    require.Equal(t, -40.0, Score(p))

    p = base
    p.Rating = 5
    require.Equal(t, 100.0, Score(p))
}

func TestBannedPerfectScoresBelowAverage(t *testing.T) {
    star := domain.ContractorProfile{Email: "star@example.com", Rating: 5, Active: true, Banned: true, ExperienceRung: 1}
    average := domain.ContractorProfile{Email: "avg@example.com", Rating: 3, Active: true, ExperienceRung: 5}
    require.Less(t, Score(star), Score(average))
}

func TestRankTieBreakIsReproducible(t *testing.T) {
    tie := func(email string) domain.ContractorProfile {
        return domain.ContractorProfile{Email: email, Rating: 4, Active: true, ExperienceRung: 5}
    }
    in := []domain.ContractorProfile{tie("zed@example.com"), newcomer, tie("amy@example.com"), veteran, tie("kim@example.com")}
    want := []string{"b@example.com", "amy@example.com", "kim@example.com", "zed@example.com", "a@example.com"}

    for i := 0; i < 5; i++ {
        // rotate the input; the order must not move
        rotated := append(append([]domain.ContractorProfile(nil), in[i:]...), in[:i]...)
        got := Rank(rotated)
        emails := make([]string, len(got))
        for j, r := range got {
            emails[j] = r.Profile.Email
        }
        require.Equal(t, want, emails)
    }
}

func TestRankEmpty(t *testing.T) {
    require.Empty(t, Rank(nil))
}
