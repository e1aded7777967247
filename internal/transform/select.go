package transform

import (
	"github.com/JonMunkholm/tablefix/internal/table"
)

const (
	// CoverageThreshold is the share of in-scope cells a candidate may change
	// before its score is discounted.
	CoverageThreshold = 0.8

	// CoveragePenalty scales the discount applied above the threshold.
	CoveragePenalty = 0.5
)

// ScoredCandidate is a candidate after it was applied.
type ScoredCandidate struct {
	Index int
	Plan  CandidatePlan
	Table table.Table
	Stats ChangeStats
	Score float64
}

// Score rates a candidate by the number of cells it changed in a table of
// rows rows. Candidates that changed nothing score -1. Changing more than
// CoverageThreshold of the in-scope cells is allowed but discounted, since
// an over-broad pattern tends to rewrite everything.
func Score(stats ChangeStats, rows int) float64 {
	u := float64(stats.UpdatedCells)
	if u <= 0 {
		return -1
	}

	inScope := rows * max(1, len(stats.TargetColumns))
	coverage := u / float64(max(1, inScope))
	if coverage <= CoverageThreshold {
		return u
	}
	return u - (coverage-CoverageThreshold)*CoveragePenalty*u
}

// Select returns the highest-scoring candidate that changed at least one
// cell. Equal scores go to the candidate that appears first.
func Select(candidates []ScoredCandidate) (ScoredCandidate, error) {
	best := -1
	for i, c := range candidates {
		if c.Stats.UpdatedCells <= 0 {
			continue
		}
		if best < 0 || c.Score > candidates[best].Score {
			best = i
		}
	}
	if best < 0 {
		return ScoredCandidate{}, ErrNoViableCandidate
	}
	return candidates[best], nil
}
