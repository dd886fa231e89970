// Package ranking assigns competitive ranks to challenge results.
package ranking

import (
	"sort"

	"github.com/wordforge/challenge-service/internal/domain"
)

// Rank sorts entries by score descending (stable, so equal scores keep
// their incoming order) and assigns competitive ranks: tied players share a
// rank, and the first player with a lower score gets a rank equal to their
// 1-indexed position. Scores [50,50,30] rank as [1,1,3].
func Rank(entries []domain.ScoreEntry) []domain.RankedEntry {
	if len(entries) == 0 {
		return nil
	}

	sorted := make([]domain.ScoreEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	ranked := make([]domain.RankedEntry, len(sorted))
	currentRank := 1
	for i, e := range sorted {
		if i > 0 && e.Score < sorted[i-1].Score {
			currentRank = i + 1
		}
		ranked[i] = domain.RankedEntry{
			PlayerID: e.PlayerID,
			Username: e.Username,
			Score:    e.Score,
			Rank:     currentRank,
		}
	}
	return ranked
}
