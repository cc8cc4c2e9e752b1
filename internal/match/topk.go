// Package match implements daily match selection: pairwise scoring via the
// astro service, diversified top-k picks, and accept/pass handling with
// mutual-accept connection creation.
package match

import (
	"sort"

	"github.com/synastry-app/synastry-api/internal/model"
	"github.com/synastry-app/synastry-api/pkg/astro"
)

// Scored pairs a candidate user with their pairwise score result.
type Scored struct {
	MatchedUserID string
	Result        astro.MatchResult
}

// DefaultTopK is the number of daily picks per user when no override is set.
const DefaultTopK = 3

// passOneOrder fixes which match-type bucket gets picked first. Complementary
// leads, tension second, similar last.
var passOneOrder = []model.MatchType{model.MatchComplementary, model.MatchTension, model.MatchSimilar}

// SelectTop picks up to k candidates, diversified by match type.
//
// Pass 1 walks the buckets in fixed order and takes the best unused candidate
// from each, guaranteeing at most one pick per match type. Pass 2 fills the
// remainder from the global pool by descending total score. Sorting is
// stable, so ties keep first-seen order and the selection is reproducible.
func SelectTop(scored []Scored, k int) []Scored {
	if k <= 0 {
		k = DefaultTopK
	}

	buckets := make(map[model.MatchType][]Scored, len(passOneOrder))
	for _, s := range scored {
		mt := model.MatchType(s.Result.MatchType)
		buckets[mt] = append(buckets[mt], s)
	}
	for mt := range buckets {
		sortByScoreDesc(buckets[mt])
	}

	used := make(map[string]bool, k)
	var picks []Scored

	for _, mt := range passOneOrder {
		if len(picks) >= k {
			break
		}
		for _, s := range buckets[mt] {
			if !used[s.MatchedUserID] {
				picks = append(picks, s)
				used[s.MatchedUserID] = true
				break
			}
		}
	}

	if len(picks) < k {
		pool := make([]Scored, len(scored))
		copy(pool, scored)
		sortByScoreDesc(pool)
		for _, s := range pool {
			if len(picks) >= k {
				break
			}
			if !used[s.MatchedUserID] {
				picks = append(picks, s)
				used[s.MatchedUserID] = true
			}
		}
	}

	if len(picks) > k {
		picks = picks[:k]
	}
	return picks
}

func sortByScoreDesc(s []Scored) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Result.TotalScore > s[j].Result.TotalScore
	})
}
