// Package fusion merges ranked retrieval lists with Reciprocal Rank Fusion.
package fusion

import (
	"sort"

	"github.com/trafficlawvn/lawqa/engine/domain"
)

// DefaultK is the standard RRF smoothing constant.
const DefaultK = 60

// Options configures fusion.
type Options struct {
	// K dampens the contribution of lower ranks. Zero means DefaultK.
	K int
}

type entry struct {
	row     domain.ViolationRow
	score   float64
	semRank int
}

// Fuse combines the semantic and lexical lists. Each appearance of an ID at
// rank r contributes 1/(k+r+1) to its fused score, so items present in both
// lists accumulate from each. Ties break toward the better semantic rank,
// then by ID for determinism. The returned rows carry the fused score.
func Fuse(semantic, lexical []domain.ViolationRow, opts Options) []domain.ViolationRow {
	k := opts.K
	if k <= 0 {
		k = DefaultK
	}

	const unranked = 1 << 30
	entries := make(map[string]*entry)

	for rank, row := range semantic {
		e, ok := entries[row.ID]
		if !ok {
			e = &entry{row: row, semRank: rank}
			entries[row.ID] = e
		}
		e.score += 1 / float64(k+rank+1)
	}
	for rank, row := range lexical {
		e, ok := entries[row.ID]
		if !ok {
			e = &entry{row: row, semRank: unranked}
			entries[row.ID] = e
		}
		e.score += 1 / float64(k+rank+1)
	}

	fused := make([]*entry, 0, len(entries))
	for _, e := range entries {
		fused = append(fused, e)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		if fused[i].semRank != fused[j].semRank {
			return fused[i].semRank < fused[j].semRank
		}
		return fused[i].row.ID < fused[j].row.ID
	})

	out := make([]domain.ViolationRow, 0, len(fused))
	for _, e := range fused {
		row := e.row
		row.Score = e.score
		out = append(out, row)
	}
	return out
}

// Top truncates a fused list. Fusion always runs over the full candidate
// sets; truncation happens only afterwards.
func Top(rows []domain.ViolationRow, n int) []domain.ViolationRow {
	if n <= 0 || n >= len(rows) {
		return rows
	}
	return rows[:n]
}
