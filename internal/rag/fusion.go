package rag

import "sort"

// DefaultRRFK is the default rank constant for reciprocal rank fusion.
// Larger values flatten the contribution of top ranks.
const DefaultRRFK = 60

// fuseRRF merges multiple ranked ID lists by reciprocal rank fusion:
// score(id) = Σ over lists of 1/(k + rank), rank 1-based. The returned IDs
// are ordered by fused score descending. Ties break by the best single-list
// rank, then lexically by ID, so fusion is fully deterministic.
func fuseRRF(lists [][]string, k int) []string {
	if k <= 0 {
		k = DefaultRRFK
	}

	type fused struct {
		id       string
		score    float64
		bestRank int
	}

	byID := make(map[string]*fused)
	for _, list := range lists {
		for i, id := range list {
			rank := i + 1
			f, ok := byID[id]
			if !ok {
				f = &fused{id: id, bestRank: rank}
				byID[id] = f
			}
			f.score += 1.0 / float64(k+rank)
			if rank < f.bestRank {
				f.bestRank = rank
			}
		}
	}

	all := make([]*fused, 0, len(byID))
	for _, f := range byID {
		all = append(all, f)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		if all[i].bestRank != all[j].bestRank {
			return all[i].bestRank < all[j].bestRank
		}
		return all[i].id < all[j].id
	})

	out := make([]string, len(all))
	for i, f := range all {
		out[i] = f.id
	}
	return out
}
