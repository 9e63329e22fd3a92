package vexora

import "sort"

// FuseRelative merges vector and keyword search results using relative-score
// fusion: each list's scores are min-max normalized to [0, 1], then blended
// as alpha*vector + (1-alpha)*keyword. A chunk appearing in only one list
// contributes 0 for the missing signal. Results are sorted by fused score
// descending.
//
// Relative-score fusion is preferred over rank fusion here because keyword
// ranks are unstable on short non-English queries; normalized scores keep
// the alpha blend meaningful across both signals.
func FuseRelative(vector, keyword []ScoredChunk, alpha float32) []ScoredChunk {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	vecNorm := normalizeScores(vector)
	kwNorm := normalizeScores(keyword)

	type entry struct {
		chunk Chunk
		score float32
	}
	merged := make(map[string]*entry, len(vector)+len(keyword))
	order := make([]string, 0, len(vector)+len(keyword))

	for i, sc := range vector {
		e, ok := merged[sc.ID]
		if !ok {
			e = &entry{chunk: sc.Chunk}
			merged[sc.ID] = e
			order = append(order, sc.ID)
		}
		e.score += alpha * vecNorm[i]
	}
	for i, sc := range keyword {
		e, ok := merged[sc.ID]
		if !ok {
			e = &entry{chunk: sc.Chunk}
			merged[sc.ID] = e
			order = append(order, sc.ID)
		}
		e.score += (1 - alpha) * kwNorm[i]
	}

	results := make([]ScoredChunk, 0, len(merged))
	for _, id := range order {
		e := merged[id]
		results = append(results, ScoredChunk{Chunk: e.chunk, Score: e.score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// normalizeScores min-max normalizes a result list's scores to [0, 1].
// A single-element or constant-score list normalizes to all 1s.
func normalizeScores(results []ScoredChunk) []float32 {
	if len(results) == 0 {
		return nil
	}
	lo, hi := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < lo {
			lo = r.Score
		}
		if r.Score > hi {
			hi = r.Score
		}
	}
	norm := make([]float32, len(results))
	if hi == lo {
		for i := range norm {
			norm[i] = 1
		}
		return norm
	}
	for i, r := range results {
		norm[i] = (r.Score - lo) / (hi - lo)
	}
	return norm
}
