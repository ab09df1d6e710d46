package searcher

// Per-leg raw-score floors applied before min-max scaling: cosine similarity
// for the vector leg, reciprocal rank for the lexical leg. The two raw scales
// have different noise characteristics, hence the different defaults.
const (
	DefaultVectorFloor  = 0.3
	DefaultKeywordFloor = 0.1
)

type legEntry struct {
	ChangeID string
	Raw      float64
	Norm     float64
	Rank     int // 1-based position within the leg
}

// normalizeLeg drops entries whose raw score falls below floor, then min-max
// scales the survivors into [0,1]. The floor gates on the raw scale because
// after scaling the minimum always lands on exactly 0, and a positive
// post-scaling floor would discard each leg's minimum entry regardless of its
// raw quality. When every surviving raw score is identical all entries
// normalize to 1.0 rather than 0, so a uniform leg is not discarded. Input
// order (the leg's ranking) is preserved and ranks are reassigned after the
// drop.
func normalizeLeg(entries []legEntry, floor float64) []legEntry {
	kept := entries[:0]
	for _, e := range entries {
		if e.Raw < floor {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		return kept
	}

	min, max := kept[0].Raw, kept[0].Raw
	for _, e := range kept[1:] {
		if e.Raw < min {
			min = e.Raw
		}
		if e.Raw > max {
			max = e.Raw
		}
	}
	span := max - min
	for i := range kept {
		if span == 0 {
			kept[i].Norm = 1.0
		} else {
			kept[i].Norm = (kept[i].Raw - min) / span
		}
		kept[i].Rank = i + 1
	}
	return kept
}
