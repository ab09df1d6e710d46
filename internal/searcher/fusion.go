package searcher

import (
	"sort"

	"github.com/edittrail/edittrail/pkg/types"
)

// RRFConstant dampens the rank denominator so the gap between rank 1 and
// rank 2 does not dwarf everything below.
const RRFConstant = 60.0

// overlapBonusWeight scales the multiplicative boost for candidates that
// appear in both legs.
const overlapBonusWeight = 0.2

type candidate struct {
	ChangeID     string
	VectorRank   int // 0 means absent from the leg
	LexicalRank  int
	VectorScore  float64 // normalized
	LexicalScore float64
	FusionScore  float64
}

// fuseRankings merges the two normalized legs with weighted reciprocal rank
// fusion. Each leg contributes weight/(k+rank); candidates present in both
// legs additionally receive an agreement bonus proportional to the product of
// their normalized scores, capped so the multiplier never exceeds
// 1+overlapBonusWeight. The result is sorted by fused score descending with a
// stable sort, so equal scores keep vector-leg-first insertion order.
func fuseRankings(vec, lex []legEntry, params types.HybridParams) []candidate {
	byID := make(map[string]*candidate, len(vec)+len(lex))
	order := make([]*candidate, 0, len(vec)+len(lex))

	for _, e := range vec {
		c := &candidate{ChangeID: e.ChangeID, VectorRank: e.Rank, VectorScore: e.Norm}
		c.FusionScore = params.VectorWeight / (RRFConstant + float64(e.Rank))
		byID[e.ChangeID] = c
		order = append(order, c)
	}
	for _, e := range lex {
		c, ok := byID[e.ChangeID]
		if !ok {
			c = &candidate{ChangeID: e.ChangeID}
			byID[e.ChangeID] = c
			order = append(order, c)
		}
		c.LexicalRank = e.Rank
		c.LexicalScore = e.Norm
		c.FusionScore += params.KeywordWeight / (RRFConstant + float64(e.Rank))
	}

	for _, c := range order {
		if c.VectorRank > 0 && c.LexicalRank > 0 {
			agreement := c.VectorScore * c.LexicalScore
			if agreement > 1 {
				agreement = 1
			}
			c.FusionScore *= 1 + overlapBonusWeight*agreement
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].FusionScore > order[j].FusionScore
	})

	out := make([]candidate, len(order))
	for i, c := range order {
		out[i] = *c
	}
	return out
}
