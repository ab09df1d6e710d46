// Package searcher implements hybrid retrieval over recorded edit history.
//
// A query flows through five stages: enrichment (implicit time and file
// filters parsed out of the text), two concurrent retrieval legs (embedding
// similarity and full-text match), per-leg min-max normalization with a
// relevance floor, weighted reciprocal rank fusion with an agreement bonus
// for candidates both legs found, and an optional cross-encoder rerank of
// the fused head. Either leg may fail without failing the query.
//
// The package also hosts the non-ranked read paths that share the same
// store: file and symbol timelines, nearest-neighbor lookup from a stored
// embedding, and bounded pattern aggregation.
package searcher
