// Package reranker refines the top slice of fused search candidates with a
// cross-encoder scoring call, one HTTP request per (query, document) pair.
// It is an optional stage: disabled by default, and a failed or unparseable
// scoring call demotes that single document to its pre-rerank fusion score
// instead of failing the query.
package reranker
