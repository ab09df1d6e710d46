package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/edittrail/edittrail/pkg/types"
)

// searchVector performs nearest-neighbor search using cosine similarity
func searchVector(ctx context.Context, db *sql.DB, queryVector []float32, topK int, filters *types.Filters) ([]VectorResult, error) {
	// Use optimized SQL-based search when sqlite-vec is available
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, db, queryVector, topK, filters)
	}
	// Fall back to Go-based computation for purego builds
	return searchVectorFallback(ctx, db, queryVector, topK, filters)
}

// searchVectorOptimized uses the sqlite-vec extension to compute distances at
// the database layer. vec_distance_cosine returns distance (lower is better);
// similarity is 1 - distance.
func searchVectorOptimized(ctx context.Context, db *sql.DB, queryVector []float32, topK int, filters *types.Filters) ([]VectorResult, error) {
	if topK <= 0 {
		return []VectorResult{}, nil
	}

	queryVectorBlob := serializeVector(queryVector)

	query := `
		SELECT
			e.id,
			e.change_id,
			vec_distance_cosine(e.vector, ?) as distance
		FROM change_embeddings e
		INNER JOIN changes c ON e.change_id = c.id
		WHERE 1=1
	`
	args := []interface{}{queryVectorBlob}
	query, args = applyChangeFilters(query, args, filters, "c")

	query += " ORDER BY distance ASC LIMIT ?"
	args = append(args, topK)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, topK)
	for rows.Next() {
		var r VectorResult
		if err := rows.Scan(&r.ID, &r.ChangeID, &r.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Score = 1.0 - r.Distance
		results = append(results, r)
	}
	return results, rows.Err()
}

// searchVectorFallback computes cosine similarity in Go. Used when the
// sqlite-vec extension is not available (purego builds).
func searchVectorFallback(ctx context.Context, db *sql.DB, queryVector []float32, topK int, filters *types.Filters) ([]VectorResult, error) {
	query := `
		SELECT
			e.id,
			e.change_id,
			e.vector
		FROM change_embeddings e
		INNER JOIN changes c ON e.change_id = c.id
		WHERE 1=1
	`
	args := []interface{}{}
	query, args = applyChangeFilters(query, args, filters, "c")

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]VectorResult, 0, 1000)
	for rows.Next() {
		var id, changeID string
		var vectorBlob []byte
		if err := rows.Scan(&id, &changeID, &vectorBlob); err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}

		similarity := cosineSimilarity(queryVector, vector)
		candidates = append(candidates, VectorResult{
			ID:       id,
			ChangeID: changeID,
			Score:    similarity,
			Distance: 1.0 - similarity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}
	return candidates[:topK], nil
}

// applyChangeFilters adds WHERE clause conditions shared by the vector and
// metadata scans. prefix names the changes table alias ("" for unaliased).
func applyChangeFilters(query string, args []interface{}, filters *types.Filters, prefix string) (string, []interface{}) {
	if filters == nil {
		return query, args
	}
	col := func(name string) string {
		if prefix == "" {
			return name
		}
		return prefix + "." + name
	}

	if filters.WorkspaceID != "" {
		query += " AND " + col("workspace_id") + " = ?"
		args = append(args, filters.WorkspaceID)
	}

	if filters.TimeRange != nil {
		query += " AND " + col("ts") + " >= ? AND " + col("ts") + " < ?"
		args = append(args, filters.TimeRange.Start, filters.TimeRange.End)
	}

	if len(filters.FilePatterns) > 0 {
		query += " AND ("
		for i, pattern := range filters.FilePatterns {
			if i > 0 {
				query += " OR "
			}
			query += col("file_path") + " GLOB ?"
			args = append(args, pattern)
		}
		query += ")"
	}

	if len(filters.EventKinds) > 0 {
		query += " AND " + col("kind") + " IN ("
		for i, kind := range filters.EventKinds {
			if i > 0 {
				query += ","
			}
			query += "?"
			args = append(args, string(kind))
		}
		query += ")"
	}

	return query, args
}

// prefixColumns qualifies each column in a comma-separated list with a table
// alias, for joined queries.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// quoteFTSTerm wraps a term in double quotes for exact FTS5 matching,
// escaping embedded quotes.
func quoteFTSTerm(term string) string {
	return `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SerializeVector is an exported helper for ingestion and testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
