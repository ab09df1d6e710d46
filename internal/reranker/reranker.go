package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	// DocumentCharBudget caps the serialized candidate text sent to the
	// scorer, respecting the cross-encoder's input limits.
	DocumentCharBudget = 500

	// DefaultModel is the cross-encoder model requested when none is configured.
	DefaultModel = "jina-reranker-v2-base-multilingual"

	// DefaultEndpoint is the scoring endpoint used when none is configured.
	DefaultEndpoint = "https://api.jina.ai/v1/rerank/score"

	requestTimeout = 15 * time.Second
)

// Document is one fused candidate handed to the reranker.
type Document struct {
	ID            string
	Text          string
	OriginalScore float64 // pre-rerank fusion score, the fallback
}

// ScoredDocument is a candidate after reranking. Reranked is false when the
// score fell back to OriginalScore.
type ScoredDocument struct {
	ID            string
	Score         float64
	OriginalScore float64
	Reranked      bool
}

// Reranker applies a pairwise cross-encoder relevance call to a candidate
// slice. It is disabled until explicitly enabled and configured with a
// credential; in every failure mode a document falls back to its fusion
// score rather than being dropped.
type Reranker struct {
	enabled  bool
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
}

// Config holds reranker configuration.
type Config struct {
	Enabled  bool
	APIKey   string
	Endpoint string
	Model    string
}

// New creates a reranker in the disabled state unless cfg enables it.
func New(cfg Config) *Reranker {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Reranker{
		enabled:  cfg.Enabled,
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: requestTimeout},
	}
}

// Configure attaches a credential, moving enabled-unconfigured to
// enabled-configured.
func (r *Reranker) Configure(apiKey string) {
	r.apiKey = apiKey
}

// SetEnabled toggles the reranking stage.
func (r *Reranker) SetEnabled(enabled bool) {
	r.enabled = enabled
}

// IsEnabled reports whether reranking will actually run: the stage must be
// enabled and carry a credential.
func (r *Reranker) IsEnabled() bool {
	return r != nil && r.enabled && r.apiKey != ""
}

// Rerank scores each document against the query and returns the slice
// resorted by effective score, truncated to topK. Documents are scored
// sequentially; any per-document failure falls back to that document's
// original score. Rerank itself never fails.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []Document, topK int) []ScoredDocument {
	scored := make([]ScoredDocument, len(docs))

	for i, doc := range docs {
		scored[i] = ScoredDocument{
			ID:            doc.ID,
			Score:         doc.OriginalScore,
			OriginalScore: doc.OriginalScore,
		}
		if !r.IsEnabled() {
			continue
		}

		score, err := r.scoreDocument(ctx, query, truncate(doc.Text, DocumentCharBudget))
		if err != nil {
			log.Printf("reranker: falling back to fusion score for %s: %v", doc.ID, err)
			continue
		}
		scored[i].Score = score
		scored[i].Reranked = true
	}

	// Stable resort by effective score keeps the fusion order for ties
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK > 0 && topK < len(scored) {
		scored = scored[:topK]
	}
	return scored
}

type scoreRequest struct {
	Model string `json:"model"`
	Query string `json:"query"`
	Text  string `json:"text"`
}

// labelScore is one entry of a classification-style response.
type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// scoreDocument issues one pairwise scoring call. Two response shapes are
// tolerated: a bare numeric score, or a classification-label array from
// which the positive/entailment label's score is extracted.
func (r *Reranker) scoreDocument(ctx context.Context, query, text string) (float64, error) {
	body, err := json.Marshal(scoreRequest{
		Model: r.model,
		Query: query,
		Text:  text,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("score call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("score api error %d: %s", resp.StatusCode, string(respBody))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}

	return parseScore(payload)
}

// parseScore extracts a relevance score from a scorer response.
func parseScore(payload []byte) (float64, error) {
	// Shape 1: bare numeric score
	var bare float64
	if err := json.Unmarshal(payload, &bare); err == nil {
		return bare, nil
	}

	// Shape 2: classification label array, possibly nested one level
	var labels []labelScore
	if err := json.Unmarshal(payload, &labels); err != nil {
		var nested [][]labelScore
		if err := json.Unmarshal(payload, &nested); err == nil && len(nested) > 0 {
			labels = nested[0]
		}
	}
	for _, ls := range labels {
		switch strings.ToLower(ls.Label) {
		case "positive", "entailment", "label_1":
			return ls.Score, nil
		}
	}

	return 0, fmt.Errorf("unrecognized scorer response: %s", truncate(string(payload), 120))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
