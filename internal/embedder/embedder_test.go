package embedder

import (
	"testing"
)

func TestComputeHash(t *testing.T) {
	if got := ComputeHash(""); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("ComputeHash(\"\") = %v", got)
	}
	if ComputeHash("test") != ComputeHash("test") {
		t.Error("ComputeHash not consistent")
	}
	if ComputeHash("a") == ComputeHash("b") {
		t.Error("distinct inputs produced the same hash")
	}
}

func TestValidateRequest(t *testing.T) {
	if err := ValidateRequest(EmbeddingRequest{Text: "some text"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateRequest(EmbeddingRequest{}); err != ErrEmptyText {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestValidateBatchRequest(t *testing.T) {
	if err := ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", "b"}}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateBatchRequest(BatchEmbeddingRequest{}); err == nil {
		t.Error("expected error for empty batch")
	}
	if err := ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", ""}}); err == nil {
		t.Error("expected error for empty text in batch")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache := NewCache(10)
	emb := &Embedding{
		Vector:    []float32{1, 2, 3},
		Dimension: 3,
		Provider:  "test",
		Model:     "test-model",
		Hash:      "h1",
	}
	cache.Set("h1", emb)

	got, ok := cache.Get("h1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Dimension != 3 || got.Vector[0] != 1 {
		t.Errorf("unexpected cached value: %+v", got)
	}

	// The cache returns a copy; mutating it must not poison the cache.
	got.Vector[0] = 99
	again, _ := cache.Get("h1")
	if again.Vector[0] != 1 {
		t.Error("cache entry was mutated through a returned copy")
	}
}

func TestCacheMiss(t *testing.T) {
	cache := NewCache(10)
	if _, ok := cache.Get("nope"); ok {
		t.Error("expected cache miss")
	}
}

func TestCacheEviction(t *testing.T) {
	cache := NewCache(2)
	for _, h := range []string{"a", "b", "c"} {
		cache.Set(h, &Embedding{Hash: h})
	}
	if cache.Size() != 2 {
		t.Errorf("expected size 2, got %d", cache.Size())
	}
	// Oldest entry was evicted.
	if _, ok := cache.Get("a"); ok {
		t.Error("expected oldest entry to be evicted")
	}
}
