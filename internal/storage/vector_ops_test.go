package storage

import (
	"math"
	"testing"
)

func TestVectorSerializationRoundTrip(t *testing.T) {
	original := []float32{0.1, -0.5, 3.14159, 0, 1e-7}

	data := SerializeVector(original)
	if len(data) != len(original)*4 {
		t.Fatalf("serialized length = %d, want %d", len(data), len(original)*4)
	}

	restored := DeserializeVector(data)
	if len(restored) != len(original) {
		t.Fatalf("restored length = %d, want %d", len(restored), len(original))
	}
	for i := range original {
		if restored[i] != original[i] {
			t.Errorf("element %d: got %v, want %v", i, restored[i], original[i])
		}
	}
}

func TestDeserializeVectorTruncated(t *testing.T) {
	// Not a multiple of 4 bytes: trailing partial element is dropped.
	data := SerializeVector([]float32{1, 2})
	restored := DeserializeVector(data[:6])
	if len(restored) != 1 {
		t.Errorf("expected 1 element from truncated data, got %d", len(restored))
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"scaled", []float32{2, 0}, []float32{5, 0}, 1.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}
