package memory

import (
	"math"
	"testing"
)

func TestCosineIdentity(t *testing.T) {
	v := []float32{1, 2, 3, 4}
	sim := CosineSimilarity(v, v)
	if math.Abs(float64(sim)-1) > 1e-5 {
		t.Errorf("expected ~1, got %v", sim)
	}
}

func TestCosineSymmetry(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, -1, 2}
	if CosineSimilarity(a, b) != CosineSimilarity(b, a) {
		t.Errorf("cosine not symmetric")
	}
}

func TestCosineOrthogonal(t *testing.T) {
	sim := CosineSimilarity([]float32{1, 0, 0}, []float32{0, 1, 0})
	if sim != 0 {
		t.Errorf("expected 0, got %v", sim)
	}
}

func TestCosineNegativeCollapsesToZero(t *testing.T) {
	sim := CosineSimilarity([]float32{1, 0}, []float32{-1, 0})
	if sim != 0 {
		t.Errorf("expected antipodal vectors to collapse to 0, got %v", sim)
	}
}

func TestCosineLengthMismatch(t *testing.T) {
	if CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}) != 0 {
		t.Error("expected 0 for mismatched lengths")
	}
}

func TestCosineEmpty(t *testing.T) {
	if CosineSimilarity(nil, nil) != 0 {
		t.Error("expected 0 for empty vectors")
	}
}

func TestSerializationRoundTrip(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3.14159, 1e10, -1e-10}
	got := DecodeVector(EncodeVector(v))
	if len(got) != len(v) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("index %d: got %v want %v", i, got[i], v[i])
		}
	}
}

func TestDecodeDiscardsTrailingPartialChunk(t *testing.T) {
	b := EncodeVector([]float32{1, 2})
	b = append(b, 0x01, 0x02) // two stray bytes, not a full chunk
	got := DecodeVector(b)
	if len(got) != 2 {
		t.Fatalf("expected 2 floats, got %d", len(got))
	}
}

func TestFusionMonotonicity(t *testing.T) {
	vector := []ScoredID{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.1}}
	keyword := []ScoredID{{ID: "a", Score: 10}, {ID: "b", Score: 1}}
	out := HybridMerge(vector, keyword, 0.7, 0.3, 10)
	scores := map[string]float32{}
	for _, r := range out {
		scores[r.ID] = r.FinalScore
	}
	if scores["a"] <= scores["b"] {
		t.Errorf("a should dominate b: a=%v b=%v", scores["a"], scores["b"])
	}
}

func TestFusionDegradesToKeywordOnly(t *testing.T) {
	keyword := []ScoredID{{ID: "a", Score: 5}, {ID: "b", Score: 10}}
	out := HybridMerge(nil, keyword, 0.7, 0.3, 10)
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if out[0].ID != "b" {
		t.Errorf("expected b to rank first (higher keyword score), got %s", out[0].ID)
	}
}

func TestFusionLimit(t *testing.T) {
	vector := []ScoredID{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.5}, {ID: "c", Score: 0.1}}
	out := HybridMerge(vector, nil, 1, 0, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
}

func TestFusionEmptyKeywordMaxUsesEpsilonGuard(t *testing.T) {
	keyword := []ScoredID{{ID: "a", Score: 0}}
	out := HybridMerge(nil, keyword, 0, 1, 10)
	if len(out) != 1 || out[0].FinalScore != 0 {
		t.Errorf("expected single zero-score result, got %+v", out)
	}
}
