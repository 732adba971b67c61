package embedding

import (
	"math"
	"testing"
)

func TestPool_Mean(t *testing.T) {
	hidden := [][]float32{{1, 1}, {3, 5}, {100, 100}}
	mask := []int64{1, 1, 0}
	got := Pool(hidden, mask, 2, PoolingMean)
	if got[0] != 2 || got[1] != 3 {
		t.Errorf("mean pool = %v, want [2 3]", got)
	}
}

func TestPool_CLS(t *testing.T) {
	hidden := [][]float32{{7, 8}, {1, 1}}
	got := Pool(hidden, []int64{1, 1}, 2, PoolingCLS)
	if got[0] != 7 || got[1] != 8 {
		t.Errorf("cls pool = %v", got)
	}
	got[0] = 0
	if hidden[0][0] != 7 {
		t.Error("cls pool must copy the state")
	}
}

func TestPool_NoActivePositions(t *testing.T) {
	got := Pool([][]float32{{1}}, []int64{0}, 3, PoolingMean)
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	for _, v := range got {
		if v != 0 {
			t.Errorf("expected zero vector, got %v", got)
		}
	}
}

func TestCosine(t *testing.T) {
	if c := Cosine([]float32{1, 0}, []float32{1, 0}); math.Abs(c-1) > 1e-9 {
		t.Errorf("identical = %f", c)
	}
	if c := Cosine([]float32{1, 0}, []float32{0, 1}); c != 0 {
		t.Errorf("orthogonal = %f", c)
	}
	if c := Cosine([]float32{0, 0}, []float32{1, 0}); c != 0 {
		t.Errorf("zero = %f", c)
	}
}
