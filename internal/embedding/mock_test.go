package embedding

import (
	"context"
	"math"
	"testing"
)

func TestMockClient_Deterministic(t *testing.T) {
	c := NewMockClient(64)

	a, err := c.Embed(context.Background(), "pcb layout")
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Embed(context.Background(), "pcb layout")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 64 {
		t.Fatalf("expected dimension 64, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same text embedded differently at %d: %v vs %v", i, a[i], b[i])
		}
	}

	other, err := c.Embed(context.Background(), "industrial design")
	if err != nil {
		t.Fatal(err)
	}
	same := true
	for i := range a {
		if a[i] != other[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts should embed differently")
	}
}

func TestMockClient_UnitNorm(t *testing.T) {
	c := NewMockClient(32)
	vec, err := c.Embed(context.Background(), "sensor fusion")
	if err != nil {
		t.Fatal(err)
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-3 {
		t.Errorf("expected unit norm, got %f", math.Sqrt(norm))
	}
}
