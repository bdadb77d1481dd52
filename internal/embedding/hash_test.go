package embedding

import (
	"context"
	"testing"
)

func TestHashEngineDeterministic(t *testing.T) {
	engine := NewHashEngine(32)
	ctx := context.Background()

	a, err := engine.Embed(ctx, "alpha")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := engine.Embed(ctx, "alpha")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if len(a) != 32 {
		t.Fatalf("expected 32 dimensions, got %d", len(a))
	}
	dist, err := EuclideanDistance(a, b)
	if err != nil {
		t.Fatalf("EuclideanDistance: %v", err)
	}
	if dist != 0 {
		t.Errorf("identical texts should embed identically, distance=%v", dist)
	}
}

func TestHashEngineDistinguishesTexts(t *testing.T) {
	engine := NewHashEngine(32)
	ctx := context.Background()

	a, _ := engine.Embed(ctx, "alpha")
	b, _ := engine.Embed(ctx, "beta")

	dist, err := EuclideanDistance(a, b)
	if err != nil {
		t.Fatalf("EuclideanDistance: %v", err)
	}
	if dist == 0 {
		t.Error("different texts collided to identical vectors")
	}
}

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float32
		want    float64
		wantErr bool
	}{
		{name: "Identical", a: []float32{1, 0, 0}, b: []float32{1, 0, 0}, want: 0},
		{name: "UnitApart", a: []float32{0, 0, 0}, b: []float32{1, 0, 0}, want: 1},
		{name: "Pythagorean", a: []float32{0, 0}, b: []float32{3, 4}, want: 5},
		{name: "Mismatch", a: []float32{1, 0}, b: []float32{1, 0, 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EuclideanDistance(tt.a, tt.b)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error for dimension mismatch")
				}
				return
			}
			if err != nil {
				t.Fatalf("EuclideanDistance: %v", err)
			}
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("EuclideanDistance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNearestKOrdersAscendingWithStableTies(t *testing.T) {
	query := []float32{0, 0}
	corpus := [][]float32{
		{3, 4},  // dist 5
		{1, 0},  // dist 1
		{0, 1},  // dist 1, tie with slot 1
		{10, 0}, // dist 10
	}

	got := NearestK(query, corpus, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 neighbors, got %d", len(got))
	}
	if got[0].Index != 1 || got[1].Index != 2 || got[2].Index != 0 {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestNearestKSkipsNilSlots(t *testing.T) {
	query := []float32{0, 0}
	corpus := [][]float32{nil, {1, 0}}

	got := NearestK(query, corpus, 5)
	if len(got) != 1 || got[0].Index != 1 {
		t.Errorf("expected only slot 1, got %+v", got)
	}
}
