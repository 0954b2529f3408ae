package scorer

import (
	"context"
	"math"
	"testing"
)

func TestNewLogisticModelValidation(t *testing.T) {
	tests := []struct {
		name    string
		order   []string
		weights map[string]float64
	}{
		{"empty order", nil, map[string]float64{}},
		{"missing weight", []string{"a", "b"}, map[string]float64{"a": 1}},
		{"extra weight", []string{"a"}, map[string]float64{"a": 1, "b": 2}},
		{"wrong name", []string{"a"}, map[string]float64{"b": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLogisticModel(tt.order, tt.weights, 0, "v1"); err == nil {
				t.Fatal("expected construction error")
			}
		})
	}
}

func TestLogisticModelScore(t *testing.T) {
	model, err := NewLogisticModel(
		[]string{"a", "b"},
		map[string]float64{"a": 1.0, "b": 2.0},
		-1.0,
		"v1",
	)
	if err != nil {
		t.Fatalf("NewLogisticModel failed: %v", err)
	}

	// z = 1*1 + 2*0.5 - 1 = 1; sigmoid(1) ~ 0.7311
	got, err := model.Score(context.Background(), []float64{1.0, 0.5})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	want := 1.0 / (1.0 + math.Exp(-1.0))
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Score = %g, want %g", got, want)
	}
}

func TestLogisticModelScoreIsDeterministic(t *testing.T) {
	model, err := NewLogisticModel(
		[]string{"a", "b", "c"},
		map[string]float64{"a": 0.3, "b": -0.7, "c": 1.2},
		0.1,
		"v1",
	)
	if err != nil {
		t.Fatalf("NewLogisticModel failed: %v", err)
	}

	features := []float64{2, 3, 0.5}
	first, err := model.Score(context.Background(), features)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := model.Score(context.Background(), features)
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if again != first {
			t.Fatalf("score changed between identical calls: %g vs %g", first, again)
		}
	}
}

func TestLogisticModelScoreInUnitInterval(t *testing.T) {
	model, err := NewLogisticModel(
		[]string{"x"},
		map[string]float64{"x": 100},
		0,
		"v1",
	)
	if err != nil {
		t.Fatalf("NewLogisticModel failed: %v", err)
	}

	for _, x := range []float64{-1000, -1, 0, 1, 1000} {
		p, err := model.Score(context.Background(), []float64{x})
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if p < 0 || p > 1 {
			t.Errorf("Score(%g) = %g, outside [0, 1]", x, p)
		}
	}
}

func TestLogisticModelRejectsWrongVectorLength(t *testing.T) {
	model, err := NewLogisticModel(
		[]string{"a", "b"},
		map[string]float64{"a": 1, "b": 1},
		0,
		"v1",
	)
	if err != nil {
		t.Fatalf("NewLogisticModel failed: %v", err)
	}

	if _, err := model.Score(context.Background(), []float64{1}); err == nil {
		t.Error("short vector should fail")
	}
	if _, err := model.Score(context.Background(), []float64{1, 2, 3}); err == nil {
		t.Error("long vector should fail")
	}
}
