package grading

import (
	"errors"
	"math"
	"testing"
)

func TestNewScaleRejectsBadConfigurations(t *testing.T) {
	tests := []struct {
		name  string
		bands []Band
	}{
		{
			name:  "Single band",
			bands: []Band{{Letter: "A", Bound: math.Inf(1), ScoreLo: 0, ScoreHi: 100}},
		},
		{
			name: "Bounded worst band",
			bands: []Band{
				{Letter: "A", Bound: 0.1, ScoreLo: 95, ScoreHi: 100},
				{Letter: "F", Bound: 2.0, ScoreLo: 0, ScoreHi: 94},
			},
		},
		{
			name: "Non-monotonic bounds",
			bands: []Band{
				{Letter: "A", Bound: 1.0, ScoreLo: 95, ScoreHi: 100},
				{Letter: "B", Bound: 0.5, ScoreLo: 85, ScoreHi: 94},
				{Letter: "F", Bound: math.Inf(1), ScoreLo: 0, ScoreHi: 84},
			},
		},
		{
			name: "Unbounded band before the last",
			bands: []Band{
				{Letter: "A", Bound: math.Inf(1), ScoreLo: 95, ScoreHi: 100},
				{Letter: "F", Bound: math.Inf(1), ScoreLo: 0, ScoreHi: 94},
			},
		},
		{
			name: "Zero bound",
			bands: []Band{
				{Letter: "A", Bound: 0, ScoreLo: 95, ScoreHi: 100},
				{Letter: "F", Bound: math.Inf(1), ScoreLo: 0, ScoreHi: 94},
			},
		},
		{
			name: "NaN bound",
			bands: []Band{
				{Letter: "A", Bound: math.NaN(), ScoreLo: 95, ScoreHi: 100},
				{Letter: "F", Bound: math.Inf(1), ScoreLo: 0, ScoreHi: 94},
			},
		},
		{
			name: "Overlapping score ranges",
			bands: []Band{
				{Letter: "A", Bound: 0.1, ScoreLo: 90, ScoreHi: 100},
				{Letter: "F", Bound: math.Inf(1), ScoreLo: 0, ScoreHi: 95},
			},
		},
		{
			name: "Missing letter",
			bands: []Band{
				{Letter: "", Bound: 0.1, ScoreLo: 95, ScoreHi: 100},
				{Letter: "F", Bound: math.Inf(1), ScoreLo: 0, ScoreHi: 94},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewScale(tc.bands); !errors.Is(err, ErrInvalidScale) {
				t.Errorf("NewScale error = %v, want ErrInvalidScale", err)
			}
		})
	}
}

func TestNewClassifierRejectsZeroScale(t *testing.T) {
	if _, err := NewClassifier(Scale{}, nopLogger{}); !errors.Is(err, ErrInvalidScale) {
		t.Errorf("NewClassifier(Scale{}) error = %v, want ErrInvalidScale", err)
	}
}

func TestScaleFromBounds(t *testing.T) {
	scale, err := ScaleFromBounds(map[string]float64{
		"A": 0.2,
		"B": 0.8,
		"C": 1.5,
		"D": 3.0,
		"F": math.Inf(1),
	})
	if err != nil {
		t.Fatalf("ScaleFromBounds: %v", err)
	}
	bands := scale.Bands()
	want := []string{"A", "B", "C", "D", "F"}
	for i, letter := range want {
		if bands[i].Letter != letter {
			t.Errorf("band %d = %s, want %s", i, bands[i].Letter, letter)
		}
	}
	if bands[0].Bound != 0.2 {
		t.Errorf("A bound = %v, want 0.2", bands[0].Bound)
	}
}

func TestScaleFromBoundsRejectsBoundedTail(t *testing.T) {
	_, err := ScaleFromBounds(map[string]float64{"A": 0.1, "F": 5.0})
	if !errors.Is(err, ErrInvalidScale) {
		t.Errorf("error = %v, want ErrInvalidScale", err)
	}
}

func TestScaleFromBoundsRejectsUnknownLetter(t *testing.T) {
	_, err := ScaleFromBounds(map[string]float64{"A": 0.1, "Z": math.Inf(1)})
	if !errors.Is(err, ErrInvalidScale) {
		t.Errorf("error = %v, want ErrInvalidScale", err)
	}
}

func TestBandsReturnsCopy(t *testing.T) {
	scale := DefaultScale()
	bands := scale.Bands()
	bands[0].Bound = 99
	if scale.Bands()[0].Bound == 99 {
		t.Error("mutating the returned bands changed the scale")
	}
}
