package grading

import (
	"context"
	"errors"
	"math"
	"testing"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Close() error                 { return nil }

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultScale(), nopLogger{})
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

func TestClassifyLetters(t *testing.T) {
	tests := []struct {
		name      string
		deviation float64
		letter    string
	}{
		{name: "Perfect model", deviation: 0.0, letter: "A"},
		{name: "Middle of A band", deviation: 0.05, letter: "A"},
		{name: "Exactly on A bound", deviation: 0.1, letter: "A"},
		{name: "Just past A bound", deviation: 0.10000001, letter: "B"},
		{name: "Exactly on B bound", deviation: 0.5, letter: "B"},
		{name: "Middle of C band", deviation: 0.75, letter: "C"},
		{name: "Exactly on D bound", deviation: 2.0, letter: "D"},
		{name: "Just past D bound", deviation: 2.0001, letter: "F"},
		{name: "Large deviation", deviation: 5.0, letter: "F"},
		{name: "Huge deviation", deviation: 1e9, letter: "F"},
	}

	c := newTestClassifier(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := c.Classify(context.Background(), tc.deviation)
			if err != nil {
				t.Fatalf("Classify(%v): %v", tc.deviation, err)
			}
			if result.Letter != tc.letter {
				t.Errorf("Classify(%v) letter = %s, want %s", tc.deviation, result.Letter, tc.letter)
			}
			if result.Deviation != tc.deviation {
				t.Errorf("Classify(%v) did not echo the measurement, got %v", tc.deviation, result.Deviation)
			}
		})
	}
}

func TestClassifyScores(t *testing.T) {
	tests := []struct {
		name      string
		deviation float64
		score     float64
	}{
		{name: "Zero deviation scores 100", deviation: 0.0, score: 100},
		{name: "A bound scores band low end", deviation: 0.1, score: 95},
		{name: "B bound scores band low end", deviation: 0.5, score: 85},
		{name: "D bound scores band low end", deviation: 2.0, score: 65},
	}

	c := newTestClassifier(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := c.Classify(context.Background(), tc.deviation)
			if err != nil {
				t.Fatalf("Classify(%v): %v", tc.deviation, err)
			}
			if math.Abs(result.Score-tc.score) > 1e-9 {
				t.Errorf("Classify(%v) score = %v, want %v", tc.deviation, result.Score, tc.score)
			}
		})
	}
}

func TestClassifyInvalidMeasurement(t *testing.T) {
	tests := []struct {
		name      string
		deviation float64
	}{
		{name: "Negative", deviation: -1.0},
		{name: "NaN", deviation: math.NaN()},
		{name: "Positive infinity", deviation: math.Inf(1)},
		{name: "Negative infinity", deviation: math.Inf(-1)},
	}

	c := newTestClassifier(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Classify(context.Background(), tc.deviation)
			if !errors.Is(err, ErrInvalidMeasurement) {
				t.Errorf("Classify(%v) error = %v, want ErrInvalidMeasurement", tc.deviation, err)
			}
		})
	}
}

// Grade rank must never improve as deviation grows, and the numeric score
// must decrease monotonically across the whole range.
func TestClassifyMonotonic(t *testing.T) {
	c := newTestClassifier(t)

	rank := func(letter string) int {
		for i, b := range c.Scale().Bands() {
			if b.Letter == letter {
				return i
			}
		}
		t.Fatalf("unknown letter %s", letter)
		return -1
	}

	prevRank := -1
	prevScore := math.Inf(1)
	for d := 0.0; d <= 12.0; d += 0.001 {
		result, err := c.Classify(context.Background(), d)
		if err != nil {
			t.Fatalf("Classify(%v): %v", d, err)
		}
		if r := rank(result.Letter); r < prevRank {
			t.Fatalf("grade improved from rank %d to %d at deviation %v", prevRank, r, d)
		} else {
			prevRank = r
		}
		if result.Score > prevScore {
			t.Fatalf("score rose from %v to %v at deviation %v", prevScore, result.Score, d)
		}
		prevScore = result.Score
	}
}

func TestClassifyIdempotent(t *testing.T) {
	c := newTestClassifier(t)
	for _, d := range []float64{0, 0.1, 0.33, 1.7, 4.2} {
		first, err := c.Classify(context.Background(), d)
		if err != nil {
			t.Fatalf("Classify(%v): %v", d, err)
		}
		second, err := c.Classify(context.Background(), d)
		if err != nil {
			t.Fatalf("Classify(%v): %v", d, err)
		}
		if first != second {
			t.Errorf("Classify(%v) not idempotent: %+v vs %+v", d, first, second)
		}
	}
}

func TestClassifyCancelledContext(t *testing.T) {
	c := newTestClassifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Classify(ctx, 0.5); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestOutlierPenalty(t *testing.T) {
	tests := []struct {
		maxDeviation float64
		penalty      float64
	}{
		{maxDeviation: 0.5, penalty: 0},
		{maxDeviation: 3.0, penalty: 0},
		{maxDeviation: 3.5, penalty: 5},
		{maxDeviation: 5.0, penalty: 5},
		{maxDeviation: 7.0, penalty: 10},
	}
	for _, tc := range tests {
		if got := OutlierPenalty(tc.maxDeviation); got != tc.penalty {
			t.Errorf("OutlierPenalty(%v) = %v, want %v", tc.maxDeviation, got, tc.penalty)
		}
	}
}
