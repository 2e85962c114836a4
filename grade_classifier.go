// grade_classifier.go
// Package cadassessment grades CAD submissions from their mean geometric
// deviation against a reference model. The deviation is measured in model
// units after both meshes are normalized to the unit sphere, so the default
// thresholds apply regardless of the original model scale.
//
// The letter grade is the best band whose inclusive upper bound contains the
// deviation, and the numeric score is interpolated linearly inside the band:
//
//	score = scoreLo + (scoreHi - scoreLo) * (bound - deviation) / (bound - prevBound)
//
// Submissions beyond the last bounded band fall into F, whose score decays
// from the top of the F range toward 0 as the deviation grows.
//
// This version uses the functional options pattern to allow configuration of
// the grading thresholds and logging.
package cadassessment

import (
	"fmt"
	"math"

	"github.com/baditaflorin/l"
)

// Result holds the outcome of a grade classification.
type Result struct {
	// Name of the metric.
	Name string
	// Letter is the assigned letter grade.
	Letter string
	// Score is the numeric score between 0 and 100.
	Score float64
	// Deviation is the mean geometric deviation that was classified.
	Deviation float64
	// Threshold is the inclusive upper bound of the assigned band.
	// It is +Inf for the failing band.
	Threshold float64
	// Passed indicates whether the submission earned a passing grade.
	Passed bool
	// Details holds additional diagnostic information.
	Details map[string]interface{}
}

// Config holds configuration options for the grade classifier.
type Config struct {
	// Bounds maps letter grades to inclusive upper deviation bounds.
	Bounds map[string]float64
	// Logger for tracing computation steps.
	Logger l.Logger
}

// Option defines a functional option for configuring the classifier.
type Option func(*Config)

// WithBounds sets custom per-letter deviation bounds.
func WithBounds(bounds map[string]float64) Option {
	return func(cfg *Config) {
		cfg.Bounds = bounds
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger l.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = logger
	}
}

// Default deviation bounds per letter grade, in normalized model units.
const (
	DefaultBoundA = 0.1
	DefaultBoundB = 0.5
	DefaultBoundC = 1.0
	DefaultBoundD = 2.0
)

// Score ranges per letter grade.
var scoreRanges = map[string][2]float64{
	"A": {95, 100},
	"B": {85, 94},
	"C": {75, 84},
	"D": {65, 74},
	"F": {0, 64},
}

// failTailFalloff is the score lost per unit of deviation past the D bound.
const failTailFalloff = 10.0

type band struct {
	letter string
	bound  float64
}

// GradeClassifier provides methods to classify a mean geometric deviation
// using configurable thresholds.
type GradeClassifier struct {
	config Config
	bands  []band
}

// New creates a new GradeClassifier with the provided functional options.
// If no logger is provided, a default logger is created.
func New(opts ...Option) (*GradeClassifier, error) {
	cfg := Config{
		Bounds: map[string]float64{
			"A": DefaultBoundA,
			"B": DefaultBoundB,
			"C": DefaultBoundC,
			"D": DefaultBoundD,
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		logger, err := createDefaultLogger()
		if err != nil {
			return nil, err
		}
		cfg.Logger = logger
	}

	bands, err := orderedBands(cfg.Bounds)
	if err != nil {
		return nil, err
	}

	return &GradeClassifier{config: cfg, bands: bands}, nil
}

// orderedBands validates the bounds and returns the bands best grade first,
// with the unbounded F band appended.
func orderedBands(bounds map[string]float64) ([]band, error) {
	order := []string{"A", "B", "C", "D"}
	bands := make([]band, 0, len(order)+1)
	prev := 0.0
	for _, letter := range order {
		bound, ok := bounds[letter]
		if !ok {
			return nil, fmt.Errorf("cadassessment: missing bound for grade %s", letter)
		}
		if math.IsNaN(bound) || bound <= prev {
			return nil, fmt.Errorf("cadassessment: bound for grade %s must exceed %v, got %v", letter, prev, bound)
		}
		bands = append(bands, band{letter: letter, bound: bound})
		prev = bound
	}
	return append(bands, band{letter: "F", bound: math.Inf(1)}), nil
}

// Classify maps a mean geometric deviation to a letter grade and score.
// It logs key steps of the computation. Negative or non-finite deviations
// produce a failed result with a diagnostic error.
func (gc *GradeClassifier) Classify(deviation float64) Result {
	gc.config.Logger.Info("Starting grade classification",
		"deviation", deviation,
	)

	details := make(map[string]interface{})

	if math.IsNaN(deviation) || math.IsInf(deviation, 0) || deviation < 0 {
		gc.config.Logger.Error("Invalid deviation measurement", "deviation", deviation)
		details["error"] = "deviation must be a finite non-negative number"
		return Result{
			Name:    "grade_classification",
			Letter:  "F",
			Score:   0,
			Passed:  false,
			Details: details,
		}
	}

	idx := 0
	for i, b := range gc.bands {
		if deviation <= b.bound {
			idx = i
			break
		}
	}
	assigned := gc.bands[idx]
	score := gc.score(idx, deviation)
	passed := assigned.letter != "F"

	details["band_bound"] = assigned.bound
	details["bands"] = len(gc.bands)

	gc.config.Logger.Info("Computed grade",
		"letter", assigned.letter,
		"score", score,
		"passed", passed,
	)

	return Result{
		Name:      "grade_classification",
		Letter:    assigned.letter,
		Score:     score,
		Deviation: deviation,
		Threshold: assigned.bound,
		Passed:    passed,
		Details:   details,
	}
}

// ClassifyWithDefaults classifies a deviation using the default thresholds
// and logger.
func ClassifyWithDefaults(deviation float64) Result {
	gc, err := New()
	if err != nil {
		return Result{
			Name:    "grade_classification",
			Letter:  "F",
			Passed:  false,
			Details: map[string]interface{}{"error": err.Error()},
		}
	}
	return gc.Classify(deviation)
}

// score interpolates the numeric score inside the assigned band.
func (gc *GradeClassifier) score(idx int, deviation float64) float64 {
	r := scoreRanges[gc.bands[idx].letter]
	lo, hi := r[0], r[1]

	var score float64
	switch {
	case math.IsInf(gc.bands[idx].bound, 1):
		prev := gc.bands[idx-1].bound
		score = hi - failTailFalloff*(deviation-prev)
	case idx == 0:
		score = lo + (hi-lo)*(1-deviation/gc.bands[idx].bound)
	default:
		prev := gc.bands[idx-1].bound
		score = lo + (hi-lo)*(gc.bands[idx].bound-deviation)/(gc.bands[idx].bound-prev)
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
