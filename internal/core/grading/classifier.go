package grading

import (
	"context"
	"fmt"
	"math"

	"github.com/cadworks/go_cad_assessment/internal/core/domain"
	"github.com/cadworks/go_cad_assessment/internal/ports"
)

// ErrInvalidMeasurement is returned when a deviation measurement is
// negative or non-finite. It rejects that single submission only.
var ErrInvalidMeasurement = fmt.Errorf("grading: invalid measurement")

// Classifier maps a mean deviation measurement to a letter grade and score
// against a validated scale. It is pure and safe for concurrent use.
type Classifier struct {
	scale  Scale
	logger ports.Logger
}

// NewClassifier creates a classifier over the given scale. The scale must
// come from NewScale/ScaleFromBounds/DefaultScale and is re-validated so a
// zero-value Scale cannot slip through.
func NewClassifier(scale Scale, logger ports.Logger) (*Classifier, error) {
	if err := scale.validate(); err != nil {
		return nil, err
	}
	return &Classifier{scale: scale, logger: logger}, nil
}

// Scale returns the classifier's scale.
func (c *Classifier) Scale() Scale {
	return c.scale
}

// Classify maps a mean deviation to a grade result. Bounds are inclusive
// upper limits checked best grade first, so a deviation exactly on a
// boundary takes the better grade. The unbounded worst band guarantees a
// match for every finite non-negative input.
func (c *Classifier) Classify(ctx context.Context, deviation float64) (domain.GradeResult, error) {
	select {
	case <-ctx.Done():
		return domain.GradeResult{}, ctx.Err()
	default:
	}

	if math.IsNaN(deviation) || math.IsInf(deviation, 0) || deviation < 0 {
		c.logger.Error("Rejecting deviation measurement", "deviation", deviation)
		return domain.GradeResult{}, fmt.Errorf("%w: %v", ErrInvalidMeasurement, deviation)
	}

	for i, b := range c.scale.bands {
		if deviation <= b.Bound {
			result := domain.GradeResult{
				Letter:    b.Letter,
				Score:     c.scale.score(i, deviation),
				Deviation: deviation,
				Threshold: b.Bound,
			}
			c.logger.Debug("Classified deviation",
				"deviation", deviation,
				"letter", result.Letter,
				"score", result.Score,
			)
			return result, nil
		}
	}

	// Unreachable: the validated scale ends with an unbounded band.
	return domain.GradeResult{}, fmt.Errorf("%w: %v matched no band", ErrInvalidMeasurement, deviation)
}

// OutlierPenalty returns the score penalty for gross local deviations.
// A submission whose worst single point strays far from the reference loses
// points even when its mean deviation grades well.
func OutlierPenalty(maxDeviation float64) float64 {
	switch {
	case maxDeviation > 5.0:
		return 10
	case maxDeviation > 3.0:
		return 5
	default:
		return 0
	}
}
