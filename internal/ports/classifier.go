package ports

import (
	"context"

	"github.com/cadworks/go_cad_assessment/internal/core/domain"
)

// GradeClassifier defines the interface for mapping a mean deviation
// measurement to a letter grade and numeric score.
type GradeClassifier interface {
	Classify(ctx context.Context, deviation float64) (domain.GradeResult, error)
}
