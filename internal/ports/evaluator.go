package ports

import (
	"context"

	"github.com/cadworks/go_cad_assessment/internal/core/domain"
)

// PointSampler defines the interface for turning a mesh into a normalized
// point cloud suitable for deviation measurement.
type PointSampler interface {
	PointCloud(mesh domain.Mesh) ([]domain.Vec3, error)
}

// DeviationEvaluator defines the interface for computing deviation statistics
// between a reference cloud and a submission cloud.
type DeviationEvaluator interface {
	Compute(ctx context.Context, reference, submission []domain.Vec3) (domain.DeviationStats, error)
}
