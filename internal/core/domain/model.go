package domain

// Vec3 is a point in model space.
type Vec3 struct {
	X, Y, Z float64
}

// Triangle indexes three vertices of a mesh.
type Triangle struct {
	A, B, C int
}

// Mesh is a triangulated surface as loaded from a CAD file.
type Mesh struct {
	Vertices []Vec3
	Faces    []Triangle
}

// DeviationStats holds the outcome of a geometric deviation computation
// between a reference point cloud and a submission point cloud.
type DeviationStats struct {
	// Mean deviation of reference points to their nearest submission point.
	// This is the value the grading scale is applied to.
	Mean   float64
	Max    float64
	Std    float64
	Median float64
	P95    float64
	P99    float64
	// Hausdorff is the symmetric Hausdorff distance between the clouds.
	Hausdorff float64
	// RefToSub holds the per-point nearest distances from reference to
	// submission, in reference sampling order. Consumers use it for
	// deviation heatmaps.
	RefToSub []float64
	// SubToRef holds the per-point nearest distances in the other direction.
	SubToRef []float64
}

// GradeResult holds the outcome of classifying a deviation measurement.
type GradeResult struct {
	// Letter grade, best to worst per the active scale.
	Letter string
	// Score is the derived numeric score in [0,100].
	Score float64
	// Deviation echoes the classified measurement for audit and reporting.
	Deviation float64
	// Threshold is the inclusive upper bound of the band that matched.
	// +Inf for the unbounded worst band.
	Threshold float64
}

// Evaluation is the full per-submission assessment outcome.
type Evaluation struct {
	SubmissionID string
	Student      string
	Grade        GradeResult
	Stats        DeviationStats
	// Penalty applied on top of the classifier score for gross outliers.
	Penalty float64
	// FinalScore is Grade.Score minus Penalty, clamped to [0,100].
	FinalScore float64
	// Err is non-empty when this submission could not be evaluated.
	// A failed submission never aborts the rest of a batch.
	Err string
}
