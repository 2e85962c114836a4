// Package batch evaluates many student submissions against one reference
// model concurrently. Submissions are independent, so the batch fans out to
// a worker pool and each failure stays contained to its own result.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/cadworks/go_cad_assessment/internal/core/domain"
	"github.com/cadworks/go_cad_assessment/internal/core/grading"
	"github.com/cadworks/go_cad_assessment/internal/ports"
)

// DefaultWorkers is the default number of worker goroutines (0 = GOMAXPROCS)
const DefaultWorkers = 0

// Submission is one student model queued for evaluation.
type Submission struct {
	// ID correlates the result with reports; assigned when empty.
	ID      string
	Student string
	Mesh    domain.Mesh
}

// Evaluator runs the sample-measure-classify pipeline per submission.
type Evaluator struct {
	sampler    ports.PointSampler
	calculator ports.DeviationEvaluator
	classifier ports.GradeClassifier
	workers    int
	logger     ports.Logger
}

// NewEvaluator creates a batch evaluator.
func NewEvaluator(
	sampler ports.PointSampler,
	calculator ports.DeviationEvaluator,
	classifier ports.GradeClassifier,
	workers int,
	logger ports.Logger,
) (*Evaluator, error) {
	if sampler == nil || calculator == nil || classifier == nil {
		return nil, fmt.Errorf("batch: sampler, calculator and classifier are required")
	}
	if workers < 0 {
		return nil, fmt.Errorf("batch: workers must be >= 0, got %d", workers)
	}
	return &Evaluator{
		sampler:    sampler,
		calculator: calculator,
		classifier: classifier,
		workers:    workers,
		logger:     logger,
	}, nil
}

// EvaluateAll grades every submission against the reference mesh. The
// reference failing to sample is fatal; a submission failing yields an
// errored Evaluation in its slot and the batch continues. Results are
// returned in submission order.
func (e *Evaluator) EvaluateAll(ctx context.Context, reference domain.Mesh, submissions []Submission) ([]domain.Evaluation, error) {
	referenceCloud, err := e.sampler.PointCloud(reference)
	if err != nil {
		return nil, fmt.Errorf("batch: sampling reference model: %w", err)
	}

	workers := e.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(submissions) && len(submissions) > 0 {
		workers = len(submissions)
	}

	e.logger.Info("Starting batch evaluation",
		"submissions", len(submissions),
		"workers", workers,
		"reference_points", len(referenceCloud),
	)

	results := make([]domain.Evaluation, len(submissions))
	jobs := make(chan int, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.evaluateOne(ctx, referenceCloud, submissions[i])
			}
		}()
	}

	var cancelled error
feed:
	for i := range submissions {
		select {
		case jobs <- i:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		e.logger.Error("Batch evaluation cancelled", "error", cancelled)
		return results, cancelled
	}

	e.logger.Info("Batch evaluation complete", "submissions", len(submissions))
	return results, nil
}

// evaluateOne runs the full pipeline for a single submission. Every error
// path returns an Evaluation carrying the failure instead of propagating it.
func (e *Evaluator) evaluateOne(ctx context.Context, referenceCloud []domain.Vec3, sub Submission) domain.Evaluation {
	eval := domain.Evaluation{
		SubmissionID: sub.ID,
		Student:      sub.Student,
	}
	if eval.SubmissionID == "" {
		eval.SubmissionID = uuid.NewString()
	}

	cloud, err := e.sampler.PointCloud(sub.Mesh)
	if err != nil {
		e.logger.Error("Sampling submission failed", "student", sub.Student, "error", err)
		eval.Err = err.Error()
		return eval
	}

	stats, err := e.calculator.Compute(ctx, referenceCloud, cloud)
	if err != nil {
		e.logger.Error("Deviation computation failed", "student", sub.Student, "error", err)
		eval.Err = err.Error()
		return eval
	}

	grade, err := e.classifier.Classify(ctx, stats.Mean)
	if err != nil {
		e.logger.Error("Classification failed", "student", sub.Student, "deviation", stats.Mean, "error", err)
		eval.Err = err.Error()
		return eval
	}

	eval.Stats = stats
	eval.Grade = grade
	eval.Penalty = grading.OutlierPenalty(stats.Max)
	eval.FinalScore = clampScore(grade.Score - eval.Penalty)

	e.logger.Debug("Submission evaluated",
		"student", sub.Student,
		"submission_id", eval.SubmissionID,
		"letter", grade.Letter,
		"final_score", eval.FinalScore,
	)
	return eval
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
