package geometry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/cadworks/go_cad_assessment/internal/core/domain"
	"github.com/cadworks/go_cad_assessment/internal/ports"
)

// ErrEmptyCloud is returned when a point cloud has no points to compare.
var ErrEmptyCloud = errors.New("geometry: point cloud is empty")

// Constants for parallel nearest-neighbor search
const (
	// DefaultWorkers is the default number of worker goroutines
	DefaultWorkers = 0 // 0 means use runtime.NumCPU()

	// ChunkSize is the number of query points handed to a worker at once
	ChunkSize = 256
)

// DeviationConfig holds configuration for the deviation calculator.
type DeviationConfig struct {
	Workers int
}

// DefaultDeviationConfig returns a default configuration.
func DefaultDeviationConfig() DeviationConfig {
	return DeviationConfig{Workers: DefaultWorkers}
}

// Validate checks if the configuration is valid.
func (c DeviationConfig) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("geometry: workers must be >= 0, got %d", c.Workers)
	}
	return nil
}

// DeviationCalculator computes geometric deviation statistics between two
// point clouds. Instances are stateless and safe for concurrent use.
type DeviationCalculator struct {
	config DeviationConfig
	logger ports.Logger
}

// NewDeviationCalculator creates a new deviation calculator.
func NewDeviationCalculator(config DeviationConfig, logger ports.Logger) (*DeviationCalculator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &DeviationCalculator{config: config, logger: logger}, nil
}

// Compute measures two-sided nearest-neighbor distances between the
// reference and submission clouds and derives the deviation statistics the
// grading scale and reports consume.
func (d *DeviationCalculator) Compute(ctx context.Context, reference, submission []domain.Vec3) (domain.DeviationStats, error) {
	if len(reference) == 0 || len(submission) == 0 {
		return domain.DeviationStats{}, ErrEmptyCloud
	}

	refToSub, err := d.nearestDistances(ctx, reference, submission)
	if err != nil {
		return domain.DeviationStats{}, err
	}
	subToRef, err := d.nearestDistances(ctx, submission, reference)
	if err != nil {
		return domain.DeviationStats{}, err
	}

	stats := domain.DeviationStats{
		Mean:      mean(refToSub),
		Max:       maxOf(refToSub),
		Std:       std(refToSub),
		Median:    percentile(refToSub, 50),
		P95:       percentile(refToSub, 95),
		P99:       percentile(refToSub, 99),
		Hausdorff: math.Max(maxOf(refToSub), maxOf(subToRef)),
		RefToSub:  refToSub,
		SubToRef:  subToRef,
	}

	d.logger.Debug("Computed deviation statistics",
		"mean", stats.Mean,
		"max", stats.Max,
		"hausdorff", stats.Hausdorff,
		"reference_points", len(reference),
		"submission_points", len(submission),
	)
	return stats, nil
}

// nearestDistances finds, for each point in from, the distance to its
// nearest point in to. Query points are chunked across a worker pool;
// workers write disjoint ranges of the result so no locking is needed.
func (d *DeviationCalculator) nearestDistances(ctx context.Context, from, to []domain.Vec3) ([]float64, error) {
	workers := d.config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	distances := make([]float64, len(from))
	jobs := make(chan [2]int, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range jobs {
				for i := chunk[0]; i < chunk[1]; i++ {
					distances[i] = nearestDistance(from[i], to)
				}
			}
		}()
	}

	var cancelled error
feed:
	for start := 0; start < len(from); start += ChunkSize {
		end := start + ChunkSize
		if end > len(from) {
			end = len(from)
		}
		select {
		case jobs <- [2]int{start, end}:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		d.logger.Error("Nearest-neighbor search cancelled", "error", cancelled)
		return nil, cancelled
	}
	return distances, nil
}

func nearestDistance(p domain.Vec3, cloud []domain.Vec3) float64 {
	best := math.Inf(1)
	for _, q := range cloud {
		dx := p.X - q.X
		dy := p.Y - q.Y
		dz := p.Z - q.Z
		if d2 := dx*dx + dy*dy + dz*dz; d2 < best {
			best = d2
		}
	}
	return math.Sqrt(best)
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// std is the population standard deviation.
func std(values []float64) float64 {
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// percentile uses linear interpolation between closest ranks.
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
