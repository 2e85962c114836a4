package warmup

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/cadworks/go_cad_assessment/internal/core/domain"
	"github.com/cadworks/go_cad_assessment/internal/ports"
)

// WarmupConfig defines configuration for warming up the assessment pipeline
type WarmupConfig struct {
	// Number of concurrent warmup routines to run
	Concurrency int
	// Number of iterations per routine
	Iterations int
	// Synthetic point cloud size for evaluator warmup
	SamplePoints int
	// Warmup duration (0 means no time limit)
	Duration time.Duration
	// Whether to perform GC after warmup
	ForceGC bool
}

// DefaultWarmupConfig returns the default warmup configuration
func DefaultWarmupConfig() WarmupConfig {
	return WarmupConfig{
		Concurrency:  runtime.NumCPU(),
		Iterations:   100,
		SamplePoints: 256,
		Duration:     5 * time.Second,
		ForceGC:      true,
	}
}

// Manager handles warmup of classifiers, evaluators and samplers so first
// real submissions do not pay allocation and scheduling cold-start costs.
type Manager struct {
	logger      ports.Logger
	classifiers []ports.GradeClassifier
	evaluators  []ports.DeviationEvaluator
	samplers    []ports.PointSampler
	config      WarmupConfig
}

// NewManager creates a new warmup manager
func NewManager(logger ports.Logger, config WarmupConfig) *Manager {
	return &Manager{
		logger: logger,
		config: config,
	}
}

// RegisterClassifier adds a classifier to be warmed up
func (wm *Manager) RegisterClassifier(c ports.GradeClassifier) {
	wm.classifiers = append(wm.classifiers, c)
}

// RegisterEvaluator adds a deviation evaluator to be warmed up
func (wm *Manager) RegisterEvaluator(e ports.DeviationEvaluator) {
	wm.evaluators = append(wm.evaluators, e)
}

// RegisterSampler adds a point sampler to be warmed up
func (wm *Manager) RegisterSampler(s ports.PointSampler) {
	wm.samplers = append(wm.samplers, s)
}

// WarmUp runs the warmup process for all registered components
func (wm *Manager) WarmUp(ctx context.Context) {
	startTime := time.Now()
	wm.logger.Info("Starting system warmup",
		"components", len(wm.classifiers)+len(wm.evaluators)+len(wm.samplers),
		"concurrency", wm.config.Concurrency,
		"iterations", wm.config.Iterations,
	)

	var warmupCtx context.Context
	var cancel context.CancelFunc
	if wm.config.Duration > 0 {
		warmupCtx, cancel = context.WithTimeout(ctx, wm.config.Duration)
		defer cancel()
	} else {
		warmupCtx = ctx
	}

	wm.warmUpClassifiers(warmupCtx)
	wm.warmUpSamplers(warmupCtx)
	wm.warmUpEvaluators(warmupCtx)

	if wm.config.ForceGC {
		wm.logger.Debug("Forcing garbage collection after warmup")
		runtime.GC()
	}

	wm.logger.Info("System warmup completed",
		"duration", time.Since(startTime),
	)
}

func (wm *Manager) warmUpClassifiers(ctx context.Context) {
	if len(wm.classifiers) == 0 {
		return
	}
	wm.logger.Debug("Warming up classifiers", "count", len(wm.classifiers))

	var wg sync.WaitGroup
	for i := 0; i < wm.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < wm.config.Iterations; j++ {
				select {
				case <-ctx.Done():
					return
				default:
				}
				// Sweep deviations across every grade band.
				deviation := float64(j%60) / 10
				for _, classifier := range wm.classifiers {
					_, _ = classifier.Classify(ctx, deviation)
				}
			}
		}()
	}
	wg.Wait()
}

func (wm *Manager) warmUpSamplers(ctx context.Context) {
	if len(wm.samplers) == 0 {
		return
	}
	wm.logger.Debug("Warming up samplers", "count", len(wm.samplers))

	mesh := syntheticMesh()

	var wg sync.WaitGroup
	for i := 0; i < wm.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < wm.config.Iterations/10; j++ {
				select {
				case <-ctx.Done():
					return
				default:
				}
				for _, sampler := range wm.samplers {
					_, _ = sampler.PointCloud(mesh)
				}
			}
		}()
	}
	wg.Wait()
}

func (wm *Manager) warmUpEvaluators(ctx context.Context) {
	if len(wm.evaluators) == 0 {
		return
	}
	wm.logger.Debug("Warming up evaluators", "count", len(wm.evaluators))

	reference := syntheticCloud(wm.config.SamplePoints, 0)
	identical := syntheticCloud(wm.config.SamplePoints, 0)
	shifted := syntheticCloud(wm.config.SamplePoints, 0.2)

	var wg sync.WaitGroup
	for i := 0; i < wm.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < wm.config.Iterations/10; j++ {
				select {
				case <-ctx.Done():
					return
				default:
				}
				for _, evaluator := range wm.evaluators {
					if j%2 == 0 {
						_, _ = evaluator.Compute(ctx, reference, identical)
					} else {
						_, _ = evaluator.Compute(ctx, reference, shifted)
					}
				}
			}
		}()
	}
	wg.Wait()
}

// Helpers for generating synthetic warmup data

// syntheticCloud places n points on a spiral over the unit sphere, offset
// along Z to simulate a deviated submission.
func syntheticCloud(n int, offset float64) []domain.Vec3 {
	points := make([]domain.Vec3, n)
	for i := range points {
		t := float64(i) / float64(n)
		theta := 2 * math.Pi * 20 * t
		z := 2*t - 1
		r := math.Sqrt(1 - z*z)
		points[i] = domain.Vec3{
			X: r * math.Cos(theta),
			Y: r * math.Sin(theta),
			Z: z + offset,
		}
	}
	return points
}

// syntheticMesh returns a small closed mesh for sampler warmup.
func syntheticMesh() domain.Mesh {
	return domain.Mesh{
		Vertices: []domain.Vec3{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 0, Y: 1, Z: 0},
			{X: 0, Y: 0, Z: 1},
		},
		Faces: []domain.Triangle{
			{A: 0, B: 1, C: 2},
			{A: 0, B: 1, C: 3},
			{A: 0, B: 2, C: 3},
			{A: 1, B: 2, C: 3},
		},
	}
}
