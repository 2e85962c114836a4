package geometry

import (
	"context"

	"github.com/baditaflorin/l"

	"github.com/cadworks/go_cad_assessment/internal/adapters/logger"
	"github.com/cadworks/go_cad_assessment/internal/core/domain"
	"github.com/cadworks/go_cad_assessment/internal/core/geometry"
	"github.com/cadworks/go_cad_assessment/internal/ports"
	"github.com/cadworks/go_cad_assessment/internal/warmup"
)

// DeviationEvaluator provides methods to sample meshes into point clouds and
// compute two-sided deviation statistics between them.
type DeviationEvaluator struct {
	sampler    ports.PointSampler
	calculator ports.DeviationEvaluator
	logger     ports.Logger
	warmed     bool
}

// DeviationEvaluatorOption defines a functional option for configuring DeviationEvaluator.
type DeviationEvaluatorOption func(*deviationEvaluatorConfig)

type deviationEvaluatorConfig struct {
	SamplePoints int
	Seed         int64
	Workers      int
	Logger       ports.Logger
	WarmUp       bool
	WarmUpConfig warmup.WarmupConfig
}

// WithSamplePoints sets the number of points sampled from each mesh.
func WithSamplePoints(n int) DeviationEvaluatorOption {
	return func(cfg *deviationEvaluatorConfig) {
		cfg.SamplePoints = n
	}
}

// WithSeed makes point sampling deterministic.
func WithSeed(seed int64) DeviationEvaluatorOption {
	return func(cfg *deviationEvaluatorConfig) {
		cfg.Seed = seed
	}
}

// WithWorkers sets the number of workers for nearest-neighbour search.
// Zero means one worker per CPU.
func WithWorkers(n int) DeviationEvaluatorOption {
	return func(cfg *deviationEvaluatorConfig) {
		cfg.Workers = n
	}
}

// WithLogger sets a custom logger for the evaluator.
func WithLogger(lg l.Logger) DeviationEvaluatorOption {
	return func(cfg *deviationEvaluatorConfig) {
		cfg.Logger = logger.FromExisting(lg)
	}
}

// WithWarmUp enables system warm-up on initialization.
func WithWarmUp(enable bool) DeviationEvaluatorOption {
	return func(cfg *deviationEvaluatorConfig) {
		cfg.WarmUp = enable
	}
}

// WithWarmUpConfig sets a custom warm-up configuration.
func WithWarmUpConfig(config warmup.WarmupConfig) DeviationEvaluatorOption {
	return func(cfg *deviationEvaluatorConfig) {
		cfg.WarmUpConfig = config
		cfg.WarmUp = true
	}
}

// New creates a new DeviationEvaluator instance.
func New(opts ...DeviationEvaluatorOption) (*DeviationEvaluator, error) {
	samplerDefaults := geometry.DefaultSamplerConfig()
	deviationDefaults := geometry.DefaultDeviationConfig()

	config := &deviationEvaluatorConfig{
		SamplePoints: samplerDefaults.Points,
		Seed:         samplerDefaults.Seed,
		Workers:      deviationDefaults.Workers,
		WarmUp:       false,
		WarmUpConfig: warmup.DefaultWarmupConfig(),
	}

	for _, opt := range opts {
		opt(config)
	}

	if config.Logger == nil {
		var err error
		config.Logger, err = logger.NewStdLogger()
		if err != nil {
			return nil, err
		}
	}

	sampler, err := geometry.NewSampler(geometry.SamplerConfig{
		Points: config.SamplePoints,
		Seed:   config.Seed,
	}, config.Logger)
	if err != nil {
		return nil, err
	}

	calculator, err := geometry.NewDeviationCalculator(geometry.DeviationConfig{
		Workers: config.Workers,
	}, config.Logger)
	if err != nil {
		return nil, err
	}

	de := &DeviationEvaluator{
		sampler:    sampler,
		calculator: calculator,
		logger:     config.Logger,
		warmed:     false,
	}

	if config.WarmUp {
		de.WarmUp(context.Background(), config.WarmUpConfig)
	}

	return de, nil
}

// PointCloud samples a normalized point cloud from a mesh.
func (de *DeviationEvaluator) PointCloud(mesh domain.Mesh) ([]domain.Vec3, error) {
	return de.sampler.PointCloud(mesh)
}

// Compute calculates two-sided deviation statistics between two point clouds.
func (de *DeviationEvaluator) Compute(ctx context.Context, reference, submission []domain.Vec3) (domain.DeviationStats, error) {
	return de.calculator.Compute(ctx, reference, submission)
}

// CompareMeshes samples both meshes and computes their deviation statistics.
func (de *DeviationEvaluator) CompareMeshes(ctx context.Context, reference, submission domain.Mesh) (domain.DeviationStats, error) {
	refCloud, err := de.sampler.PointCloud(reference)
	if err != nil {
		return domain.DeviationStats{}, err
	}
	subCloud, err := de.sampler.PointCloud(submission)
	if err != nil {
		return domain.DeviationStats{}, err
	}
	return de.calculator.Compute(ctx, refCloud, subCloud)
}

// WarmUp performs system warm-up to optimize performance.
func (de *DeviationEvaluator) WarmUp(ctx context.Context, config warmup.WarmupConfig) {
	if de.warmed {
		de.logger.Debug("System already warmed up, skipping")
		return
	}

	warmupMgr := warmup.NewManager(de.logger, config)
	warmupMgr.RegisterSampler(de.sampler)
	warmupMgr.RegisterEvaluator(de.calculator)

	warmupMgr.WarmUp(ctx)
	de.warmed = true
}
