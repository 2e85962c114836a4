package grading

import (
	"context"

	"github.com/baditaflorin/l"

	"github.com/cadworks/go_cad_assessment/internal/adapters/logger"
	"github.com/cadworks/go_cad_assessment/internal/core/domain"
	"github.com/cadworks/go_cad_assessment/internal/core/grading"
	"github.com/cadworks/go_cad_assessment/internal/ports"
	"github.com/cadworks/go_cad_assessment/internal/warmup"
)

// GradeClassifier provides methods to map a mean geometric deviation to a
// letter grade and numeric score.
type GradeClassifier struct {
	classifier ports.GradeClassifier
	scale      grading.Scale
	logger     ports.Logger
	warmed     bool
}

// GradeClassifierOption defines a functional option for configuring GradeClassifier.
type GradeClassifierOption func(*gradeClassifierConfig)

type gradeClassifierConfig struct {
	Scale        grading.Scale
	scaleSet     bool
	Logger       ports.Logger
	WarmUp       bool
	WarmUpConfig warmup.WarmupConfig
}

// WithScale sets a custom grading scale.
func WithScale(scale grading.Scale) GradeClassifierOption {
	return func(cfg *gradeClassifierConfig) {
		cfg.Scale = scale
		cfg.scaleSet = true
	}
}

// WithBounds builds the grading scale from per-letter deviation bounds.
// The scale is validated when the classifier is constructed.
func WithBounds(bounds map[string]float64) GradeClassifierOption {
	return func(cfg *gradeClassifierConfig) {
		scale, err := grading.ScaleFromBounds(bounds)
		if err != nil {
			// Leave the zero scale in place; New surfaces the violation.
			cfg.Scale = grading.Scale{}
			cfg.scaleSet = true
			return
		}
		cfg.Scale = scale
		cfg.scaleSet = true
	}
}

// WithLogger sets a custom logger for the classifier.
func WithLogger(lg l.Logger) GradeClassifierOption {
	return func(cfg *gradeClassifierConfig) {
		cfg.Logger = logger.FromExisting(lg)
	}
}

// WithWarmUp enables system warm-up on initialization.
func WithWarmUp(enable bool) GradeClassifierOption {
	return func(cfg *gradeClassifierConfig) {
		cfg.WarmUp = enable
	}
}

// WithWarmUpConfig sets a custom warm-up configuration.
func WithWarmUpConfig(config warmup.WarmupConfig) GradeClassifierOption {
	return func(cfg *gradeClassifierConfig) {
		cfg.WarmUpConfig = config
		cfg.WarmUp = true
	}
}

// New creates a new GradeClassifier instance.
func New(opts ...GradeClassifierOption) (*GradeClassifier, error) {
	config := &gradeClassifierConfig{
		WarmUp:       false,
		WarmUpConfig: warmup.DefaultWarmupConfig(),
	}

	for _, opt := range opts {
		opt(config)
	}

	if !config.scaleSet {
		config.Scale = grading.DefaultScale()
	}

	if config.Logger == nil {
		var err error
		config.Logger, err = logger.NewStdLogger()
		if err != nil {
			return nil, err
		}
	}

	classifier, err := grading.NewClassifier(config.Scale, config.Logger)
	if err != nil {
		return nil, err
	}

	gc := &GradeClassifier{
		classifier: classifier,
		scale:      config.Scale,
		logger:     config.Logger,
		warmed:     false,
	}

	if config.WarmUp {
		gc.WarmUp(context.Background(), config.WarmUpConfig)
	}

	return gc, nil
}

// Classify maps a mean geometric deviation to a grade.
func (gc *GradeClassifier) Classify(ctx context.Context, deviation float64) (domain.GradeResult, error) {
	return gc.classifier.Classify(ctx, deviation)
}

// Scale returns the grading scale in use.
func (gc *GradeClassifier) Scale() grading.Scale {
	return gc.scale
}

// WarmUp performs system warm-up to optimize performance.
func (gc *GradeClassifier) WarmUp(ctx context.Context, config warmup.WarmupConfig) {
	if gc.warmed {
		gc.logger.Debug("System already warmed up, skipping")
		return
	}

	warmupMgr := warmup.NewManager(gc.logger, config)
	warmupMgr.RegisterClassifier(gc.classifier)

	warmupMgr.WarmUp(ctx)
	gc.warmed = true
}
