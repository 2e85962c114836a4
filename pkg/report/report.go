package report

import (
	"github.com/baditaflorin/l"

	"github.com/cadworks/go_cad_assessment/internal/adapters/logger"
	"github.com/cadworks/go_cad_assessment/internal/core/domain"
	"github.com/cadworks/go_cad_assessment/internal/core/grading"
	"github.com/cadworks/go_cad_assessment/internal/core/plagiarism"
	"github.com/cadworks/go_cad_assessment/internal/core/report"
	"github.com/cadworks/go_cad_assessment/internal/ports"
)

// Generator produces markdown reports for graded submissions.
type Generator struct {
	generator *report.Generator
	scale     grading.Scale
	logger    ports.Logger
}

// GeneratorOption defines a functional option for configuring Generator.
type GeneratorOption func(*generatorConfig)

type generatorConfig struct {
	Scale    grading.Scale
	scaleSet bool
	Logger   ports.Logger
}

// WithScale sets the grading scale described in report appendices.
func WithScale(scale grading.Scale) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.Scale = scale
		cfg.scaleSet = true
	}
}

// WithLogger sets a custom logger for the generator.
func WithLogger(lg l.Logger) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.Logger = logger.FromExisting(lg)
	}
}

// New creates a new Generator instance.
func New(opts ...GeneratorOption) (*Generator, error) {
	config := &generatorConfig{}

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

	return &Generator{
		generator: report.NewGenerator(config.Logger),
		scale:     config.Scale,
		logger:    config.Logger,
	}, nil
}

// StudentReport renders the markdown report for one graded submission.
func (g *Generator) StudentReport(eval domain.Evaluation, matches []plagiarism.Match) string {
	return g.generator.StudentReport(eval, g.scale, matches)
}

// ClassSummary renders the markdown summary across all graded submissions.
func (g *Generator) ClassSummary(evals []domain.Evaluation, matches []plagiarism.Match) string {
	return g.generator.ClassSummary(evals, matches)
}

// Bundle renders every student report plus the class summary into a zip archive.
func (g *Generator) Bundle(evals []domain.Evaluation, matches []plagiarism.Match) ([]byte, error) {
	return g.generator.Bundle(evals, matches, g.scale)
}
