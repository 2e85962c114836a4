// Package config loads the assessment service configuration from the
// environment. The grading scale invariants are checked once here, at load
// time: a bad scale must stop the service before any submission is graded.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/cadworks/go_cad_assessment/internal/core/grading"
)

// Config holds the runtime configuration of the assessment service.
type Config struct {
	Port           int           `env:"CAD_PORT" envDefault:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout    time.Duration `env:"CAD_READ_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	WriteTimeout   time.Duration `env:"CAD_WRITE_TIMEOUT" envDefault:"60s" validate:"gt=0"`
	MaxRequestSize int           `env:"CAD_MAX_REQUEST_SIZE" envDefault:"33554432" validate:"gt=0"`
	LogFile        string        `env:"CAD_LOG_FILE"`
	WarmUp         bool          `env:"CAD_WARM_UP" envDefault:"true"`

	// Evaluation pipeline
	SamplePoints int   `env:"CAD_SAMPLE_POINTS" envDefault:"2048" validate:"gte=1000,lte=5000"`
	SampleSeed   int64 `env:"CAD_SAMPLE_SEED" envDefault:"0"`
	Workers      int   `env:"CAD_WORKERS" envDefault:"0" validate:"gte=0"`

	// Grading thresholds: inclusive upper bounds on mean deviation per
	// letter grade. F is always the unbounded tail.
	GradeABound float64 `env:"CAD_GRADE_A" envDefault:"0.1" validate:"gt=0"`
	GradeBBound float64 `env:"CAD_GRADE_B" envDefault:"0.5" validate:"gt=0"`
	GradeCBound float64 `env:"CAD_GRADE_C" envDefault:"1.0" validate:"gt=0"`
	GradeDBound float64 `env:"CAD_GRADE_D" envDefault:"2.0" validate:"gt=0"`

	// Plagiarism heuristics
	SuspicionThreshold int           `env:"CAD_SUSPICION_THRESHOLD" envDefault:"70" validate:"gt=0"`
	NearSizeBytes      int64         `env:"CAD_NEAR_SIZE_BYTES" envDefault:"1024" validate:"gte=0"`
	UploadWindow       time.Duration `env:"CAD_UPLOAD_WINDOW" envDefault:"5m" validate:"gte=0"`
}

// Load reads configuration from the environment and validates it, grading
// scale included. Any violation is fatal: no classification may run against
// a suspect configuration.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	// Surface scale violations now rather than at first classification.
	if _, err := cfg.Scale(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Scale builds the validated grading scale from the configured bounds.
func (c *Config) Scale() (grading.Scale, error) {
	return grading.ScaleFromBounds(map[string]float64{
		"A": c.GradeABound,
		"B": c.GradeBBound,
		"C": c.GradeCBound,
		"D": c.GradeDBound,
		"F": math.Inf(1),
	})
}
