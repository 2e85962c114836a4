package plagiarism

import (
	"context"
	"time"

	"github.com/baditaflorin/l"

	"github.com/cadworks/go_cad_assessment/internal/adapters/logger"
	"github.com/cadworks/go_cad_assessment/internal/core/plagiarism"
	"github.com/cadworks/go_cad_assessment/internal/ports"
)

// Detector provides methods to flag suspiciously similar submissions from
// their file metadata.
type Detector struct {
	detector *plagiarism.Detector
	logger   ports.Logger
}

// DetectorOption defines a functional option for configuring Detector.
type DetectorOption func(*detectorConfig)

type detectorConfig struct {
	SuspicionThreshold int
	NearSizeBytes      int64
	UploadWindow       time.Duration
	Logger             ports.Logger
}

// WithSuspicionThreshold sets the minimum combined score for a pair to be reported.
func WithSuspicionThreshold(threshold int) DetectorOption {
	return func(cfg *detectorConfig) {
		cfg.SuspicionThreshold = threshold
	}
}

// WithNearSizeBytes sets the file size delta treated as suspiciously close.
func WithNearSizeBytes(bytes int64) DetectorOption {
	return func(cfg *detectorConfig) {
		cfg.NearSizeBytes = bytes
	}
}

// WithUploadWindow sets the upload time delta treated as suspiciously close.
func WithUploadWindow(window time.Duration) DetectorOption {
	return func(cfg *detectorConfig) {
		cfg.UploadWindow = window
	}
}

// WithLogger sets a custom logger for the detector.
func WithLogger(lg l.Logger) DetectorOption {
	return func(cfg *detectorConfig) {
		cfg.Logger = logger.FromExisting(lg)
	}
}

// New creates a new Detector instance.
func New(opts ...DetectorOption) (*Detector, error) {
	defaults := plagiarism.DefaultConfig()

	config := &detectorConfig{
		SuspicionThreshold: defaults.SuspicionThreshold,
		NearSizeBytes:      defaults.NearSizeBytes,
		UploadWindow:       defaults.UploadWindow,
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

	detector, err := plagiarism.NewDetector(plagiarism.Config{
		SuspicionThreshold: config.SuspicionThreshold,
		NearSizeBytes:      config.NearSizeBytes,
		UploadWindow:       config.UploadWindow,
	}, config.Logger)
	if err != nil {
		return nil, err
	}

	return &Detector{
		detector: detector,
		logger:   config.Logger,
	}, nil
}

// ExtractMetadata records the comparable footprint of an uploaded file.
func ExtractMetadata(fileName string, data []byte, uploadedAt time.Time) plagiarism.Metadata {
	return plagiarism.ExtractMetadata(fileName, data, uploadedAt)
}

// Analyze compares all submission pairs and returns matches above the
// suspicion threshold, highest score first.
func (d *Detector) Analyze(ctx context.Context, submissions []plagiarism.Metadata) ([]plagiarism.Match, error) {
	return d.detector.Analyze(ctx, submissions)
}
