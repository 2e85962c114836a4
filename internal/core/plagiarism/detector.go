// Package plagiarism flags suspicious submission pairs from file metadata.
// It never inspects geometry: identical hashes, near-identical sizes and
// tightly clustered upload times are what give copied work away.
package plagiarism

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/cadworks/go_cad_assessment/internal/ports"
)

// Metadata describes one submission file.
type Metadata struct {
	FileName   string
	FileSize   int64
	FileHash   string
	UploadTime time.Time
}

// ExtractMetadata builds submission metadata from raw file contents.
// The hash is a fingerprint for exact-copy detection, not a security boundary.
func ExtractMetadata(fileName string, data []byte, uploadedAt time.Time) Metadata {
	sum := md5.Sum(data)
	return Metadata{
		FileName:   fileName,
		FileSize:   int64(len(data)),
		FileHash:   hex.EncodeToString(sum[:]),
		UploadTime: uploadedAt,
	}
}

// Severity labels a suspicion score range.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL - Exact Copy"
	SeverityVeryHigh Severity = "VERY HIGH"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Suspicion weights and heuristics thresholds.
const (
	weightIdenticalHash = 100
	weightIdenticalSize = 60
	weightNearSize      = 35
	weightCloseUpload   = 40

	// DefaultSuspicionThreshold is the minimum score a pair needs to be reported.
	DefaultSuspicionThreshold = 70
	// DefaultNearSizeBytes is the size difference still considered suspicious.
	DefaultNearSizeBytes = 1024
	// DefaultUploadWindow is the upload-time proximity considered suspicious.
	DefaultUploadWindow = 5 * time.Minute
)

// Match is a pair of submissions flagged as suspicious.
type Match struct {
	Student1 string
	Student2 string
	Score    int
	Reasons  []string
	Severity Severity
}

// Config holds configuration for the detector.
type Config struct {
	SuspicionThreshold int
	NearSizeBytes      int64
	UploadWindow       time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		SuspicionThreshold: DefaultSuspicionThreshold,
		NearSizeBytes:      DefaultNearSizeBytes,
		UploadWindow:       DefaultUploadWindow,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.SuspicionThreshold <= 0 {
		return fmt.Errorf("plagiarism: suspicion threshold must be positive, got %d", c.SuspicionThreshold)
	}
	if c.NearSizeBytes < 0 {
		return fmt.Errorf("plagiarism: near-size bytes must be >= 0, got %d", c.NearSizeBytes)
	}
	if c.UploadWindow < 0 {
		return fmt.Errorf("plagiarism: upload window must be >= 0, got %v", c.UploadWindow)
	}
	return nil
}

// Detector analyzes submission metadata for copying patterns.
type Detector struct {
	config Config
	logger ports.Logger
}

// NewDetector creates a new metadata plagiarism detector.
func NewDetector(config Config, logger ports.Logger) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Detector{config: config, logger: logger}, nil
}

// Analyze scores every submission pair and returns the ones at or above the
// suspicion threshold, highest score first.
func (d *Detector) Analyze(ctx context.Context, submissions []Metadata) ([]Match, error) {
	var matches []Match
	for i, a := range submissions {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		for _, b := range submissions[i+1:] {
			if m, ok := d.scorePair(a, b); ok {
				matches = append(matches, m)
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	d.logger.Info("Plagiarism analysis complete",
		"submissions", len(submissions),
		"suspicious_pairs", len(matches),
	)
	return matches, nil
}

func (d *Detector) scorePair(a, b Metadata) (Match, bool) {
	score := 0
	var reasons []string

	sizeDiff := a.FileSize - b.FileSize
	if sizeDiff < 0 {
		sizeDiff = -sizeDiff
	}
	if sizeDiff == 0 {
		score += weightIdenticalSize
		reasons = append(reasons, "Identical file size")
	} else if sizeDiff < d.config.NearSizeBytes {
		score += weightNearSize
		reasons = append(reasons, fmt.Sprintf("Nearly identical size (diff: %d bytes)", sizeDiff))
	}

	if a.FileHash != "" && a.FileHash == b.FileHash {
		score += weightIdenticalHash
		reasons = append(reasons, "EXACT COPY - identical file hash")
	}

	timeDiff := a.UploadTime.Sub(b.UploadTime)
	if timeDiff < 0 {
		timeDiff = -timeDiff
	}
	if timeDiff < d.config.UploadWindow {
		score += weightCloseUpload
		reasons = append(reasons, fmt.Sprintf("Uploaded %d minutes apart", int(timeDiff.Minutes())))
	}

	if score < d.config.SuspicionThreshold {
		return Match{}, false
	}
	return Match{
		Student1: a.FileName,
		Student2: b.FileName,
		Score:    score,
		Reasons:  reasons,
		Severity: severityFor(score),
	}, true
}

func severityFor(score int) Severity {
	switch {
	case score >= 100:
		return SeverityCritical
	case score >= 90:
		return SeverityVeryHigh
	case score >= 80:
		return SeverityHigh
	case score >= 70:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
