package plagiarism

import (
	"context"
	"testing"
	"time"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Close() error                 { return nil }

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector(DefaultConfig(), nopLogger{})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

func TestExtractMetadata(t *testing.T) {
	now := time.Now()
	m := ExtractMetadata("bracket.stl", []byte("solid bracket"), now)
	if m.FileName != "bracket.stl" {
		t.Errorf("FileName = %s", m.FileName)
	}
	if m.FileSize != int64(len("solid bracket")) {
		t.Errorf("FileSize = %d", m.FileSize)
	}
	if len(m.FileHash) != 32 {
		t.Errorf("FileHash = %q, want 32 hex chars", m.FileHash)
	}
	if !m.UploadTime.Equal(now) {
		t.Errorf("UploadTime = %v", m.UploadTime)
	}

	// Same bytes hash identically, different bytes do not.
	m2 := ExtractMetadata("copy.stl", []byte("solid bracket"), now)
	if m2.FileHash != m.FileHash {
		t.Error("identical contents should hash identically")
	}
	m3 := ExtractMetadata("other.stl", []byte("solid other"), now)
	if m3.FileHash == m.FileHash {
		t.Error("different contents should hash differently")
	}
}

func TestAnalyzeExactCopy(t *testing.T) {
	now := time.Now()
	data := []byte("solid part\nfacet\nendsolid")
	subs := []Metadata{
		ExtractMetadata("alice.stl", data, now),
		ExtractMetadata("bob.stl", data, now.Add(90*time.Second)),
	}

	matches, err := newTestDetector(t).Analyze(context.Background(), subs)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	m := matches[0]
	// Identical hash + identical size + close upload.
	if m.Score != 200 {
		t.Errorf("score = %d, want 200", m.Score)
	}
	if m.Severity != SeverityCritical {
		t.Errorf("severity = %s, want %s", m.Severity, SeverityCritical)
	}
	if len(m.Reasons) != 3 {
		t.Errorf("reasons = %v", m.Reasons)
	}
}

func TestAnalyzeBelowThreshold(t *testing.T) {
	now := time.Now()
	subs := []Metadata{
		{FileName: "a.obj", FileSize: 1000, FileHash: "aa", UploadTime: now},
		{FileName: "b.obj", FileSize: 5000, FileHash: "bb", UploadTime: now.Add(2 * time.Hour)},
	}
	matches, err := newTestDetector(t).Analyze(context.Background(), subs)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("unrelated submissions matched: %+v", matches)
	}
}

func TestAnalyzeNearSizeAndTime(t *testing.T) {
	now := time.Now()
	subs := []Metadata{
		{FileName: "a.obj", FileSize: 4000, FileHash: "aa", UploadTime: now},
		{FileName: "b.obj", FileSize: 4100, FileHash: "bb", UploadTime: now.Add(time.Minute)},
	}
	matches, err := newTestDetector(t).Analyze(context.Background(), subs)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	// Near size (35) + close upload (40) = 75: medium.
	if matches[0].Score != 75 {
		t.Errorf("score = %d, want 75", matches[0].Score)
	}
	if matches[0].Severity != SeverityMedium {
		t.Errorf("severity = %s, want %s", matches[0].Severity, SeverityMedium)
	}
}

func TestAnalyzeSortsByScore(t *testing.T) {
	now := time.Now()
	data := []byte("identical contents")
	subs := []Metadata{
		ExtractMetadata("a.obj", data, now),
		ExtractMetadata("b.obj", data, now),
		{FileName: "c.obj", FileSize: int64(len(data)) + 100, FileHash: "cc", UploadTime: now},
	}
	matches, err := newTestDetector(t).Analyze(context.Background(), subs)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("matches not sorted by score: %+v", matches)
		}
	}
}

func TestDetectorConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "Zero threshold", cfg: Config{SuspicionThreshold: 0}},
		{name: "Negative near size", cfg: Config{SuspicionThreshold: 70, NearSizeBytes: -1}},
		{name: "Negative window", cfg: Config{SuspicionThreshold: 70, UploadWindow: -time.Second}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewDetector(tc.cfg, nopLogger{}); err == nil {
				t.Error("expected config validation error")
			}
		})
	}
}
