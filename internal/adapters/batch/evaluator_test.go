package batch

import (
	"context"
	"testing"

	"github.com/cadworks/go_cad_assessment/internal/core/domain"
	"github.com/cadworks/go_cad_assessment/internal/core/geometry"
	"github.com/cadworks/go_cad_assessment/internal/core/grading"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Close() error                 { return nil }

func tetrahedron() domain.Mesh {
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

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	sampler, err := geometry.NewSampler(geometry.SamplerConfig{Points: 256, Seed: 11}, nopLogger{})
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	calc, err := geometry.NewDeviationCalculator(geometry.DefaultDeviationConfig(), nopLogger{})
	if err != nil {
		t.Fatalf("NewDeviationCalculator: %v", err)
	}
	classifier, err := grading.NewClassifier(grading.DefaultScale(), nopLogger{})
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	evaluator, err := NewEvaluator(sampler, calc, classifier, 2, nopLogger{})
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return evaluator
}

func TestEvaluateAll(t *testing.T) {
	e := newTestEvaluator(t)
	reference := tetrahedron()
	subs := []Submission{
		{ID: "fixed-id", Student: "alice.stl", Mesh: tetrahedron()},
		{Student: "bob.stl", Mesh: tetrahedron()},
	}

	results, err := e.EvaluateAll(context.Background(), reference, subs)
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	// Results stay in submission order.
	if results[0].Student != "alice.stl" || results[1].Student != "bob.stl" {
		t.Errorf("results out of order: %s, %s", results[0].Student, results[1].Student)
	}
	if results[0].SubmissionID != "fixed-id" {
		t.Errorf("explicit ID not preserved: %s", results[0].SubmissionID)
	}
	if results[1].SubmissionID == "" {
		t.Error("missing ID not assigned")
	}

	for _, r := range results {
		if r.Err != "" {
			t.Fatalf("unexpected evaluation error for %s: %s", r.Student, r.Err)
		}
		// The same model sampled with the same seed should grade A.
		if r.Grade.Letter != "A" {
			t.Errorf("%s graded %s with mean deviation %v, want A",
				r.Student, r.Grade.Letter, r.Stats.Mean)
		}
		if r.FinalScore != r.Grade.Score-r.Penalty {
			t.Errorf("final score mismatch for %s: %v vs %v - %v",
				r.Student, r.FinalScore, r.Grade.Score, r.Penalty)
		}
	}
}

func TestEvaluateAllIsolatesBadSubmission(t *testing.T) {
	e := newTestEvaluator(t)
	subs := []Submission{
		{Student: "empty.stl", Mesh: domain.Mesh{}},
		{Student: "ok.stl", Mesh: tetrahedron()},
	}

	results, err := e.EvaluateAll(context.Background(), tetrahedron(), subs)
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if results[0].Err == "" {
		t.Error("empty mesh should produce an errored evaluation")
	}
	if results[1].Err != "" {
		t.Errorf("healthy submission affected by a bad one: %s", results[1].Err)
	}
}

func TestEvaluateAllBadReference(t *testing.T) {
	e := newTestEvaluator(t)
	if _, err := e.EvaluateAll(context.Background(), domain.Mesh{}, nil); err == nil {
		t.Error("unsampleable reference must fail the whole batch")
	}
}

func TestNewEvaluatorValidation(t *testing.T) {
	if _, err := NewEvaluator(nil, nil, nil, 0, nopLogger{}); err == nil {
		t.Error("expected error for missing collaborators")
	}
}
