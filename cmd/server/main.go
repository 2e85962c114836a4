package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/baditaflorin/l"
	"github.com/valyala/fasthttp"

	"github.com/cadworks/go_cad_assessment/internal/adapters/batch"
	adapterlogger "github.com/cadworks/go_cad_assessment/internal/adapters/logger"
	"github.com/cadworks/go_cad_assessment/internal/adapters/mesh"
	"github.com/cadworks/go_cad_assessment/internal/config"
	"github.com/cadworks/go_cad_assessment/internal/core/domain"
	coregrading "github.com/cadworks/go_cad_assessment/internal/core/grading"
	coreplagiarism "github.com/cadworks/go_cad_assessment/internal/core/plagiarism"
	"github.com/cadworks/go_cad_assessment/pkg/geometry"
	"github.com/cadworks/go_cad_assessment/pkg/grading"
	"github.com/cadworks/go_cad_assessment/pkg/plagiarism"
	"github.com/cadworks/go_cad_assessment/pkg/report"
)

// Assessment components shared by all requests
var (
	// Grade classifier using the configured scale
	gradeClassifier *grading.GradeClassifier

	// Mesh sampler and deviation calculator
	deviationEvaluator *geometry.DeviationEvaluator

	// Batch evaluator grading whole submission sets
	batchEvaluator *batch.Evaluator

	// Metadata plagiarism detector
	plagiarismDetector *plagiarism.Detector

	// Markdown report generator
	reportGenerator *report.Generator

	// Mesh file loader factory
	meshFactory *mesh.LoaderFactory

	// Service configuration
	cfg *config.Config

	// Logger instance
	logger l.Logger
)

// MeshFile is one uploaded CAD file, base64-encoded.
type MeshFile struct {
	ID         string `json:"id,omitempty"`
	Student    string `json:"student"`
	FileName   string `json:"file_name"`
	Data       string `json:"data"`
	UploadedAt string `json:"uploaded_at,omitempty"`
}

// ClassifyRequest represents a grade classification request
type ClassifyRequest struct {
	MeanDeviation *float64           `json:"mean_deviation"`
	MaxDeviation  *float64           `json:"max_deviation,omitempty"`
	Thresholds    map[string]float64 `json:"thresholds,omitempty"`
}

// ClassifyResponse represents a grade classification response
type ClassifyResponse struct {
	Letter     string   `json:"letter"`
	Score      float64  `json:"score"`
	Deviation  float64  `json:"deviation"`
	Threshold  *float64 `json:"threshold,omitempty"`
	Penalty    float64  `json:"penalty"`
	FinalScore float64  `json:"final_score"`
	Passed     bool     `json:"passed"`
}

// EvaluateRequest represents a batch evaluation request
type EvaluateRequest struct {
	Reference   MeshFile   `json:"reference"`
	Submissions []MeshFile `json:"submissions"`
}

// StatsResponse carries the deviation statistics of one submission
type StatsResponse struct {
	Mean      float64 `json:"mean"`
	Max       float64 `json:"max"`
	Std       float64 `json:"std"`
	Median    float64 `json:"median"`
	P95       float64 `json:"p95"`
	P99       float64 `json:"p99"`
	Hausdorff float64 `json:"hausdorff"`
}

// EvaluationResponse carries the assessment outcome of one submission
type EvaluationResponse struct {
	SubmissionID string        `json:"submission_id"`
	Student      string        `json:"student"`
	Letter       string        `json:"letter,omitempty"`
	Score        float64       `json:"score"`
	Threshold    *float64      `json:"threshold,omitempty"`
	Penalty      float64       `json:"penalty"`
	FinalScore   float64       `json:"final_score"`
	Stats        StatsResponse `json:"stats"`
	Error        string        `json:"error,omitempty"`
}

// EvaluateResponse represents a batch evaluation response
type EvaluateResponse struct {
	Evaluations []EvaluationResponse `json:"evaluations"`
}

// PlagiarismEntry is the metadata footprint of one submission. Either the
// raw file data or a precomputed size/hash pair may be supplied.
type PlagiarismEntry struct {
	Student    string `json:"student"`
	Data       string `json:"data,omitempty"`
	FileSize   int64  `json:"file_size,omitempty"`
	FileHash   string `json:"file_hash,omitempty"`
	UploadedAt string `json:"uploaded_at"`
}

// PlagiarismRequest represents a plagiarism analysis request
type PlagiarismRequest struct {
	Submissions []PlagiarismEntry `json:"submissions"`
}

// MatchResponse is one suspicious submission pair
type MatchResponse struct {
	Student1 string   `json:"student1"`
	Student2 string   `json:"student2"`
	Score    int      `json:"score"`
	Reasons  []string `json:"reasons"`
	Severity string   `json:"severity"`
}

// PlagiarismResponse represents a plagiarism analysis response
type PlagiarismResponse struct {
	Matches []MatchResponse `json:"matches"`
}

// ReportsResponse carries the full assessment outcome plus the zipped
// markdown report bundle.
type ReportsResponse struct {
	Evaluations []EvaluationResponse `json:"evaluations"`
	Matches     []MatchResponse      `json:"matches"`
	Bundle      string               `json:"bundle"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

func main() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err = createLogger(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	logger.Info("Starting CAD assessment HTTP server",
		"port", cfg.Port,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"max_request_size", cfg.MaxRequestSize,
		"sample_points", cfg.SamplePoints,
	)

	initAssessmentComponents()

	server := &fasthttp.Server{
		Handler:               requestHandler,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		MaxRequestBodySize:    cfg.MaxRequestSize,
		DisableKeepalive:      false,
		TCPKeepalive:          true,
		TCPKeepalivePeriod:    3 * time.Minute,
		MaxConnsPerIP:         0, // unlimited
		MaxRequestsPerConn:    0, // unlimited
		MaxIdleWorkerDuration: 10 * time.Second,
		Logger:                nil, // we'll handle logging ourselves
	}

	// Set up graceful shutdown
	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		logger.Info("Shutting down server...")
		if err := server.Shutdown(); err != nil {
			logger.Error("Error during server shutdown", "error", err)
		}
		close(idleConnsClosed)
	}()

	logger.Info("Server listening", "address", fmt.Sprintf(":%d", cfg.Port))
	if err := server.ListenAndServe(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Error("Server error", "error", err)
	}

	<-idleConnsClosed
	logger.Info("Server stopped")
}

// initAssessmentComponents wires the assessment pipeline from the loaded
// configuration. Any failure here is fatal.
func initAssessmentComponents() {
	scale, err := cfg.Scale()
	if err != nil {
		logger.Error("Invalid grading scale", "error", err)
		os.Exit(1)
	}

	gradeClassifier, err = grading.New(
		grading.WithScale(scale),
		grading.WithLogger(logger),
		grading.WithWarmUp(cfg.WarmUp),
	)
	if err != nil {
		logger.Error("Failed to initialize grade classifier", "error", err)
		os.Exit(1)
	}

	deviationEvaluator, err = geometry.New(
		geometry.WithSamplePoints(cfg.SamplePoints),
		geometry.WithSeed(cfg.SampleSeed),
		geometry.WithWorkers(cfg.Workers),
		geometry.WithLogger(logger),
		geometry.WithWarmUp(cfg.WarmUp),
	)
	if err != nil {
		logger.Error("Failed to initialize deviation evaluator", "error", err)
		os.Exit(1)
	}

	batchEvaluator, err = batch.NewEvaluator(
		deviationEvaluator,
		deviationEvaluator,
		gradeClassifier,
		cfg.Workers,
		adapterlogger.FromExisting(logger),
	)
	if err != nil {
		logger.Error("Failed to initialize batch evaluator", "error", err)
		os.Exit(1)
	}

	plagiarismDetector, err = plagiarism.New(
		plagiarism.WithSuspicionThreshold(cfg.SuspicionThreshold),
		plagiarism.WithNearSizeBytes(cfg.NearSizeBytes),
		plagiarism.WithUploadWindow(cfg.UploadWindow),
		plagiarism.WithLogger(logger),
	)
	if err != nil {
		logger.Error("Failed to initialize plagiarism detector", "error", err)
		os.Exit(1)
	}

	reportGenerator, err = report.New(
		report.WithScale(scale),
		report.WithLogger(logger),
	)
	if err != nil {
		logger.Error("Failed to initialize report generator", "error", err)
		os.Exit(1)
	}

	meshFactory = mesh.NewLoaderFactory()

	logger.Info("Assessment components initialized successfully",
		"warm_up", cfg.WarmUp,
		"cpus", runtime.NumCPU(),
	)
}

// requestHandler is the main fasthttp request handler
func requestHandler(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()

	ctx.Response.Header.Set("Content-Type", "application/json")
	ctx.Response.Header.Set("Server", "CADAssessmentServer")

	switch string(ctx.Path()) {
	case "/health":
		handleHealthCheck(ctx)
	case "/classify":
		handleClassify(ctx)
	case "/evaluate":
		handleEvaluate(ctx)
	case "/plagiarism":
		handlePlagiarism(ctx)
	case "/reports":
		handleReports(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		writeJSONError(ctx, "Not found")
	}

	duration := time.Since(startTime)
	logger.Info("Request processed",
		"method", string(ctx.Method()),
		"path", string(ctx.Path()),
		"status", ctx.Response.StatusCode(),
		"ip", ctx.RemoteIP().String(),
		"duration", duration,
	)
}

// handleHealthCheck responds to health check requests
func handleHealthCheck(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	response := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}
	writeJSONResponse(ctx, response)
}

// handleClassify handles grade classification requests
func handleClassify(ctx *fasthttp.RequestCtx) {
	if !ctx.IsPost() {
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		writeJSONError(ctx, "Method not allowed")
		return
	}

	var req ClassifyRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		writeJSONError(ctx, "Invalid request: "+err.Error())
		return
	}

	if req.MeanDeviation == nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		writeJSONError(ctx, "mean_deviation is required")
		return
	}

	classifier := gradeClassifier
	if len(req.Thresholds) > 0 {
		bounds := make(map[string]float64, len(req.Thresholds)+1)
		for letter, bound := range req.Thresholds {
			bounds[letter] = bound
		}
		if _, ok := bounds["F"]; !ok {
			bounds["F"] = math.Inf(1)
		}
		custom, err := grading.New(
			grading.WithBounds(bounds),
			grading.WithLogger(logger),
		)
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			writeJSONError(ctx, "Invalid thresholds: "+err.Error())
			return
		}
		classifier = custom
	}

	c, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := classifier.Classify(c, *req.MeanDeviation)
	if err != nil {
		if errors.Is(err, coregrading.ErrInvalidMeasurement) {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
		} else {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		}
		writeJSONError(ctx, err.Error())
		return
	}

	var penalty float64
	if req.MaxDeviation != nil {
		penalty = coregrading.OutlierPenalty(*req.MaxDeviation)
	}
	finalScore := result.Score - penalty
	if finalScore < 0 {
		finalScore = 0
	}

	response := ClassifyResponse{
		Letter:     result.Letter,
		Score:      result.Score,
		Deviation:  result.Deviation,
		Threshold:  finiteOrNil(result.Threshold),
		Penalty:    penalty,
		FinalScore: finalScore,
		Passed:     result.Letter != "F",
	}

	ctx.SetStatusCode(fasthttp.StatusOK)
	writeJSONResponse(ctx, response)
}

// handleEvaluate handles batch mesh evaluation requests
func handleEvaluate(ctx *fasthttp.RequestCtx) {
	if !ctx.IsPost() {
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		writeJSONError(ctx, "Method not allowed")
		return
	}

	var req EvaluateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		writeJSONError(ctx, "Invalid request: "+err.Error())
		return
	}

	evals, status, errMsg := runEvaluation(req)
	if errMsg != "" {
		ctx.SetStatusCode(status)
		writeJSONError(ctx, errMsg)
		return
	}

	ctx.SetStatusCode(fasthttp.StatusOK)
	writeJSONResponse(ctx, EvaluateResponse{Evaluations: toEvaluationResponses(evals)})
}

// handlePlagiarism handles metadata plagiarism analysis requests
func handlePlagiarism(ctx *fasthttp.RequestCtx) {
	if !ctx.IsPost() {
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		writeJSONError(ctx, "Method not allowed")
		return
	}

	var req PlagiarismRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		writeJSONError(ctx, "Invalid request: "+err.Error())
		return
	}

	if len(req.Submissions) < 2 {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		writeJSONError(ctx, "At least two submissions are required")
		return
	}

	metadata := make([]coreplagiarism.Metadata, 0, len(req.Submissions))
	for _, entry := range req.Submissions {
		md, err := entryMetadata(entry)
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			writeJSONError(ctx, err.Error())
			return
		}
		metadata = append(metadata, md)
	}

	c, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	matches, err := plagiarismDetector.Analyze(c, metadata)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		writeJSONError(ctx, err.Error())
		return
	}

	ctx.SetStatusCode(fasthttp.StatusOK)
	writeJSONResponse(ctx, PlagiarismResponse{Matches: toMatchResponses(matches)})
}

// handleReports runs the full assessment pipeline and returns the zipped
// markdown report bundle.
func handleReports(ctx *fasthttp.RequestCtx) {
	if !ctx.IsPost() {
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		writeJSONError(ctx, "Method not allowed")
		return
	}

	var req EvaluateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		writeJSONError(ctx, "Invalid request: "+err.Error())
		return
	}

	evals, status, errMsg := runEvaluation(req)
	if errMsg != "" {
		ctx.SetStatusCode(status)
		writeJSONError(ctx, errMsg)
		return
	}

	metadata := make([]coreplagiarism.Metadata, 0, len(req.Submissions))
	for _, f := range req.Submissions {
		raw, err := base64.StdEncoding.DecodeString(f.Data)
		if err != nil {
			continue
		}
		metadata = append(metadata, coreplagiarism.Metadata{
			FileName:   f.Student,
			FileSize:   int64(len(raw)),
			FileHash:   fileHash(raw),
			UploadTime: parseUploadTime(f.UploadedAt),
		})
	}

	c, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	matches, err := plagiarismDetector.Analyze(c, metadata)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		writeJSONError(ctx, err.Error())
		return
	}

	bundle, err := reportGenerator.Bundle(evals, matches)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		writeJSONError(ctx, err.Error())
		return
	}

	response := ReportsResponse{
		Evaluations: toEvaluationResponses(evals),
		Matches:     toMatchResponses(matches),
		Bundle:      base64.StdEncoding.EncodeToString(bundle),
	}

	ctx.SetStatusCode(fasthttp.StatusOK)
	writeJSONResponse(ctx, response)
}

// Helper functions

// runEvaluation decodes the uploaded meshes and grades every submission.
func runEvaluation(req EvaluateRequest) ([]domain.Evaluation, int, string) {
	if len(req.Submissions) == 0 {
		return nil, fasthttp.StatusBadRequest, "At least one submission is required"
	}

	reference, err := decodeMesh(req.Reference)
	if err != nil {
		return nil, fasthttp.StatusBadRequest, "Invalid reference mesh: " + err.Error()
	}

	submissions := make([]batch.Submission, 0, len(req.Submissions))
	for _, f := range req.Submissions {
		m, err := decodeMesh(f)
		if err != nil {
			// Contained per submission: the batch evaluator records the
			// failure without aborting the rest.
			m = domain.Mesh{}
		}
		submissions = append(submissions, batch.Submission{
			ID:      f.ID,
			Student: f.Student,
			Mesh:    m,
		})
	}

	c, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	evals, err := batchEvaluator.EvaluateAll(c, reference, submissions)
	if err != nil {
		return nil, fasthttp.StatusInternalServerError, err.Error()
	}
	return evals, fasthttp.StatusOK, ""
}

// decodeMesh decodes a base64 mesh file using the loader for its extension.
func decodeMesh(f MeshFile) (domain.Mesh, error) {
	loader, err := meshFactory.ForFile(f.FileName)
	if err != nil {
		return domain.Mesh{}, err
	}
	raw, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		return domain.Mesh{}, fmt.Errorf("decoding file data: %w", err)
	}
	return loader.Load(bytes.NewReader(raw))
}

// entryMetadata builds plagiarism metadata from a request entry.
func entryMetadata(entry PlagiarismEntry) (coreplagiarism.Metadata, error) {
	if entry.Student == "" {
		return coreplagiarism.Metadata{}, errors.New("student is required for every submission")
	}
	uploadedAt := parseUploadTime(entry.UploadedAt)

	if entry.Data != "" {
		raw, err := base64.StdEncoding.DecodeString(entry.Data)
		if err != nil {
			return coreplagiarism.Metadata{}, fmt.Errorf("decoding data for %s: %w", entry.Student, err)
		}
		return coreplagiarism.ExtractMetadata(entry.Student, raw, uploadedAt), nil
	}

	return coreplagiarism.Metadata{
		FileName:   entry.Student,
		FileSize:   entry.FileSize,
		FileHash:   entry.FileHash,
		UploadTime: uploadedAt,
	}, nil
}

func parseUploadTime(value string) time.Time {
	if value == "" {
		return time.Now()
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Now()
	}
	return t
}

func fileHash(data []byte) string {
	return coreplagiarism.ExtractMetadata("", data, time.Time{}).FileHash
}

func toEvaluationResponses(evals []domain.Evaluation) []EvaluationResponse {
	out := make([]EvaluationResponse, 0, len(evals))
	for _, e := range evals {
		out = append(out, EvaluationResponse{
			SubmissionID: e.SubmissionID,
			Student:      e.Student,
			Letter:       e.Grade.Letter,
			Score:        e.Grade.Score,
			Threshold:    finiteOrNil(e.Grade.Threshold),
			Penalty:      e.Penalty,
			FinalScore:   e.FinalScore,
			Stats: StatsResponse{
				Mean:      e.Stats.Mean,
				Max:       e.Stats.Max,
				Std:       e.Stats.Std,
				Median:    e.Stats.Median,
				P95:       e.Stats.P95,
				P99:       e.Stats.P99,
				Hausdorff: e.Stats.Hausdorff,
			},
			Error: e.Err,
		})
	}
	return out
}

func toMatchResponses(matches []coreplagiarism.Match) []MatchResponse {
	out := make([]MatchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, MatchResponse{
			Student1: m.Student1,
			Student2: m.Student2,
			Score:    m.Score,
			Reasons:  m.Reasons,
			Severity: string(m.Severity),
		})
	}
	return out
}

// finiteOrNil drops non-finite thresholds from JSON responses.
func finiteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// writeJSONResponse writes a JSON response to the context
func writeJSONResponse(ctx *fasthttp.RequestCtx, data interface{}) {
	response, err := json.Marshal(data)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		logger.Error("Error marshaling JSON response", "error", err)
		writeJSONError(ctx, "Internal server error")
		return
	}

	ctx.SetBody(response)
}

// writeJSONError writes a JSON error response to the context
func writeJSONError(ctx *fasthttp.RequestCtx, message string) {
	errResponse := ErrorResponse{
		Error: message,
	}

	response, err := json.Marshal(errResponse)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		logger.Error("Error marshaling JSON error response", "error", err)
		ctx.SetBodyString(`{"error":"Internal server error"}`)
		return
	}

	ctx.SetBody(response)
}

// createLogger creates and configures a logger
func createLogger(logFile string) (l.Logger, error) {
	factory := l.NewStandardFactory()

	var output io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
	}

	logger, err := factory.CreateLogger(l.Config{
		Output:      output,
		JsonFormat:  true,
		AsyncWrite:  true,
		BufferSize:  1024 * 1024,       // 1MB
		MaxFileSize: 100 * 1024 * 1024, // 100MB
		MaxBackups:  5,
		AddSource:   true,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return logger, nil
}
