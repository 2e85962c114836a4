// Package report renders per-student assessment reports and class summaries
// as markdown, and bundles them into a single zip archive for distribution.
package report

import (
	"archive/zip"
	"bytes"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/cadworks/go_cad_assessment/internal/core/domain"
	"github.com/cadworks/go_cad_assessment/internal/core/grading"
	"github.com/cadworks/go_cad_assessment/internal/core/plagiarism"
	"github.com/cadworks/go_cad_assessment/internal/ports"
)

// maxSummaryPairs limits how many suspicious pairs the class summary lists.
const maxSummaryPairs = 5

// Generator renders assessment reports.
type Generator struct {
	logger ports.Logger
	now    func() time.Time
}

// NewGenerator creates a report generator.
func NewGenerator(logger ports.Logger) *Generator {
	return &Generator{logger: logger, now: time.Now}
}

// StudentReport renders the markdown report for one evaluated submission.
// Matches may include pairs not involving this student; they are filtered.
func (g *Generator) StudentReport(eval domain.Evaluation, scale grading.Scale, matches []plagiarism.Match) string {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	fmt.Fprintf(bb, "# CAD ASSESSMENT REPORT\n## Student: %s\n## Date: %s\n\n---\n\n",
		eval.Student, g.now().Format("2006-01-02 15:04"))

	fmt.Fprintf(bb, "## GEOMETRIC ACCURACY EVALUATION\n\n### Overall Performance\n")
	fmt.Fprintf(bb, "- **Grade:** %s (%.1f%%)\n", eval.Grade.Letter, eval.FinalScore)
	fmt.Fprintf(bb, "- **Mean Deviation:** %.4f units\n", eval.Stats.Mean)
	fmt.Fprintf(bb, "- **Maximum Deviation:** %.4f units\n", eval.Stats.Max)
	fmt.Fprintf(bb, "- **Standard Deviation:** %.4f units\n", eval.Stats.Std)
	if eval.Penalty > 0 {
		fmt.Fprintf(bb, "- **Outlier Penalty:** -%.0f points\n", eval.Penalty)
	}

	fmt.Fprintf(bb, "\n### Detailed Metrics\n")
	fmt.Fprintf(bb, "- **Median Deviation:** %.4f units\n", eval.Stats.Median)
	fmt.Fprintf(bb, "- **95th Percentile:** %.4f units\n", eval.Stats.P95)
	fmt.Fprintf(bb, "- **99th Percentile:** %.4f units\n", eval.Stats.P99)
	fmt.Fprintf(bb, "- **Hausdorff Distance:** %.4f units\n", eval.Stats.Hausdorff)

	fmt.Fprintf(bb, "\n### Assessment Summary\n%s\n", narrativeFor(eval.Grade.Letter))

	fmt.Fprintf(bb, "\n---\n\n## PLAGIARISM CHECK\n\n### Similarity Analysis\n")
	own := matchesFor(eval.Student, matches)
	if len(own) == 0 {
		fmt.Fprintf(bb, "**No plagiarism detected.** Work appears to be original.\n")
	} else {
		fmt.Fprintf(bb, "**Potential Issues Detected:**\n")
		for _, m := range own {
			other := m.Student2
			if other == eval.Student {
				other = m.Student1
			}
			fmt.Fprintf(bb, "- Similar to: %s\n", other)
			fmt.Fprintf(bb, "  - Suspicion Score: %d%%\n", m.Score)
			fmt.Fprintf(bb, "  - Severity: %s\n", m.Severity)
			fmt.Fprintf(bb, "  - Evidence: %s\n\n", strings.Join(m.Reasons, ", "))
		}
	}

	fmt.Fprintf(bb, "\n---\n\n## IMPROVEMENT RECOMMENDATIONS\n\n")
	fmt.Fprintf(bb, "1. **Dimensional Accuracy:** ")
	if eval.Stats.Std > 0.5 {
		fmt.Fprintf(bb, "Focus on consistent precision throughout the model.\n")
	} else {
		fmt.Fprintf(bb, "Maintain current level of precision.\n")
	}
	fmt.Fprintf(bb, "2. **Critical Features:** ")
	if eval.Stats.Max > 2*eval.Stats.Mean {
		fmt.Fprintf(bb, "Check for missing or misplaced features.\n")
	} else {
		fmt.Fprintf(bb, "All features appear correctly placed.\n")
	}
	fmt.Fprintf(bb, "3. **Modeling Technique:** Review workflow for areas with highest deviation.\n")

	fmt.Fprintf(bb, "\n---\n\n## GRADING SCALE REFERENCE\n")
	writeScaleReference(bb, scale)
	fmt.Fprintf(bb, "\n---\n\n*Report generated by CAD Educational Assessment System*\n")

	return bb.String()
}

// ClassSummary renders aggregate statistics over all evaluated submissions.
func (g *Generator) ClassSummary(evals []domain.Evaluation, matches []plagiarism.Match) string {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	fmt.Fprintf(bb, "# CLASS ASSESSMENT SUMMARY\n## Date: %s\n\n---\n\n",
		g.now().Format("2006-01-02 15:04"))

	var scores []float64
	letters := make(map[string]int)
	failed := 0
	for _, e := range evals {
		if e.Err != "" {
			failed++
			continue
		}
		scores = append(scores, e.FinalScore)
		letters[e.Grade.Letter]++
	}

	fmt.Fprintf(bb, "## Overall Statistics\n\n")
	fmt.Fprintf(bb, "- **Total Students:** %d\n", len(scores))
	if failed > 0 {
		fmt.Fprintf(bb, "- **Failed Evaluations:** %d\n", failed)
	}
	if len(scores) > 0 {
		fmt.Fprintf(bb, "- **Average Score:** %.1f%%\n", meanOf(scores))
		fmt.Fprintf(bb, "- **Median Score:** %.1f%%\n", medianOf(scores))
		fmt.Fprintf(bb, "- **Highest Score:** %.1f%%\n", maxOf(scores))
		fmt.Fprintf(bb, "- **Lowest Score:** %.1f%%\n", minOf(scores))
		fmt.Fprintf(bb, "- **Standard Deviation:** %.1f%%\n", stdOf(scores))
	}

	fmt.Fprintf(bb, "\n## Grade Distribution\n\n")
	for _, letter := range sortedLetters(letters) {
		count := letters[letter]
		fmt.Fprintf(bb, "- **%s Grade:** %d students (%.1f%%)\n",
			letter, count, float64(count)/float64(len(scores))*100)
	}

	fmt.Fprintf(bb, "\n## Plagiarism Analysis\n\n")
	if len(matches) == 0 {
		fmt.Fprintf(bb, "- **No plagiarism patterns detected**\n")
	} else {
		fmt.Fprintf(bb, "- **Suspicious Pairs Found:** %d\n", len(matches))
		fmt.Fprintf(bb, "- **Pairs Requiring Investigation:**\n")
		top := matches
		if len(top) > maxSummaryPairs {
			top = top[:maxSummaryPairs]
		}
		for _, m := range top {
			fmt.Fprintf(bb, "  - %s vs %s (%d%%)\n", m.Student1, m.Student2, m.Score)
		}
	}

	fmt.Fprintf(bb, "\n---\n\n*Report generated by CAD Educational Assessment System*\n")
	return bb.String()
}

// Bundle writes one report per evaluation plus the class summary into a
// zip archive.
func (g *Generator) Bundle(evals []domain.Evaluation, matches []plagiarism.Match, scale grading.Scale) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, eval := range evals {
		if eval.Err != "" {
			continue
		}
		name := reportFileName(eval.Student)
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("report: creating %s: %w", name, err)
		}
		if _, err := w.Write([]byte(g.StudentReport(eval, scale, matches))); err != nil {
			return nil, fmt.Errorf("report: writing %s: %w", name, err)
		}
	}

	w, err := zw.Create("class_summary.md")
	if err != nil {
		return nil, fmt.Errorf("report: creating class summary: %w", err)
	}
	if _, err := w.Write([]byte(g.ClassSummary(evals, matches))); err != nil {
		return nil, fmt.Errorf("report: writing class summary: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("report: closing archive: %w", err)
	}

	g.logger.Info("Report bundle generated",
		"reports", len(evals),
		"bytes", buf.Len(),
	)
	return buf.Bytes(), nil
}

func reportFileName(student string) string {
	base := filepath.Base(student)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_report.md"
}

func matchesFor(student string, matches []plagiarism.Match) []plagiarism.Match {
	var own []plagiarism.Match
	for _, m := range matches {
		if m.Student1 == student || m.Student2 == student {
			own = append(own, m)
		}
	}
	return own
}

func narrativeFor(letter string) string {
	switch letter {
	case "A":
		return "**Excellent Work!** Model shows exceptional accuracy with professional-level precision."
	case "B":
		return "**Good Work!** Most dimensions are accurate with minor areas for improvement."
	case "C":
		return "**Acceptable.** Basic geometry is correct but lacks precision in several areas."
	case "D":
		return "**Needs Improvement.** Significant geometric inaccuracies detected."
	default:
		return "**Unsatisfactory.** Major geometric problems require complete revision."
	}
}

func writeScaleReference(bb *bytebufferpool.ByteBuffer, scale grading.Scale) {
	bands := scale.Bands()
	for i, b := range bands {
		if math.IsInf(b.Bound, 1) {
			prev := bands[i-1].Bound
			fmt.Fprintf(bb, "- **%s Grade:** >%.3f units mean deviation (<%.0f%%)\n",
				b.Letter, prev, bands[i-1].ScoreLo)
			continue
		}
		fmt.Fprintf(bb, "- **%s Grade:** <=%.3f units mean deviation (%.0f-%.0f%%)\n",
			b.Letter, b.Bound, b.ScoreLo, b.ScoreHi)
	}
}

func sortedLetters(counts map[string]int) []string {
	letters := make([]string, 0, len(counts))
	for l := range counts {
		letters = append(letters, l)
	}
	sort.Strings(letters)
	return letters
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func medianOf(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func stdOf(values []float64) float64 {
	m := meanOf(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
