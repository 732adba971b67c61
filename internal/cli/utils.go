// Package cli provides output helpers for the Mizan command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/mizan/internal/evaluation"
	"github.com/hyperjump/mizan/internal/models"
	"github.com/hyperjump/mizan/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const (
	separator      = "─────────────────────────────────────────────────────────"
	passagePreview = 200
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteAnswer writes an answer to w in the given format.
func WriteAnswer(w io.Writer, resp *models.AskResponse, format OutputFormat, showSources bool) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s\n\n", resp.Answer)
	fmt.Fprintf(w, "[%s", resp.Status)
	if resp.Kind != "" {
		fmt.Fprintf(w, " | %s", resp.Kind)
	}
	fmt.Fprintf(w, " | %dms]\n", resp.QueryTime)
	if showSources && len(resp.Sources) > 0 {
		fmt.Fprintln(w, "\n--- Sources ---")
		for i, src := range resp.Sources {
			writePassage(w, i+1, src.CaseID, src.Score, src.Text)
		}
	}
	return nil
}

// WriteRetrieval writes retrieved passages to w in the given format.
func WriteRetrieval(w io.Writer, resp *models.RetrieveResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\nFound %d passages in %dms\n\n", len(resp.Results), resp.QueryTime)
	for i, r := range resp.Results {
		writePassage(w, i+1, r.CaseID, r.Score, r.Text)
	}
	return nil
}

// WriteKeywordHits writes keyword hits to w in the given format.
func WriteKeywordHits(w io.Writer, query string, hits []models.KeywordHit, format OutputFormat) error {
	if format == OutputJSON {
		if hits == nil {
			hits = []models.KeywordHit{}
		}
		return writeJSON(w, map[string]interface{}{"query": query, "hits": hits})
	}
	fmt.Fprintf(w, "\nFound %d keyword matches\n\n", len(hits))
	for i, h := range hits {
		writePassage(w, i+1, h.CaseID, h.Score, h.Text)
	}
	return nil
}

func writePassage(w io.Writer, rank int, caseID string, score float64, text string) {
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "Rank: %d | Score: %.4f | Case: %s\n", rank, score, caseID)
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(text, passagePreview))
}

// WriteMetrics writes an evaluation report to w in the given format.
func WriteMetrics(w io.Writer, report *evaluation.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "\nEvaluated %d questions (%d skipped) in %s\n\n", report.Questions, report.Skipped, report.Took.Round(time.Millisecond))
	fmt.Fprintf(w, "%-8s %-10s %-10s %-10s\n", "k", "Recall@k", "MRR@k", "Hit@k")
	for _, m := range report.Metrics {
		fmt.Fprintf(w, "%-8d %-10.4f %-10.4f %-10.4f\n", m.K, m.Recall, m.MRR, m.Hit)
	}
	return nil
}

// Status is the summary printed by the status command.
type Status struct {
	Cases            int64             `json:"cases"`
	Passages         int64             `json:"passages"`
	Index            *models.IndexInfo `json:"index,omitempty"`
	DatasetPath      string            `json:"dataset_path"`
	DatasetCurrent   *bool             `json:"dataset_current,omitempty"`
	KeywordDocuments uint64            `json:"keyword_documents"`
	DiskUsageBytes   int64             `json:"disk_usage_bytes"`
}

// WriteStatus writes index status to w in the given format.
func WriteStatus(w io.Writer, st *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Cases:             %d\n", st.Cases)
	fmt.Fprintf(w, "Passages:          %d\n", st.Passages)
	fmt.Fprintf(w, "Keyword documents: %d\n", st.KeywordDocuments)
	fmt.Fprintf(w, "Disk usage:        %s\n", FormatBytes(st.DiskUsageBytes))
	if st.Index == nil {
		fmt.Fprintln(w, "Index:             not built")
		return nil
	}
	fmt.Fprintf(w, "Index build:       %s (%s)\n", st.Index.BuildID, st.Index.BuiltAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Index rows:        %d x %d (%s pooling)\n", st.Index.Rows, st.Index.Dimensions, st.Index.EmbeddingMethod)
	if st.DatasetCurrent != nil {
		state := "up to date"
		if !*st.DatasetCurrent {
			state = "changed since build"
		}
		fmt.Fprintf(w, "Dataset:           %s (%s)\n", st.DatasetPath, state)
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
