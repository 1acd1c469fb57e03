package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/sdejongh/fwdiffer/pkg/models"
)

// JSONFormatter renders the report as a single JSON document for scripting
type JSONFormatter struct {
	opts Options
}

// JSONReport is the document written by JSONFormatter
type JSONReport struct {
	ID         string                 `json:"id"`
	Generated  string                 `json:"generated"`
	OldRoot    string                 `json:"old_root"`
	NewRoot    string                 `json:"new_root"`
	Threshold  int                    `json:"similarity_threshold"`
	Status     string                 `json:"status"`
	DurationMs int64                  `json:"duration_ms"`
	Modified   []models.ModifiedEntry `json:"modified"`
	Added      []string               `json:"added"`
	Deleted    []string               `json:"deleted"`
	Skipped    []JSONSkipped          `json:"skipped,omitempty"`
	Counts     *JSONCounts            `json:"counts,omitempty"`
}

// JSONSkipped is a pair that could not be evaluated
type JSONSkipped struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// JSONCounts holds the totals requested with count-changes
type JSONCounts struct {
	Modified int `json:"modified"`
	Added    int `json:"added"`
	Deleted  int `json:"deleted"`
}

// NewJSONFormatter creates a JSON formatter
func NewJSONFormatter(opts Options) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Format writes r as indented JSON
func (f *JSONFormatter) Format(w io.Writer, r *models.DiffResult) error {
	report := JSONReport{
		ID:         r.ID,
		Generated:  time.Now().Format(time.RFC3339),
		OldRoot:    r.OldRoot,
		NewRoot:    r.NewRoot,
		Threshold:  r.Threshold,
		Status:     string(r.Status()),
		DurationMs: r.Duration.Milliseconds(),
		Modified:   Dedupe(r.Modified),
		Added:      nonNil(r.Added),
		Deleted:    nonNil(r.Removed),
	}
	for _, s := range r.Skipped {
		report.Skipped = append(report.Skipped, JSONSkipped{Name: s.Name, Error: s.Err.Error()})
	}
	if f.opts.CountChanges {
		report.Counts = &JSONCounts{
			Modified: len(report.Modified),
			Added:    len(report.Added),
			Deleted:  len(report.Deleted),
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
