package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/sdejongh/fwdiffer/pkg/models"
)

// Options controls report rendering
type Options struct {
	// Color enables ANSI colors in the human report
	Color bool
	// CountChanges appends modified/added/deleted totals
	CountChanges bool
}

// Formatter renders a comparison result
type Formatter interface {
	// Format writes the report for r to w
	Format(w io.Writer, r *models.DiffResult) error

	// Name returns the formatter name
	Name() string
}

// NewFormatter returns the formatter registered under name ("human" or "json")
func NewFormatter(name string, opts Options) (Formatter, error) {
	switch name {
	case "", "human":
		return NewHumanFormatter(opts), nil
	case "json":
		return NewJSONFormatter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (use: human, json)", name)
	}
}

// Dedupe groups modified entries by category (executables, then kernel
// modules) and keeps only the first entry seen for each (name, category) pair.
// Within a category the input order is preserved.
func Dedupe(entries []models.ModifiedEntry) []models.ModifiedEntry {
	type key struct {
		name     string
		category models.FileCategory
	}

	grouped := make([]models.ModifiedEntry, len(entries))
	copy(grouped, entries)
	sort.SliceStable(grouped, func(i, j int) bool {
		return grouped[i].Category.Rank() < grouped[j].Category.Rank()
	})

	seen := make(map[key]bool, len(grouped))
	out := make([]models.ModifiedEntry, 0, len(grouped))
	for _, e := range grouped {
		if e.Name == "" || !e.Category.IsBinary() {
			continue
		}
		k := key{e.Name, e.Category}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}
