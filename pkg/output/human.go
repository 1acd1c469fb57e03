package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sdejongh/fwdiffer/pkg/models"
)

const separatorWidth = 100

// HumanFormatter renders the report as aligned text tables
type HumanFormatter struct {
	opts    Options
	heading *color.Color
	added   *color.Color
	deleted *color.Color
	empty   *color.Color
}

// NewHumanFormatter creates a new human-readable formatter
func NewHumanFormatter(opts Options) *HumanFormatter {
	f := &HumanFormatter{
		opts:    opts,
		heading: color.New(color.FgCyan, color.Bold),
		added:   color.New(color.FgGreen, color.Bold),
		deleted: color.New(color.FgRed, color.Bold),
		empty:   color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{f.heading, f.added, f.deleted, f.empty} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return f
}

// Format writes the modified table, then the added and deleted lists
func (f *HumanFormatter) Format(w io.Writer, r *models.DiffResult) error {
	var b strings.Builder
	sep := strings.Repeat("─", separatorWidth)
	modified := Dedupe(r.Modified)

	b.WriteString(f.heading.Sprintf("Modified files (%d) :", len(modified)) + "\n")
	b.WriteString(sep + "\n")
	fmt.Fprintf(&b, "%-40s %-20s %-20s %s\n", "File Name", "Similarity (%)", "Type", "Path")
	b.WriteString(sep + "\n")
	for _, e := range modified {
		fmt.Fprintf(&b, "%-40s %-20d %-20s %s\n", e.Name, e.Similarity, e.Category, e.NewPath)
	}

	b.WriteString("\n" + sep + "\n")
	if len(r.Added) > 0 {
		b.WriteString(f.added.Sprint("Added files:") + "\n")
		b.WriteString(sep + "\n")
		for _, name := range r.Added {
			b.WriteString("  " + name + "\n")
		}
	} else {
		b.WriteString(f.empty.Sprint("No new files found.") + "\n")
	}

	b.WriteString("\n" + sep + "\n")
	if len(r.Removed) > 0 {
		b.WriteString(f.deleted.Sprint("Deleted files:") + "\n")
		b.WriteString(sep + "\n")
		for _, name := range r.Removed {
			b.WriteString("  " + name + "\n")
		}
	} else {
		b.WriteString(f.empty.Sprint("No deleted files found.") + "\n")
	}

	if len(r.Skipped) > 0 {
		b.WriteString("\n" + sep + "\n")
		b.WriteString(f.deleted.Sprintf("Skipped pairs (%d):", len(r.Skipped)) + "\n")
		b.WriteString(sep + "\n")
		for _, s := range r.Skipped {
			fmt.Fprintf(&b, "  %s: %v\n", s.Name, s.Err)
		}
	}

	if f.opts.CountChanges {
		b.WriteString("-----\n")
		fmt.Fprintf(&b, "Total Modified Files: %d\n", len(modified))
		fmt.Fprintf(&b, "Total Added Files: %d\n", len(r.Added))
		fmt.Fprintf(&b, "Total Deleted Files: %d\n", len(r.Removed))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}
