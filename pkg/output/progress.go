package output

import (
	"io"
	"os"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/term"
)

const progressTemplate pb.ProgressBarTemplate = `{{ counters . }} {{ bar . "[" "─" "─" " " "]" }} {{ percent . }} {{ etime . }}`

// Progress renders comparison progress as a single-line bar
type Progress struct {
	bar *pb.ProgressBar
}

// NewProgress creates a progress bar writing to w. It returns nil when w is not
// a terminal; a nil *Progress ignores every call.
func NewProgress(w io.Writer) *Progress {
	if !IsTerminal(w) {
		return nil
	}
	return newProgress(w)
}

func newProgress(w io.Writer) *Progress {
	bar := progressTemplate.New(0)
	bar.SetWriter(w)
	return &Progress{bar: bar}
}

// Update sets the processed and total pair counts, starting the bar on first use
func (p *Progress) Update(processed, total int) {
	if p == nil {
		return
	}
	p.bar.SetTotal(int64(total))
	p.bar.SetCurrent(int64(processed))
	if !p.bar.IsStarted() {
		p.bar.Start()
	}
}

// Finish stops the bar and moves to a new line
func (p *Progress) Finish() {
	if p == nil || !p.bar.IsStarted() {
		return
	}
	p.bar.Finish()
}

// IsTerminal reports whether w is a terminal
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
