package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/sdejongh/fwdiffer/pkg/compare"
)

const banner = `  __               _ _  __  __
 / _|_      ____| (_)/ _|/ _| ___ _ __
| |_\ \ /\ / / _' | | |_| |_ / _ \ '__|
|  _|\ V  V / (_| | |  _|  _|  __/ |
|_|   \_/\_/ \__,_|_|_| |_|  \___|_|
`

func printBanner(w io.Writer, colored bool) {
	c := color.New(color.FgCyan)
	if colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	c.Fprint(w, banner)
	fmt.Fprintf(w, "fwdiffer %s\n\n", Version)
}

// debugPrinter writes the digests and score of every fuzzy-compared pair
func debugPrinter(w io.Writer) func(compare.PairDebug) {
	return func(p compare.PairDebug) {
		fmt.Fprintf(w, "Debug: Comparing %s (%s)\n", p.Name, p.Category)
		fmt.Fprintf(w, "  %s -> Fuzzy Hash: %s\n", p.OldPath, p.OldDigest)
		fmt.Fprintf(w, "  %s -> Fuzzy Hash: %s\n", p.NewPath, p.NewDigest)
		fmt.Fprintf(w, "  Similarity: %d%%\n", p.Similarity)
	}
}
