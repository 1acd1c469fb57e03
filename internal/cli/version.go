package cli

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// engineModules are the libraries whose versions change comparison results
var engineModules = []string{
	"github.com/glaslos/ssdeep",
	"github.com/gabriel-vasile/mimetype",
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Print the fwdiffer build and the versions of the fuzzy hashing and
content sniffing libraries it was built with. Reports are only comparable
between builds that use the same versions.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(w, Version)
				return
			}
			printVersion(w)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "print only the version number")

	return cmd
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "fwdiffer %s (commit %s, built %s)\n", Version, Commit, BuildDate)
	fmt.Fprintf(w, "  %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, dep := range info.Deps {
		for _, name := range engineModules {
			if dep.Path == name {
				fmt.Fprintf(w, "  %s %s\n", dep.Path, dep.Version)
			}
		}
	}
}
