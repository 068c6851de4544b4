package cmd

import (
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"gooze.dev/pkg/grafter/internal/domain/faultloc"
)

const unknownVersion = "unknown"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version information",
		Long:  "Displays the grafter build version, the Go version it was built with and the supported suspiciousness formulas.",
		Run: func(cmd *cobra.Command, _ []string) {
			version, goVersion := unknownVersion, runtime.Version()

			if info, ok := debug.ReadBuildInfo(); ok {
				if info.Main.Version != "" {
					version = info.Main.Version
				}

				goVersion = info.GoVersion
			}

			cmd.Printf("grafter\t%s\n", version)
			cmd.Printf("go\t%s\n", goVersion)
			cmd.Printf("formulas\t%s\n", formulaNames())
		},
	}
}

func formulaNames() string {
	names := make([]string, 0, len(faultloc.Formulas()))
	for _, f := range faultloc.Formulas() {
		names = append(names, string(f))
	}

	return strings.Join(names, ", ")
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
