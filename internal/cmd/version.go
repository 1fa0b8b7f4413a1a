package cmd

import (
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Long:        "Print version information. Use --extended for build, Go and gofulmen details.",
	Annotations: lenient,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		printf(out, "%s %s\n", binaryName(), versionInfo.Version)
		if !extended {
			return nil
		}

		printf(out, "Commit: %s\n", versionInfo.Commit)
		printf(out, "Built: %s\n", versionInfo.BuildDate)
		printf(out, "Go: %s\n", runtime.Version())
		printf(out, "\n")

		version := crucible.GetVersion()
		printf(out, "Gofulmen: %s\n", version.Gofulmen)
		printf(out, "Crucible: %s\n", version.Crucible)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
}
