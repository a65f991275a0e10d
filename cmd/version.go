package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/athena-engine/athena/internal/version"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for athena including:

- Semantic version number
- Git commit hash
- Build timestamp
- Go version used for compilation
- Target platform (OS/architecture)

Examples:
  athena version                # Show version and commit
  athena version --detailed     # Show every build field
  athena version --format json  # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringP("format", "f", formatText, "Output format (text, json, yaml)")
	versionCmd.Flags().Bool("short", false, "Show the version number only")
	versionCmd.Flags().Bool("detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	short, _ := cmd.Flags().GetBool("short")
	detailed, _ := cmd.Flags().GetBool("detailed")

	info := version.Get()
	out := cmd.OutOrStdout()

	switch format {
	case formatJSON:
		return writeJSON(out, info)
	case formatYAML:
		return writeYAML(out, info)
	case formatText:
		switch {
		case short:
			_, err := fmt.Fprintln(out, info.Version)
			return err
		case detailed:
			_, err := fmt.Fprintln(out, info.String())
			return err
		default:
			_, err := fmt.Fprintf(out, "athena %s\n", info.Short())
			return err
		}
	default:
		return validateFormat(format, formatText, formatJSON, formatYAML)
	}
}
