package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/athena-engine/athena/internal/app"
	"github.com/athena-engine/athena/internal/registry"
)

var pagesCmd = &cobra.Command{
	Use:     "pages",
	Aliases: []string{"p", "list"},
	Short:   "List registered pages",
	Long: `List the pages from the configuration with the status the engine would
serve them with and the page title.

Examples:
  athena pages                 # Table output
  athena pages --format json   # JSON output
  athena pages -f yaml         # YAML output`,
	Args: cobra.NoArgs,
	RunE: runPages,
}

// PageRow is one line of athena pages output.
type PageRow struct {
	Path       string `json:"path" yaml:"path"`
	File       string `json:"file" yaml:"file"`
	Accessible bool   `json:"accessible" yaml:"accessible"`
	Status     string `json:"status" yaml:"status"`
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
}

// Page row statuses.
const (
	pageOK         = "ok"
	pageRestricted = "restricted"
	pageUnreadable = "unreadable"
)

func init() {
	rootCmd.AddCommand(pagesCmd)

	pagesCmd.Flags().StringP("format", "f", formatTable, "Output format (table, json, yaml)")
}

func runPages(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := validateFormat(format, formatTable, formatJSON, formatYAML); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rows := pageRows(app.BuildRegistry(cfg, afero.NewOsFs()))

	out := cmd.OutOrStdout()
	switch format {
	case formatJSON:
		return writeJSON(out, rows)
	case formatYAML:
		return writeYAML(out, rows)
	default:
		return writePageTable(out, rows)
	}
}

func pageRows(reg *registry.Registry) []PageRow {
	entries := reg.Entries()
	rows := make([]PageRow, 0, len(entries))
	for _, e := range entries {
		row := PageRow{Path: e.Path, File: e.File, Accessible: e.Accessible}
		if !e.Accessible {
			row.Status = pageRestricted
			rows = append(rows, row)
			continue
		}
		res := reg.Lookup(e.Path)
		if res.Status != registry.StatusFound {
			row.Status = pageUnreadable
			rows = append(rows, row)
			continue
		}
		row.Status = pageOK
		// An unparsable title leaves the column empty.
		row.Title, _ = registry.ExtractTitle(res.Content)
		rows = append(rows, row)
	}
	return rows
}

func writePageTable(out io.Writer, rows []PageRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(out, "No pages registered.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tFILE\tSTATUS\tTITLE")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Path, r.File, r.Status, r.Title)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\nTotal: %d pages\n", len(rows))
	return err
}
