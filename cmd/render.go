package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/athena-engine/athena/internal/renderer"
)

var renderFS = afero.NewOsFs()

var renderCmd = &cobra.Command{
	Use:     "render FILE",
	Aliases: []string{"r"},
	Short:   "Expand a page's template markers",
	Long: `Expand the <#> template markers of FILE and print the result.

Variables come from template.variables in the configuration, overridden by
--var. A syntax error fails the command unless --lenient is given, in which
case the page is printed unchanged, as the engine would serve it.

Examples:
  athena render www/index.html
  athena render www/index.html --var title=Home --var user=alice
  athena render www/broken.html --lenient`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringArray("var", nil, "Template variable as name=value (repeatable)")
	renderCmd.Flags().Bool("lenient", false, "Print the page unchanged on a template error")
}

func runRender(cmd *cobra.Command, args []string) error {
	pairs, _ := cmd.Flags().GetStringArray("var")
	lenient, _ := cmd.Flags().GetBool("lenient")

	vars, err := parseVars(pairs)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	content, err := afero.ReadFile(renderFS, args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	bindings := renderer.Merge(renderer.Static(cfg.Template.Variables), renderer.Static(vars))

	var out string
	if lenient {
		logger, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		out = renderer.NewEngine(logger).Render(cmd.Context(), string(content), bindings)
	} else {
		out, err = renderer.Expand(string(content), bindings)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
	}

	_, err = io.WriteString(cmd.OutOrStdout(), out)
	return err
}

// parseVars turns name=value pairs into a map. Names are lowercased to
// match variables read from the configuration.
func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q: expected name=value", pair)
		}
		vars[strings.ToLower(name)] = value
	}
	return vars, nil
}
