package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athena-engine/athena/internal/version"
)

// resetFlags returns every flag to its default so commands can be
// executed repeatedly within one process.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Setenv(configFileEnv, "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// siteConfig writes a config with three pages: a readable one, a
// restricted one and one whose file does not exist.
func siteConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "hello.html"), "<html><head><title>Hello</title></head><body>hi</body></html>")
	writeFile(t, filepath.Join(dir, "secret.html"), "<title>Secret</title>")

	cfg := "pages:\n" +
		"  entries:\n" +
		"    - path: /hello.html\n" +
		"      file: " + filepath.Join(dir, "hello.html") + "\n" +
		"    - path: /secret.html\n" +
		"      file: " + filepath.Join(dir, "secret.html") + "\n" +
		"      accessible: false\n" +
		"    - path: /gone.html\n" +
		"      file: " + filepath.Join(dir, "gone.html") + "\n" +
		"template:\n" +
		"  variables:\n" +
		"    site: Athena\n" +
		extra

	path := filepath.Join(dir, ".athena.yml")
	writeFile(t, path, cfg)
	return path
}

func TestPagesTable(t *testing.T) {
	out, err := execute(t, "pages", "--config", siteConfig(t, ""))
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Contains(t, lines[0], "PATH")
	assert.Contains(t, lines[1], "/gone.html")
	assert.Contains(t, lines[1], pageUnreadable)
	assert.Contains(t, lines[2], "/hello.html")
	assert.Contains(t, lines[2], pageOK)
	assert.Contains(t, lines[2], "Hello")
	assert.Contains(t, lines[3], "/secret.html")
	assert.Contains(t, lines[3], pageRestricted)
	assert.NotContains(t, out, "Secret")
	assert.Contains(t, out, "Total: 3 pages")
}

func TestPagesJSON(t *testing.T) {
	out, err := execute(t, "pages", "--config", siteConfig(t, ""), "--format", "json")
	require.NoError(t, err)

	var rows []PageRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "/hello.html", rows[1].Path)
	assert.Equal(t, "Hello", rows[1].Title)
	assert.True(t, rows[1].Accessible)
	assert.False(t, rows[2].Accessible)
}

func TestPagesYAML(t *testing.T) {
	out, err := execute(t, "pages", "--config", siteConfig(t, ""), "-f", "yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "- path: /gone.html")
	assert.Contains(t, out, "status: "+pageUnreadable)
	assert.Contains(t, out, "title: Hello")
}

func TestPagesRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "pages", "--config", siteConfig(t, ""), "--format", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestMissingExplicitConfig(t *testing.T) {
	_, err := execute(t, "pages", "--config", filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}

func TestInvalidConfig(t *testing.T) {
	_, err := execute(t, "pages", "--config", siteConfig(t, "server:\n  mode: threads\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRender(t *testing.T) {
	cfg := siteConfig(t, "")
	page := filepath.Join(t.TempDir(), "page.html")
	writeFile(t, page, "<#>\r\n<p><#>var.user at <#>var.site</p>\r\n<#>control.for 0,3\r\n<i>x</i>\r\n<#>control.for_end\r\n")

	out, err := execute(t, "render", page, "--config", cfg, "--var", "User=alice")
	require.NoError(t, err)

	assert.Contains(t, out, "<p>alice at Athena</p>")
	assert.Equal(t, 3, strings.Count(out, "<i>x</i>"))
}

func TestRenderVarOverridesConfig(t *testing.T) {
	cfg := siteConfig(t, "")
	page := filepath.Join(t.TempDir(), "page.html")
	writeFile(t, page, "<#>\r\n<p><#>var.site</p>\r\n")

	out, err := execute(t, "render", page, "--config", cfg, "--var", "site=Override")
	require.NoError(t, err)
	assert.Contains(t, out, "<p>Override</p>")
}

func TestRenderSyntaxError(t *testing.T) {
	cfg := siteConfig(t, "")
	page := filepath.Join(t.TempDir(), "broken.html")
	content := "<#>\r\n<p><#>var.nobody</p>\r\n"
	writeFile(t, page, content)

	_, err := execute(t, "render", page, "--config", cfg)
	require.Error(t, err)

	out, err := execute(t, "render", page, "--config", cfg, "--lenient", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, content, out)
}

func TestRenderBadVar(t *testing.T) {
	_, err := execute(t, "render", "page.html", "--var", "novalue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected name=value")
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"Name=Ada", "empty=", "eq=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Ada", "empty": "", "eq": "a=b"}, vars)

	_, err = parseVars([]string{"=x"})
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	info := version.Get()

	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, info.Version+"\n", out)

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "athena "+info.Short()+"\n", out)

	out, err = execute(t, "version", "--detailed")
	require.NoError(t, err)
	assert.Contains(t, out, "Go: "+runtime.Version())
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "--format", "json")
	require.NoError(t, err)

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestVersionUnknownFormat(t *testing.T) {
	_, err := execute(t, "version", "--format", "xml")
	assert.Error(t, err)
}

func TestServeStopsWhenContextDone(t *testing.T) {
	cfg := siteConfig(t, "server:\n  port: 0\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := executeContext(t, ctx, "serve", "--config", cfg, "--mode", "spawn")
	assert.NoError(t, err)
}

func TestServeRejectsBadFlags(t *testing.T) {
	cfg := siteConfig(t, "")

	_, err := execute(t, "serve", "--config", cfg, "--mode", "threads")
	assert.Error(t, err)

	_, err = execute(t, "serve", "--config", cfg, "--workers", "0")
	assert.Error(t, err)
}

func TestBindFlagsUnknownFlag(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 0, "")

	err := bindFlags(nil, flags, map[string]string{"missing": "server.missing"})
	assert.Error(t, err)
}
