//go:build property
// +build property

package renderer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestTemplateProperties tests the loop and fail-closed guarantees.
func TestTemplateProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("loop body repeats end-start times", prop.ForAll(
		func(start, span int, body string) bool {
			end := start + span
			html := fmt.Sprintf("<#>control.for %d,%d\r\n%s\r\n<#>control.for_end", start, end, body)
			out, err := Expand(html, nil)
			if err != nil {
				return false
			}
			return out == strings.Repeat(body+"\r\n", span)
		},
		gen.IntRange(-50, 50),
		gen.IntRange(0, 20),
		gen.RegexMatch(`^[a-z]{1,10}$`),
	))

	properties.Property("rendering is idempotent", prop.ForAll(
		func(name, value string, reps int) bool {
			html := fmt.Sprintf("<p><#>var.%s</p>\r\n<#>control.for 0,%d\r\nrow\r\n<#>control.for_end", name, reps)
			bindings := Static(map[string]string{name: value})
			first, err1 := Expand(html, bindings)
			second, err2 := Expand(html, bindings)
			return err1 == nil && err2 == nil && first == second
		},
		gen.RegexMatch(`^[a-z]{1,8}$`),
		gen.RegexMatch(`^[A-Za-z0-9 ]{0,16}$`),
		gen.IntRange(0, 10),
	))

	properties.Property("unbound variables return the input unchanged", prop.ForAll(
		func(name, prefix string) bool {
			html := prefix + "\r\n<#>var." + name
			out, err := Expand(html, nil)
			return err != nil && out == html
		},
		gen.RegexMatch(`^[a-z]{1,8}$`),
		gen.RegexMatch(`^[a-z<>/ ]{0,20}$`),
	))

	properties.TestingRun(t)
}
