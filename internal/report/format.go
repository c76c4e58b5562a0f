// Package report renders findings in the supported output formats.
package report

import (
	"fmt"
	"strings"

	"github.com/steveyegge/sabre/internal/types"
)

// Format is an output format
type Format int

const (
	FormatText Format = iota
	FormatStylish
	FormatCompact
	FormatTable
	FormatHTML
	FormatJSON
)

var formatNames = []string{
	FormatText:    "text",
	FormatStylish: "stylish",
	FormatCompact: "compact",
	FormatTable:   "table",
	FormatHTML:    "html",
	FormatJSON:    "json",
}

// Names lists the format names in declaration order
func Names() []string {
	return append([]string(nil), formatNames...)
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// FormatError is returned for an unknown format name
type FormatError struct {
	Name string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unknown format %q (valid: %s)", e.Name, strings.Join(formatNames, ", "))
}

// ParseFormat maps a format name (case-insensitive) to its Format
func ParseFormat(name string) (Format, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, fn := range formatNames {
		if fn == n {
			return Format(i), nil
		}
	}
	return 0, &FormatError{Name: name}
}

// Options tune rendering
type Options struct {
	// Color enables ANSI colors in the stylish format
	Color bool
}

// Render renders findings in format f without color
func Render(f Format, findings []types.Finding) (string, error) {
	return RenderWith(f, findings, Options{})
}

// RenderWith renders findings in format f
func RenderWith(f Format, findings []types.Finding, opts Options) (string, error) {
	switch f {
	case FormatText:
		return renderText(findings), nil
	case FormatStylish:
		return renderStylish(findings, opts), nil
	case FormatCompact:
		return renderCompact(findings), nil
	case FormatTable:
		return renderTable(findings)
	case FormatHTML:
		return renderHTML(findings)
	case FormatJSON:
		return renderJSON(findings)
	default:
		return "", &FormatError{Name: f.String()}
	}
}

func severityLabel(s types.Severity) string {
	if s.IsError() {
		return "Error"
	}
	return "Warning"
}

// counts returns the number of error and warning findings
func counts(findings []types.Finding) (errs, warnings int) {
	for _, f := range findings {
		if f.Severity.IsError() {
			errs++
		} else {
			warnings++
		}
	}
	return errs, warnings
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
