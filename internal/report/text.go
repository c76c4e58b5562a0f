package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/sabre/internal/types"
)

const unknownFile = "<unknown>"

func renderText(findings []types.Finding) string {
	var b strings.Builder
	for i, f := range findings {
		if i > 0 {
			b.WriteString("\n")
		}
		title := f.Title
		if title == "" {
			title = f.RuleID
		}
		fmt.Fprintf(&b, "==== %s ====\n", title)
		fmt.Fprintf(&b, "Severity: %s\n", f.Severity)
		fmt.Fprintf(&b, "Rule: %s\n", f.RuleID)
		if f.Function != "" {
			fmt.Fprintf(&b, "Function: %s\n", f.Function)
		}
		if f.Location != nil {
			fmt.Fprintf(&b, "Location: %s\n", f.Location)
		} else {
			fmt.Fprintf(&b, "Location: %s\n", unknownFile)
		}
		fmt.Fprintf(&b, "Message: %s\n", types.NormalizeMessage(f.Message))
		if f.Description != "" {
			fmt.Fprintf(&b, "%s\n", f.Description)
		}
	}
	return b.String()
}

// stylish groups findings by file the way eslint's default formatter does
func renderStylish(findings []types.Finding, opts Options) string {
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	dim := color.New(color.Faint)
	bold := color.New(color.Bold, color.Underline)
	summary := color.New(color.FgRed, color.Bold)
	for _, c := range []*color.Color{red, yellow, dim, bold, summary} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	var order []string
	byFile := make(map[string][]types.Finding)
	for _, f := range findings {
		file := unknownFile
		if f.Location != nil {
			file = f.Location.File
		}
		if _, ok := byFile[file]; !ok {
			order = append(order, file)
		}
		byFile[file] = append(byFile[file], f)
	}

	var b strings.Builder
	for _, file := range order {
		fmt.Fprintf(&b, "\n%s\n", bold.Sprint(file))
		for _, f := range byFile[file] {
			pos := "0:0"
			if f.Location != nil {
				pos = fmt.Sprintf("%d:%d", f.Location.Line, f.Location.Column)
			}
			sev := yellow.Sprint("warning")
			if f.Severity.IsError() {
				sev = red.Sprint("error")
			}
			fmt.Fprintf(&b, "  %s  %s  %s  %s\n", dim.Sprint(pos), sev, types.NormalizeMessage(f.Message), dim.Sprint(f.RuleID))
		}
	}

	if len(findings) > 0 {
		errs, warnings := counts(findings)
		line := fmt.Sprintf("✖ %s (%s, %s)", plural(len(findings), "problem"), plural(errs, "error"), plural(warnings, "warning"))
		if errs == 0 {
			fmt.Fprintf(&b, "\n%s\n", yellow.Sprint(line))
		} else {
			fmt.Fprintf(&b, "\n%s\n", summary.Sprint(line))
		}
	}
	return b.String()
}

func renderCompact(findings []types.Finding) string {
	var b strings.Builder
	for _, f := range findings {
		file, line, col := unknownFile, 0, 0
		if f.Location != nil {
			file, line, col = f.Location.File, f.Location.Line, f.Location.Column
		}
		fmt.Fprintf(&b, "%s: line %d, col %d, %s - %s (%s)\n",
			file, line, col, severityLabel(f.Severity), types.NormalizeMessage(f.Message), f.RuleID)
	}
	if len(findings) > 0 {
		fmt.Fprintf(&b, "\n%s\n", plural(len(findings), "problem"))
	}
	return b.String()
}

var compactLine = regexp.MustCompile(`^(.*): line (\d+), col (\d+), (Error|Warning) - (.*) \(([^()]*)\)$`)

// ParseCompact reads compact output back into findings. Only rule, message,
// severity class and location are recoverable; the severity of an "Error"
// line is high and of a "Warning" line low.
func ParseCompact(text string) ([]types.Finding, error) {
	var out []types.Finding
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasSuffix(line, " problem") || strings.HasSuffix(line, " problems") {
			continue
		}
		m := compactLine.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("line %d: not in compact format: %q", i+1, line)
		}
		f := types.Finding{RuleID: m[6], Message: m[5], Severity: types.SeverityLow}
		if m[4] == "Error" {
			f.Severity = types.SeverityHigh
		}
		if m[1] != unknownFile {
			ln, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			f.Location = &types.Location{File: m[1], Line: ln, Column: col}
		}
		out = append(out, f)
	}
	return out, nil
}
