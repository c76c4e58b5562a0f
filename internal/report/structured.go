package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"text/tabwriter"

	"github.com/steveyegge/sabre/internal/types"
)

func renderTable(findings []types.Finding) (string, error) {
	var b bytes.Buffer
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEVERITY\tRULE\tLOCATION\tFUNCTION\tMESSAGE")
	for _, f := range findings {
		loc := unknownFile
		if f.Location != nil {
			loc = f.Location.String()
		}
		fn := f.Function
		if fn == "" {
			fn = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.Severity, f.RuleID, loc, fn, types.NormalizeMessage(f.Message))
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to render table: %w", err)
	}
	return b.String(), nil
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Analysis report</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: 6px 10px; text-align: left; vertical-align: top; }
th { background: #f4f4f4; }
.high, .medium { color: #b00020; font-weight: bold; }
.low, .unknown { color: #a66f00; }
</style>
</head>
<body>
<h1>Analysis report</h1>
<p>{{.Summary}}</p>
{{if .Findings}}<table>
<thead><tr><th>Severity</th><th>Rule</th><th>Title</th><th>Location</th><th>Function</th><th>Message</th></tr></thead>
<tbody>
{{range .Findings}}<tr><td class="{{.Severity}}">{{.Severity}}</td><td>{{.RuleID}}</td><td>{{.Title}}</td><td>{{if .Location}}{{.Location}}{{else}}unknown{{end}}</td><td>{{.Function}}</td><td>{{.Message}}{{if .Description}}<br><small>{{.Description}}</small>{{end}}</td></tr>
{{end}}</tbody>
</table>{{end}}
</body>
</html>
`))

func renderHTML(findings []types.Finding) (string, error) {
	errs, warnings := counts(findings)
	data := struct {
		Summary  string
		Findings []types.Finding
	}{
		Summary:  fmt.Sprintf("%s (%s, %s)", plural(len(findings), "problem"), plural(errs, "error"), plural(warnings, "warning")),
		Findings: findings,
	}
	var b bytes.Buffer
	if err := htmlTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}
	return b.String(), nil
}

func renderJSON(findings []types.Finding) (string, error) {
	if findings == nil {
		findings = []types.Finding{}
	}
	data, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render json: %w", err)
	}
	return string(data) + "\n", nil
}

// ParseJSON reads json output back into findings
func ParseJSON(text string) ([]types.Finding, error) {
	var findings []types.Finding
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&findings); err != nil {
		return nil, fmt.Errorf("failed to parse json report: %w", err)
	}
	return findings, nil
}
