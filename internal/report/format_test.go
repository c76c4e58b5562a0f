package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/sabre/internal/types"
)

func sampleFindings() []types.Finding {
	return []types.Finding{
		{
			RuleID:      "SWC-101",
			Title:       "Integer Overflow and Underflow",
			Severity:    types.SeverityHigh,
			Message:     "The arithmetic operator can overflow.",
			Description: "It is possible to cause an integer overflow.",
			Function:    "transfer(address,uint256)",
			Location:    &types.Location{File: "Token.sol", Line: 12, Column: 9, EndLine: 12, EndColumn: 20},
		},
		{
			RuleID:   "SWC-103",
			Title:    "Floating Pragma",
			Severity: types.SeverityLow,
			Message:  "A floating pragma is set (e.g. <0.9.0).",
			Location: &types.Location{File: "lib/Math.sol", Line: 1, Column: 1},
		},
		{
			RuleID:   "SWC-110",
			Title:    "Assert Violation",
			Severity: types.SeverityMedium,
			Message:  "An assertion violation was triggered.",
		},
	}
}

func TestParseFormat(t *testing.T) {
	for i, name := range Names() {
		f, err := ParseFormat(name)
		require.NoError(t, err)
		assert.Equal(t, Format(i), f)
		assert.Equal(t, name, f.String())
	}

	f, err := ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("sarif")
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "sarif", fe.Name)
	assert.Contains(t, err.Error(), "stylish")
}

func TestRender_EveryFormat(t *testing.T) {
	findings := sampleFindings()
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			f, err := ParseFormat(name)
			require.NoError(t, err)
			out, err := Render(f, findings)
			require.NoError(t, err)
			assert.Contains(t, out, "SWC-101")
			assert.Contains(t, out, "SWC-110")

			again, err := Render(f, findings)
			require.NoError(t, err)
			assert.Equal(t, out, again, "formatters are pure")
		})
	}

	_, err := Render(Format(99), findings)
	var fe *FormatError
	assert.ErrorAs(t, err, &fe)
}

func TestRoundTrip(t *testing.T) {
	findings := sampleFindings()
	type triple struct {
		rule, message, location string
	}
	want := make([]triple, len(findings))
	for i, f := range findings {
		want[i] = triple{f.RuleID, f.Message, f.Location.String()}
	}

	tests := []struct {
		format Format
		parse  func(string) ([]types.Finding, error)
	}{
		{FormatJSON, ParseJSON},
		{FormatCompact, ParseCompact},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			out, err := Render(tt.format, findings)
			require.NoError(t, err)
			parsed, err := tt.parse(out)
			require.NoError(t, err)
			require.Len(t, parsed, len(findings))
			for i, f := range parsed {
				assert.Equal(t, want[i], triple{f.RuleID, f.Message, f.Location.String()})
				assert.Equal(t, findings[i].Severity.IsError(), f.Severity.IsError())
			}
		})
	}
}

func TestRenderStylish(t *testing.T) {
	out, err := Render(FormatStylish, sampleFindings())
	require.NoError(t, err)
	assert.NotContains(t, out, "\x1b[", "no color unless requested")
	assert.Contains(t, out, "\nToken.sol\n")
	assert.Contains(t, out, "  12:9  error  The arithmetic operator can overflow.  SWC-101")
	assert.Contains(t, out, "  1:1  warning  A floating pragma")
	assert.Contains(t, out, "\n<unknown>\n  0:0  error")
	assert.Contains(t, out, "✖ 3 problems (2 errors, 1 warning)")

	colored, err := RenderWith(FormatStylish, sampleFindings(), Options{Color: true})
	require.NoError(t, err)
	assert.Contains(t, colored, "\x1b[")
}

func TestRenderCompact(t *testing.T) {
	out, err := Render(FormatCompact, sampleFindings())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "Token.sol: line 12, col 9, Error - The arithmetic operator can overflow. (SWC-101)", lines[0])
	assert.Equal(t, "<unknown>: line 0, col 0, Error - An assertion violation was triggered. (SWC-110)", lines[2])
	assert.Equal(t, "3 problems", lines[len(lines)-1])
}

func TestRenderTableAndHTML(t *testing.T) {
	table, err := Render(FormatTable, sampleFindings())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(table, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "SEVERITY"))
	assert.Contains(t, lines[1], "Token.sol:12:9")
	assert.Contains(t, lines[3], "<unknown>")

	evil := []types.Finding{{RuleID: "SWC-1", Severity: types.SeverityLow, Message: "<script>alert(1)</script>"}}
	html, err := Render(FormatHTML, evil)
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>alert")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "1 problem (0 errors, 1 warning)")
}

func TestRenderEmpty(t *testing.T) {
	out, err := Render(FormatJSON, nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	out, err = Render(FormatCompact, nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	parsed, err := ParseCompact(out)
	require.NoError(t, err)
	assert.Empty(t, parsed)

	_, err = ParseCompact("garbage line")
	assert.Error(t, err)
}
