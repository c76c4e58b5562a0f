package types

import (
	"fmt"
	"strings"
)

// Severity of a reported finding
type Severity string

const (
	SeverityHigh    Severity = "high"
	SeverityMedium  Severity = "medium"
	SeverityLow     Severity = "low"
	SeverityUnknown Severity = "unknown"
)

// ParseSeverity maps service severities ("High", "medium", ...) onto Severity.
// Anything unrecognized becomes SeverityUnknown.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityUnknown
	}
}

// IsError reports whether the severity renders as an error rather than a warning
func (s Severity) IsError() bool {
	return s == SeverityHigh || s == SeverityMedium
}

// Location is a resolved position in a source file. Lines and columns are 1-based.
type Location struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"endLine"`
	EndColumn int    `json:"endColumn"`
}

// String renders file:line:column
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Finding is a deduplicated issue mapped onto the original sources
type Finding struct {
	RuleID      string    `json:"ruleId"`
	Title       string    `json:"title"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	Description string    `json:"description,omitempty"`
	Function    string    `json:"function,omitempty"`
	Location    *Location `json:"location"`
}

// Key returns the deduplication identity: rule, normalized message, primary location
func (f Finding) Key() string {
	return f.RuleID + "\x00" + NormalizeMessage(f.Message) + "\x00" + f.Location.String()
}

// NormalizeMessage trims and collapses internal whitespace
func NormalizeMessage(msg string) string {
	return strings.Join(strings.Fields(msg), " ")
}

// RawLocation is a location as reported by the analysis service.
// Either SourceMap ("offset:length:fileIndex") or PC is set.
type RawLocation struct {
	SourceMap string `json:"sourceMap,omitempty"`
	// SourceList overrides the artifact's source list for SourceMap's file index
	SourceList []string `json:"sourceList,omitempty"`
	// PC is a program counter into the deployed bytecode
	PC *int `json:"pc,omitempty"`
}

// RawFinding is a finding as returned by the analysis service, before
// deduplication and location mapping
type RawFinding struct {
	RuleID       string        `json:"swcID"`
	Title        string        `json:"swcTitle"`
	Severity     string        `json:"severity"`
	Head         string        `json:"head"`
	Tail         string        `json:"tail,omitempty"`
	FunctionHash string        `json:"functionHash,omitempty"`
	Locations    []RawLocation `json:"locations,omitempty"`
}
