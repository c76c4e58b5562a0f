package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DiagnosticSeverity is the severity the compiler attached to a diagnostic
type DiagnosticSeverity string

const (
	DiagnosticError   DiagnosticSeverity = "error"
	DiagnosticWarning DiagnosticSeverity = "warning"
	DiagnosticInfo    DiagnosticSeverity = "info"
)

// Diagnostic is a single compiler message
type Diagnostic struct {
	Severity DiagnosticSeverity `json:"severity"`
	Type     string             `json:"type,omitempty"` // e.g. "ParserError", "Warning"
	Message  string             `json:"message"`
	// Formatted is the compiler's own rendering including a source excerpt
	Formatted string `json:"formatted,omitempty"`
	File      string `json:"file,omitempty"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
}

// String renders the diagnostic on one line
func (d Diagnostic) String() string {
	if d.File != "" {
		return fmt.Sprintf("%s:%d: %s: %s", d.File, d.Start, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// CompiledArtifact is the compiler output for the selected contract
type CompiledArtifact struct {
	ContractName string `json:"contract_name"`
	// SourceName is the source unit declaring ContractName
	SourceName string `json:"source_name"`

	Bytecode          string `json:"bytecode"`
	SourceMap         string `json:"source_map"`
	DeployedBytecode  string `json:"deployed_bytecode"`
	DeployedSourceMap string `json:"deployed_source_map"`

	ABI json.RawMessage `json:"abi,omitempty"`

	// MethodIdentifiers maps function signatures to 4-byte selector hashes,
	// e.g. "transfer(address,uint256)" → "a9059cbb"
	MethodIdentifiers map[string]string `json:"method_identifiers,omitempty"`

	// SourceList orders source names by compiler source id; the file index
	// in a source map entry indexes into it.
	SourceList []string `json:"source_list"`

	CompilerVersion string `json:"compiler_version"`

	// Diagnostics holds retained non-fatal messages (warnings)
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// FunctionForSelector returns the signature whose selector is sel ("0x" prefix optional)
func (a *CompiledArtifact) FunctionForSelector(sel string) (string, bool) {
	sel = strings.TrimPrefix(strings.TrimPrefix(sel, "0x"), "0X")
	for sig, hash := range a.MethodIdentifiers {
		if strings.EqualFold(hash, sel) {
			return sig, true
		}
	}
	return "", false
}
