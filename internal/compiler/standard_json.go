package compiler

import (
	"encoding/json"
	"sort"

	"github.com/steveyegge/sabre/internal/types"
)

// Output selection requested for every contract
var contractOutputs = []string{
	"abi",
	"evm.bytecode.object",
	"evm.bytecode.sourceMap",
	"evm.deployedBytecode.object",
	"evm.deployedBytecode.sourceMap",
	"evm.methodIdentifiers",
}

// Input is the solc standard-JSON compiler input
type Input struct {
	Language string                 `json:"language"`
	Sources  map[string]InputSource `json:"sources"`
	Settings Settings               `json:"settings"`
}

// InputSource carries one source unit's content
type InputSource struct {
	Content string `json:"content"`
}

// Settings is the subset of solc settings the unit sets
type Settings struct {
	Optimizer       Optimizer                      `json:"optimizer"`
	EVMVersion      string                         `json:"evmVersion,omitempty"`
	Remappings      []string                       `json:"remappings,omitempty"`
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
}

// Optimizer settings
type Optimizer struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs,omitempty"`
}

// Output is the solc standard-JSON compiler output
type Output struct {
	Errors    []OutputError                        `json:"errors,omitempty"`
	Sources   map[string]OutputSource              `json:"sources,omitempty"`
	Contracts map[string]map[string]OutputContract `json:"contracts,omitempty"`
}

// OutputError is a diagnostic as solc reports it
type OutputError struct {
	SourceLocation *struct {
		File  string `json:"file"`
		Start int    `json:"start"`
		End   int    `json:"end"`
	} `json:"sourceLocation,omitempty"`
	Type             string `json:"type"`
	Component        string `json:"component"`
	Severity         string `json:"severity"`
	Message          string `json:"message"`
	FormattedMessage string `json:"formattedMessage"`
}

// OutputSource carries the compiler-assigned source id
type OutputSource struct {
	ID int `json:"id"`
}

// OutputContract is one compiled contract
type OutputContract struct {
	ABI json.RawMessage `json:"abi"`
	EVM struct {
		Bytecode          Bytecode          `json:"bytecode"`
		DeployedBytecode  Bytecode          `json:"deployedBytecode"`
		MethodIdentifiers map[string]string `json:"methodIdentifiers"`
	} `json:"evm"`
}

// Bytecode is an object with its compressed source map
type Bytecode struct {
	Object    string `json:"object"`
	SourceMap string `json:"sourceMap"`
}

// Deployable reports whether the contract has creation bytecode; interfaces
// and abstract contracts do not
func (c OutputContract) Deployable() bool {
	obj := c.EVM.Bytecode.Object
	return obj != "" && obj != "0x"
}

func buildInput(sources *types.SourceSet, opts Options) Input {
	in := Input{
		Language: "Solidity",
		Sources:  make(map[string]InputSource, sources.Len()),
		Settings: Settings{
			Optimizer:  Optimizer{Enabled: opts.Optimize, Runs: opts.OptimizeRuns},
			EVMVersion: opts.EVMVersion,
			Remappings: opts.Remappings,
			OutputSelection: map[string]map[string][]string{
				"*": {
					"*": contractOutputs,
					"":  {"ast"},
				},
			},
		},
	}
	for _, f := range sources.Files() {
		in.Sources[f.Name] = InputSource{Content: f.Content}
	}
	return in
}

// sourceList orders source names by compiler source id
func (o *Output) sourceList() []string {
	names := make([]string, 0, len(o.Sources))
	for name := range o.Sources {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return o.Sources[names[i]].ID < o.Sources[names[j]].ID
	})
	return names
}

func (o *Output) diagnostics() []types.Diagnostic {
	out := make([]types.Diagnostic, 0, len(o.Errors))
	for _, e := range o.Errors {
		d := types.Diagnostic{
			Severity:  types.DiagnosticSeverity(e.Severity),
			Type:      e.Type,
			Message:   e.Message,
			Formatted: e.FormattedMessage,
		}
		if e.SourceLocation != nil {
			d.File = e.SourceLocation.File
			d.Start = e.SourceLocation.Start
			d.End = e.SourceLocation.End
		}
		out = append(out, d)
	}
	return out
}
