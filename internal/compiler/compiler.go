// Package compiler drives solc over a resolved SourceSet and extracts the
// artifact of one target contract.
package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/steveyegge/sabre/internal/types"
)

var (
	// ErrTargetNotFound is returned when the named contract is not declared in the entry file
	ErrTargetNotFound = errors.New("target contract not found")
	// ErrAmbiguousTarget is returned when no target was named and the entry file declares several deployable contracts
	ErrAmbiguousTarget = errors.New("ambiguous target contract")
	// ErrNoContracts is returned when the entry file declares no deployable contract
	ErrNoContracts = errors.New("no deployable contracts")
	// ErrInvalidOutput is returned when the compiler output cannot be decoded
	ErrInvalidOutput = errors.New("invalid compiler output")
)

// CompilationFailedError is returned when the compiler reported at least one error
type CompilationFailedError struct {
	Diagnostics []types.Diagnostic
}

func (e *CompilationFailedError) Error() string {
	var errs []string
	for _, d := range e.Diagnostics {
		if d.Severity == types.DiagnosticError {
			errs = append(errs, d.String())
		}
	}
	return fmt.Sprintf("compilation failed with %d error(s): %s", len(errs), strings.Join(errs, "; "))
}

// Options tune the compiler settings
type Options struct {
	Optimize     bool
	OptimizeRuns int
	EVMVersion   string
	Remappings   []string
}

// Unit compiles source sets with one runner
type Unit struct {
	Runner  Runner
	Options Options
	Logger  *slog.Logger
}

// NewUnit creates a Unit using runner
func NewUnit(runner Runner, opts Options) *Unit {
	return &Unit{Runner: runner, Options: opts}
}

// Compile compiles sources with snapshot and returns the artifact of target,
// a contract declared in entryName. An empty target selects the entry
// file's only deployable contract.
func (u *Unit) Compile(ctx context.Context, sources *types.SourceSet, snapshot types.ToolchainSnapshot, entryName, target string) (*types.CompiledArtifact, error) {
	logger := u.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runner := u.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	input, err := json.Marshal(buildInput(sources, u.Options))
	if err != nil {
		return nil, fmt.Errorf("failed to encode compiler input: %w", err)
	}

	logger.Debug("compiling", "entry", entryName, "sources", sources.Len(), "compiler", snapshot.Version)
	raw, err := runner.Run(ctx, snapshot.Path, input)
	if err != nil {
		return nil, err
	}

	var out Output
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	diags := out.diagnostics()
	var warnings []types.Diagnostic
	failed := false
	for _, d := range diags {
		if d.Severity == types.DiagnosticError {
			failed = true
			continue
		}
		warnings = append(warnings, d)
	}
	if failed {
		return nil, &CompilationFailedError{Diagnostics: diags}
	}

	name, contract, err := selectTarget(out.Contracts[entryName], target)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", entryName, err)
	}

	version := snapshot.LongVersion
	if version == "" {
		version = snapshot.Version
	}
	artifact := &types.CompiledArtifact{
		ContractName:      name,
		SourceName:        entryName,
		Bytecode:          contract.EVM.Bytecode.Object,
		SourceMap:         contract.EVM.Bytecode.SourceMap,
		DeployedBytecode:  contract.EVM.DeployedBytecode.Object,
		DeployedSourceMap: contract.EVM.DeployedBytecode.SourceMap,
		ABI:               contract.ABI,
		MethodIdentifiers: contract.EVM.MethodIdentifiers,
		SourceList:        out.sourceList(),
		CompilerVersion:   version,
		Diagnostics:       warnings,
	}
	logger.Debug("compiled", "contract", name, "warnings", len(warnings))
	return artifact, nil
}

func selectTarget(contracts map[string]OutputContract, target string) (string, OutputContract, error) {
	if target != "" {
		c, ok := contracts[target]
		if !ok {
			return "", OutputContract{}, fmt.Errorf("%w: %s", ErrTargetNotFound, target)
		}
		return target, c, nil
	}

	var deployable []string
	for name, c := range contracts {
		if c.Deployable() {
			deployable = append(deployable, name)
		}
	}
	sort.Strings(deployable)

	switch len(deployable) {
	case 0:
		return "", OutputContract{}, ErrNoContracts
	case 1:
		return deployable[0], contracts[deployable[0]], nil
	default:
		return "", OutputContract{}, fmt.Errorf("%w: %s", ErrAmbiguousTarget, strings.Join(deployable, ", "))
	}
}
