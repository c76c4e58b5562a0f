package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/sabre/internal/types"
)

// fakeRunner records the input and replays a canned output
type fakeRunner struct {
	output string
	err    error

	calls int
	path  string
	input Input
}

func (f *fakeRunner) Run(ctx context.Context, binaryPath string, input []byte) ([]byte, error) {
	f.calls++
	f.path = binaryPath
	if err := json.Unmarshal(input, &f.input); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.output), nil
}

var snapshot = types.ToolchainSnapshot{Version: "0.8.19", LongVersion: "0.8.19+commit.7dd6d404", Path: "/cache/solc"}

func testSources(t *testing.T) *types.SourceSet {
	t.Helper()
	set := types.NewSourceSet()
	require.NoError(t, set.Add(types.SourceFile{Name: "Token.sol", Content: "contract Token {}"}))
	require.NoError(t, set.Add(types.SourceFile{Name: "lib/IERC20.sol", Content: "interface IERC20 {}"}))
	set.Freeze()
	return set
}

const twoContracts = `{
  "errors": [
    {"severity": "warning", "type": "Warning", "message": "Unused local variable.",
     "sourceLocation": {"file": "Token.sol", "start": 10, "end": 20}}
  ],
  "sources": {"lib/IERC20.sol": {"id": 1}, "Token.sol": {"id": 0}},
  "contracts": {
    "Token.sol": {
      "Token": {
        "abi": [{"type": "function", "name": "transfer"}],
        "evm": {
          "bytecode": {"object": "6080", "sourceMap": "0:17:0"},
          "deployedBytecode": {"object": "6080604052", "sourceMap": "0:17:0;;"},
          "methodIdentifiers": {"transfer(address,uint256)": "a9059cbb"}
        }
      },
      "Helper": {
        "abi": [],
        "evm": {"bytecode": {"object": "6001"}, "deployedBytecode": {"object": "6001"}}
      },
      "Abstract": {
        "abi": [],
        "evm": {"bytecode": {"object": ""}, "deployedBytecode": {"object": ""}}
      }
    },
    "lib/IERC20.sol": {
      "IERC20": {"abi": [], "evm": {"bytecode": {"object": ""}}}
    }
  }
}`

func TestCompile_ExplicitTarget(t *testing.T) {
	runner := &fakeRunner{output: twoContracts}
	unit := NewUnit(runner, Options{Optimize: true, OptimizeRuns: 200})

	artifact, err := unit.Compile(context.Background(), testSources(t), snapshot, "Token.sol", "Token")
	require.NoError(t, err)

	assert.Equal(t, "/cache/solc", runner.path)
	assert.Equal(t, "Solidity", runner.input.Language)
	assert.Len(t, runner.input.Sources, 2)
	assert.Equal(t, "interface IERC20 {}", runner.input.Sources["lib/IERC20.sol"].Content)
	assert.True(t, runner.input.Settings.Optimizer.Enabled)
	assert.Contains(t, runner.input.Settings.OutputSelection["*"]["*"], "evm.deployedBytecode.sourceMap")

	assert.Equal(t, "Token", artifact.ContractName)
	assert.Equal(t, "Token.sol", artifact.SourceName)
	assert.Equal(t, "6080604052", artifact.DeployedBytecode)
	assert.Equal(t, "0:17:0;;", artifact.DeployedSourceMap)
	assert.Equal(t, []string{"Token.sol", "lib/IERC20.sol"}, artifact.SourceList)
	assert.Equal(t, "0.8.19+commit.7dd6d404", artifact.CompilerVersion)

	sig, ok := artifact.FunctionForSelector("0xA9059CBB")
	assert.True(t, ok)
	assert.Equal(t, "transfer(address,uint256)", sig)

	require.Len(t, artifact.Diagnostics, 1)
	assert.Equal(t, types.DiagnosticWarning, artifact.Diagnostics[0].Severity)
	assert.Equal(t, "Token.sol", artifact.Diagnostics[0].File)
}

func TestCompile_TargetSelection(t *testing.T) {
	oneDeployable := `{"sources": {"A.sol": {"id": 0}}, "contracts": {"A.sol": {
		"A": {"evm": {"bytecode": {"object": "6080"}}},
		"I": {"evm": {"bytecode": {"object": ""}}}
	}}}`
	noneDeployable := `{"sources": {"A.sol": {"id": 0}}, "contracts": {"A.sol": {
		"I": {"evm": {"bytecode": {"object": ""}}}
	}}}`

	tests := []struct {
		name    string
		output  string
		entry   string
		target  string
		want    string
		wantErr error
	}{
		{"single deployable chosen", oneDeployable, "A.sol", "", "A", nil},
		{"explicit interface allowed", oneDeployable, "A.sol", "I", "I", nil},
		{"ambiguous", twoContracts, "Token.sol", "", "", ErrAmbiguousTarget},
		{"no contracts", noneDeployable, "A.sol", "", "", ErrNoContracts},
		{"target missing", oneDeployable, "A.sol", "B", "", ErrTargetNotFound},
		{"target in imported file only", twoContracts, "Token.sol", "IERC20", "", ErrTargetNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit := NewUnit(&fakeRunner{output: tt.output}, Options{})
			artifact, err := unit.Compile(context.Background(), testSources(t), snapshot, tt.entry, tt.target)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, artifact)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, artifact.ContractName)
		})
	}
}

func TestCompile_ErrorsProduceNoArtifact(t *testing.T) {
	output := `{"errors": [
		{"severity": "warning", "type": "Warning", "message": "shadowing"},
		{"severity": "error", "type": "ParserError", "message": "Expected ';' but got '}'",
		 "formattedMessage": "ParserError: Expected ';'", "sourceLocation": {"file": "Token.sol", "start": 5, "end": 6}}
	]}`
	unit := NewUnit(&fakeRunner{output: output}, Options{})

	artifact, err := unit.Compile(context.Background(), testSources(t), snapshot, "Token.sol", "")
	assert.Nil(t, artifact)

	var failed *CompilationFailedError
	require.ErrorAs(t, err, &failed)
	assert.Len(t, failed.Diagnostics, 2)
	assert.Contains(t, err.Error(), "Expected ';'")
	assert.Contains(t, err.Error(), "1 error(s)")
}

func TestCompile_RunnerFailures(t *testing.T) {
	boom := errors.New("exec format error")
	unit := NewUnit(&fakeRunner{err: boom}, Options{})
	_, err := unit.Compile(context.Background(), testSources(t), snapshot, "Token.sol", "")
	assert.ErrorIs(t, err, boom)

	unit = NewUnit(&fakeRunner{output: "not json"}, Options{})
	_, err = unit.Compile(context.Background(), testSources(t), snapshot, "Token.sol", "")
	assert.ErrorIs(t, err, ErrInvalidOutput)
}
