package compiler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a compiler binary on a standard-JSON input and returns
// its standard-JSON output
type Runner interface {
	Run(ctx context.Context, binaryPath string, input []byte) ([]byte, error)
}

// ExecRunner runs the compiler as a subprocess with --standard-json
type ExecRunner struct {
	// Args are passed after --standard-json, e.g. --base-path
	Args []string
}

// Run executes binaryPath feeding input on stdin
func (r ExecRunner) Run(ctx context.Context, binaryPath string, input []byte) ([]byte, error) {
	args := append([]string{"--standard-json"}, r.Args...)
	cmd := exec.CommandContext(ctx, binaryPath, args...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("compiler %s failed: %w (stderr: %s)", binaryPath, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
