package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/steveyegge/sabre/internal/types"
)

var (
	// ErrAuthentication is returned when the service rejects the credentials
	ErrAuthentication = errors.New("authentication failed")
	// ErrInvalidTransition is returned when a session operation is called out of order
	ErrInvalidTransition = errors.New("invalid session transition")
)

// Credentials identify the account submitting jobs
type Credentials struct {
	EthAddress string
	Password   string
}

// JobStatus is the remote status of a job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further status change is expected
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SubmissionSource is one source file sent with a job
type SubmissionSource struct {
	Source string `json:"source"`
}

// Submission is the job payload
type Submission struct {
	ContractName      string                      `json:"contractName"`
	MainSource        string                      `json:"mainSource"`
	Bytecode          string                      `json:"bytecode"`
	SourceMap         string                      `json:"sourceMap"`
	DeployedBytecode  string                      `json:"deployedBytecode"`
	DeployedSourceMap string                      `json:"deployedSourceMap"`
	SourceList        []string                    `json:"sourceList"`
	Sources           map[string]SubmissionSource `json:"sources"`
	Mode              Mode                        `json:"analysisMode"`
	CompilerVersion   string                      `json:"version,omitempty"`
}

// NewSubmission packages an artifact and its sources for mode
func NewSubmission(artifact *types.CompiledArtifact, sources *types.SourceSet, mode Mode) Submission {
	sub := Submission{
		ContractName:      artifact.ContractName,
		MainSource:        artifact.SourceName,
		Bytecode:          artifact.Bytecode,
		SourceMap:         artifact.SourceMap,
		DeployedBytecode:  artifact.DeployedBytecode,
		DeployedSourceMap: artifact.DeployedSourceMap,
		SourceList:        artifact.SourceList,
		Sources:           make(map[string]SubmissionSource, sources.Len()),
		Mode:              mode,
		CompilerVersion:   artifact.CompilerVersion,
	}
	for _, f := range sources.Files() {
		sub.Sources[f.Name] = SubmissionSource{Source: f.Content}
	}
	return sub
}

// Client is the remote analysis service
type Client interface {
	Authenticate(ctx context.Context, ethAddress, password string) (token string, err error)
	Submit(ctx context.Context, token string, sub Submission) (jobUUID string, err error)
	Status(ctx context.Context, token, jobUUID string) (JobStatus, error)
	Results(ctx context.Context, token, jobUUID string) ([]types.RawFinding, error)
}

// TransportError is a failed exchange with the service
type TransportError struct {
	Stage types.Stage
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError is returned when a job did not finish within its mode timeout
type TimeoutError struct {
	UUID    string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("analysis %s did not finish within %s", e.UUID, e.Elapsed)
}

// JobFailedError is returned when the service reports the job as failed
type JobFailedError struct {
	UUID string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("analysis %s failed on the service", e.UUID)
}

// RetrievalError is a failure fetching the results of a completed job
type RetrievalError struct {
	UUID string
	Err  error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("failed to retrieve results of %s: %v", e.UUID, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }
