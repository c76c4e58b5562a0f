package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a fatal run failure
type ErrorKind string

const (
	KindVersion         ErrorKind = "VersionError"
	KindToolchain       ErrorKind = "ToolchainError"
	KindResolution      ErrorKind = "ResolutionError"
	KindCompilation     ErrorKind = "CompilationError"
	KindAuthentication  ErrorKind = "AuthenticationError"
	KindTransport       ErrorKind = "TransportError"
	KindTimeout         ErrorKind = "AnalysisTimeout"
	KindAnalysisFailed  ErrorKind = "AnalysisFailed"
	KindResultRetrieval ErrorKind = "ResultRetrievalError"
	KindFormat          ErrorKind = "FormatError"
	KindInvalidRequest  ErrorKind = "InvalidRequest"
	KindCanceled        ErrorKind = "Canceled"
)

// Stage names a step of the run
type Stage string

const (
	StageRequest   Stage = "request"
	StageFormat    Stage = "format"
	StageVersion   Stage = "version"
	StageToolchain Stage = "toolchain"
	StageResolve   Stage = "resolve"
	StageCompile   Stage = "compile"
	StageAuth      Stage = "authenticate"
	StageSubmit    Stage = "submit"
	StagePoll      Stage = "poll"
	StageRetrieve  Stage = "retrieve"
	StageReduce    Stage = "reduce"
)

// StageError is the structured failure of a run: which stage failed, how it is
// classified, and the underlying cause.
type StageError struct {
	Stage Stage
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// KindOf returns the kind of a StageError anywhere in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
