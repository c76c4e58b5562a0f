// Package pipeline runs one analysis end to end: version detection, compiler
// acquisition, import resolution, compilation, the remote job, and reduction
// of its findings into a report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/steveyegge/sabre/internal/analysis"
	"github.com/steveyegge/sabre/internal/compiler"
	"github.com/steveyegge/sabre/internal/events"
	"github.com/steveyegge/sabre/internal/report"
	"github.com/steveyegge/sabre/internal/resolver"
	"github.com/steveyegge/sabre/internal/types"
	"github.com/steveyegge/sabre/internal/version"
)

// VersionDetector picks the compiler release for a source text
type VersionDetector interface {
	Detect(ctx context.Context, source string) (string, error)
}

// Toolchains hands out compiler snapshots by release
type Toolchains interface {
	Acquire(ctx context.Context, version string) (types.ToolchainSnapshot, bool, error)
}

// SourceResolver collects an entry file and its transitive imports
type SourceResolver interface {
	Resolve(ctx context.Context, entryPath string, snapshot types.ToolchainSnapshot) (*types.SourceSet, error)
}

// Compiler turns a source set into the artifact of one contract
type Compiler interface {
	Compile(ctx context.Context, sources *types.SourceSet, snapshot types.ToolchainSnapshot, entryName, target string) (*types.CompiledArtifact, error)
}

// Reducer deduplicates raw findings and maps them onto sources
type Reducer interface {
	Reduce(raw []types.RawFinding, artifact *types.CompiledArtifact, sources *types.SourceSet) []types.Finding
}

// Engine wires the stages of a run together. Every field except Observer,
// Clock and Logger is required.
type Engine struct {
	// FS reads the entry file for version detection
	FS       resolver.FS
	Detector VersionDetector
	Cache    Toolchains
	Resolver SourceResolver
	Compiler Compiler
	// Client talks to the analysis service; each run gets its own Session
	Client  analysis.Client
	Reducer Reducer

	Clock    analysis.Clock
	Observer events.Observer
	Logger   *slog.Logger
}

// Request describes one run
type Request struct {
	EntryPath string
	// Contract names the target; empty selects the only contract of the entry file
	Contract    string
	Mode        analysis.Mode
	Format      string
	Credentials analysis.Credentials
	Color       bool
}

// Outcome is the result of a successful run
type Outcome struct {
	Findings    []types.Finding
	Rendered    string
	Diagnostics []types.Diagnostic
	JobUUID     string
	Version     string
	Contract    string
}

// Empty reports whether the run found nothing
func (o *Outcome) Empty() bool {
	return len(o.Findings) == 0
}

// run carries the state produced by each stage for the next one
type run struct {
	req      Request
	format   report.Format
	session  *analysis.Session
	version  string
	snapshot types.ToolchainSnapshot
	sources  *types.SourceSet
	artifact *types.CompiledArtifact
	job      *analysis.Job
	raw      []types.RawFinding
	findings []types.Finding
}

type stage struct {
	name types.Stage
	fn   func(ctx context.Context, r *run) error
}

// Run executes the stages in order. The first failure stops the run and is
// returned as a *types.StageError; no findings are returned with an error.
func (e *Engine) Run(ctx context.Context, req Request) (*Outcome, error) {
	if req.Format == "" {
		req.Format = report.FormatStylish.String()
	}
	format, err := report.ParseFormat(req.Format)
	if err != nil {
		return nil, e.fail(types.StageFormat, err, 0)
	}
	if req.Mode == "" {
		req.Mode = analysis.ModeQuick
	}
	if req.Mode, err = analysis.ParseMode(string(req.Mode)); err != nil {
		return nil, e.fail(types.StageRequest, err, 0)
	}

	r := &run{req: req, format: format, session: e.newSession()}
	stages := []stage{
		{types.StageVersion, e.detectVersion},
		{types.StageToolchain, e.acquireToolchain},
		{types.StageResolve, e.resolveSources},
		{types.StageCompile, e.compile},
		{types.StageAuth, e.authenticate},
		{types.StageSubmit, e.submit},
		{types.StagePoll, e.await},
		{types.StageRetrieve, e.retrieve},
		{types.StageReduce, e.reduce},
	}
	for _, s := range stages {
		e.emit(events.NewStageStartedEvent(s.name))
		start := time.Now()
		if err := s.fn(ctx, r); err != nil {
			if cerr := ctx.Err(); cerr != nil && !errors.Is(err, cerr) {
				err = fmt.Errorf("%w: %w", cerr, err)
			}
			return nil, e.fail(s.name, err, time.Since(start))
		}
		e.emitErr(events.NewStageCompletedEvent(s.name, time.Since(start)))
	}

	rendered, err := report.RenderWith(r.format, r.findings, report.Options{Color: req.Color})
	if err != nil {
		return nil, e.fail(types.StageFormat, err, 0)
	}

	return &Outcome{
		Findings:    r.findings,
		Rendered:    rendered,
		Diagnostics: r.artifact.Diagnostics,
		JobUUID:     r.job.UUID.String(),
		Version:     r.version,
		Contract:    r.artifact.ContractName,
	}, nil
}

func (e *Engine) newSession() *analysis.Session {
	s := analysis.NewSession(e.Client, e.Clock, e.logger())
	s.OnPoll = func(job analysis.Job, elapsed time.Duration) {
		e.emitErr(events.NewPollTickEvent(events.PollTickData{
			UUID:      job.UUID.String(),
			Status:    string(job.Status),
			Polls:     job.Polls,
			ElapsedMs: elapsed.Milliseconds(),
		}))
	}
	return s
}

func (e *Engine) detectVersion(ctx context.Context, r *run) error {
	fsys := e.FS
	if fsys == nil {
		fsys = resolver.OSFS{}
	}
	content, err := fsys.ReadFile(r.req.EntryPath)
	if err != nil {
		return &resolver.SourceReadError{Path: r.req.EntryPath, Err: err}
	}
	v, err := e.Detector.Detect(ctx, string(content))
	if err != nil {
		return err
	}
	r.version = v
	return nil
}

func (e *Engine) acquireToolchain(ctx context.Context, r *run) error {
	snap, cached, err := e.Cache.Acquire(ctx, r.version)
	if err != nil {
		return err
	}
	r.snapshot = snap
	e.emitErr(events.NewToolchainEvent(snap, cached))
	return nil
}

func (e *Engine) resolveSources(ctx context.Context, r *run) error {
	sources, err := e.Resolver.Resolve(ctx, r.req.EntryPath, r.snapshot)
	if err != nil {
		return err
	}
	r.sources = sources
	return nil
}

func (e *Engine) compile(ctx context.Context, r *run) error {
	names := r.sources.Names()
	if len(names) == 0 {
		return fmt.Errorf("%w: empty source set", compiler.ErrNoContracts)
	}
	// the resolver always places the entry file first
	artifact, err := e.Compiler.Compile(ctx, r.sources, r.snapshot, names[0], r.req.Contract)
	if err != nil {
		return err
	}
	for _, d := range artifact.Diagnostics {
		e.logger().Debug("compiler diagnostic", "diagnostic", d.String())
	}
	r.artifact = artifact
	return nil
}

func (e *Engine) authenticate(ctx context.Context, r *run) error {
	return r.session.Authenticate(ctx, r.req.Credentials)
}

func (e *Engine) submit(ctx context.Context, r *run) error {
	job, err := r.session.Submit(ctx, r.artifact, r.sources, r.req.Mode)
	if err != nil {
		return err
	}
	r.job = job
	e.emitErr(events.NewJobSubmittedEvent(events.JobSubmittedData{
		UUID:     job.UUID.String(),
		Mode:     string(job.Mode),
		Contract: r.artifact.ContractName,
	}))
	return nil
}

func (e *Engine) await(ctx context.Context, r *run) error {
	return r.session.Await(ctx, r.job)
}

func (e *Engine) retrieve(ctx context.Context, r *run) error {
	raw, err := r.session.Retrieve(ctx, r.job)
	if err != nil {
		return err
	}
	r.raw = raw
	return nil
}

func (e *Engine) reduce(_ context.Context, r *run) error {
	r.findings = e.Reducer.Reduce(r.raw, r.artifact, r.sources)
	return nil
}

// fail classifies err, reports it to the observer and wraps it
func (e *Engine) fail(stage types.Stage, err error, elapsed time.Duration) error {
	kind := classify(stage, err)
	e.emitErr(events.NewStageFailedEvent(stage, kind, err, elapsed))
	e.logger().Debug("run failed", "stage", stage, "kind", kind, "error", err)
	return &types.StageError{Stage: stage, Kind: kind, Err: err}
}

// classify maps a stage failure onto its error kind. Typed errors decide
// first; the stage decides for everything else.
func classify(stage types.Stage, err error) types.ErrorKind {
	var (
		formatErr    *report.FormatError
		catalogErr   *version.CatalogError
		readErr      *resolver.SourceReadError
		unresolved   *resolver.UnresolvedImportError
		transportErr *analysis.TransportError
		timeoutErr   *analysis.TimeoutError
		failedErr    *analysis.JobFailedError
		retrievalErr *analysis.RetrievalError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return types.KindCanceled
	case errors.Is(err, analysis.ErrInvalidMode):
		return types.KindInvalidRequest
	case errors.As(err, &formatErr):
		return types.KindFormat
	case errors.As(err, &catalogErr):
		return types.KindToolchain
	case errors.As(err, &readErr), errors.As(err, &unresolved):
		return types.KindResolution
	case errors.Is(err, analysis.ErrAuthentication):
		return types.KindAuthentication
	case errors.As(err, &timeoutErr):
		return types.KindTimeout
	case errors.As(err, &failedErr):
		return types.KindAnalysisFailed
	case errors.As(err, &retrievalErr):
		return types.KindResultRetrieval
	case errors.As(err, &transportErr):
		return types.KindTransport
	}

	switch stage {
	case types.StageRequest:
		return types.KindInvalidRequest
	case types.StageFormat:
		return types.KindFormat
	case types.StageVersion:
		return types.KindVersion
	case types.StageToolchain:
		return types.KindToolchain
	case types.StageResolve:
		return types.KindResolution
	case types.StageCompile:
		return types.KindCompilation
	case types.StageAuth:
		return types.KindAuthentication
	case types.StageRetrieve:
		return types.KindResultRetrieval
	default:
		return types.KindTransport
	}
}

func (e *Engine) emit(event *events.Event) {
	if e.Observer != nil && event != nil {
		e.Observer.Observe(event)
	}
}

func (e *Engine) emitErr(event *events.Event, err error) {
	if err != nil {
		e.logger().Warn("failed to build event", "error", err)
		return
	}
	e.emit(event)
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
