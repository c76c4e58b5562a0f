// Package analysis submits compiled contracts to the remote analysis service
// and follows the resulting job to completion.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/sabre/internal/types"
)

// State of a Session
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticated   State = "authenticated"
	StateSubmitted       State = "submitted"
	StatePolling         State = "polling"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
	StateTimedOut        State = "timed_out"
	StateCanceled        State = "canceled"
)

// Job is a submitted analysis job
type Job struct {
	UUID        uuid.UUID
	Mode        Mode
	SubmittedAt time.Time
	Polls       int
	Status      JobStatus
}

// PollFunc observes each status response
type PollFunc func(job Job, elapsed time.Duration)

// Session drives one job through authenticate, submit, await and retrieve.
// Operations must be called in that order.
type Session struct {
	client Client
	clock  Clock
	logger *slog.Logger

	// OnPoll, when set, is called after every status response
	OnPoll PollFunc

	mu    sync.Mutex
	state State
	token string
	job   *Job
}

// NewSession creates an unauthenticated session
func NewSession(client Client, clock Clock, logger *slog.Logger) *Session {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{client: client, clock: clock, logger: logger, state: StateUnauthenticated}
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Job returns the job the session is following, or nil
func (s *Session) Job() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return nil
	}
	j := *s.job
	return &j
}

func (s *Session) expect(op string, want State) error {
	if s.state != want {
		return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, op, s.state)
	}
	return nil
}

// Authenticate exchanges creds for an access token
func (s *Session) Authenticate(ctx context.Context, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("authenticate", StateUnauthenticated); err != nil {
		return err
	}
	if creds.EthAddress == "" || creds.Password == "" {
		return fmt.Errorf("%w: missing address or password", ErrAuthentication)
	}

	token, err := s.client.Authenticate(ctx, creds.EthAddress, creds.Password)
	if err != nil {
		if errors.Is(err, ErrAuthentication) {
			return err
		}
		return &TransportError{Stage: types.StageAuth, Err: err}
	}
	s.token = token
	s.state = StateAuthenticated
	s.logger.Debug("authenticated", "address", creds.EthAddress)
	return nil
}

// Submit sends the artifact and its sources as a new job
func (s *Session) Submit(ctx context.Context, artifact *types.CompiledArtifact, sources *types.SourceSet, mode Mode) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("submit", StateAuthenticated); err != nil {
		return nil, err
	}

	id, err := s.client.Submit(ctx, s.token, NewSubmission(artifact, sources, mode))
	if err != nil {
		return nil, &TransportError{Stage: types.StageSubmit, Err: err}
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, &TransportError{Stage: types.StageSubmit, Err: fmt.Errorf("invalid job uuid %q: %w", id, err)}
	}

	s.job = &Job{UUID: parsed, Mode: mode, SubmittedAt: s.clock.Now(), Status: StatusPending}
	s.state = StateSubmitted
	s.logger.Debug("submitted analysis", "uuid", parsed, "mode", mode, "contract", artifact.ContractName)
	j := *s.job
	return &j, nil
}

// Await polls the job until it reaches a terminal status or the mode timeout
// elapses since submission. The initial delay always elapses before the
// first status request.
//
// The deadline is inclusive: no status request is sent once the elapsed
// time reaches the mode timeout, since it would have no time left to answer.
// Cancelling ctx leaves the session in StateCanceled.
func (s *Session) Await(ctx context.Context, job *Job) error {
	s.mu.Lock()
	if err := s.expect("await", StateSubmitted); err != nil {
		s.mu.Unlock()
		return err
	}
	if job == nil || s.job == nil || job.UUID != s.job.UUID {
		s.mu.Unlock()
		return fmt.Errorf("%w: await of a job this session did not submit", ErrInvalidTransition)
	}
	s.state = StatePolling
	cur := s.job
	token := s.token
	s.mu.Unlock()

	sched := cur.Mode.Schedule()
	deadline := cur.SubmittedAt.Add(sched.Timeout)
	wait := sched.InitialDelay
	interval := sched.Interval
	id := cur.UUID.String()

	for {
		if remaining := deadline.Sub(s.clock.Now()); wait > remaining {
			wait = max(remaining, 0)
		}
		select {
		case <-ctx.Done():
			return s.cancel(ctx)
		case <-s.clock.After(wait):
		}

		now := s.clock.Now()
		if !now.Before(deadline) {
			return s.timeout(cur, now)
		}

		status, expired, err := s.status(ctx, token, id, deadline.Sub(now))
		if err != nil {
			if ctx.Err() != nil {
				return s.cancel(ctx)
			}
			// only the session deadline makes a failed request a timeout;
			// a client-side request timeout is a transport failure
			if expired || !s.clock.Now().Before(deadline) {
				return s.timeout(cur, s.clock.Now())
			}
			s.finish(StateFailed)
			return &TransportError{Stage: types.StagePoll, Err: err}
		}

		s.mu.Lock()
		cur.Polls++
		cur.Status = status
		snapshot := *cur
		s.mu.Unlock()

		elapsed := s.clock.Now().Sub(cur.SubmittedAt)
		s.logger.Debug("polled analysis", "uuid", id, "status", status, "polls", snapshot.Polls, "elapsed", elapsed)
		if s.OnPoll != nil {
			s.OnPoll(snapshot, elapsed)
		}

		switch status {
		case StatusCompleted:
			s.finish(StateCompleted)
			*job = snapshot
			return nil
		case StatusFailed:
			s.finish(StateFailed)
			*job = snapshot
			return &JobFailedError{UUID: id}
		}

		wait = interval
		interval = sched.next(interval)
	}
}

// status issues one status request bounded by the time left until the
// deadline. expired reports whether that bound, not the caller, ended it.
func (s *Session) status(ctx context.Context, token, id string, remaining time.Duration) (status JobStatus, expired bool, err error) {
	sctx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()
	status, err = s.client.Status(sctx, token, id)
	expired = errors.Is(sctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	return status, expired, err
}

func (s *Session) cancel(ctx context.Context) error {
	s.finish(StateCanceled)
	s.logger.Debug("analysis wait canceled", "err", ctx.Err())
	return ctx.Err()
}

func (s *Session) finish(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) timeout(job *Job, now time.Time) error {
	elapsed := now.Sub(job.SubmittedAt)
	s.mu.Lock()
	s.state = StateTimedOut
	// a timed-out job is abandoned; results are never fetched
	s.job = nil
	s.mu.Unlock()
	s.logger.Warn("analysis timed out", "uuid", job.UUID, "elapsed", elapsed, "polls", job.Polls)
	return &TimeoutError{UUID: job.UUID.String(), Elapsed: elapsed}
}

// Retrieve fetches the findings of a completed job
func (s *Session) Retrieve(ctx context.Context, job *Job) ([]types.RawFinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("retrieve", StateCompleted); err != nil {
		return nil, err
	}
	if job == nil || s.job == nil || job.UUID != s.job.UUID {
		return nil, fmt.Errorf("%w: retrieve of a job this session did not submit", ErrInvalidTransition)
	}

	id := job.UUID.String()
	raw, err := s.client.Results(ctx, s.token, id)
	if err != nil {
		return nil, &RetrievalError{UUID: id, Err: err}
	}
	s.logger.Debug("retrieved findings", "uuid", id, "count", len(raw))
	return raw, nil
}
