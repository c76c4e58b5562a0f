package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/sabre/internal/types"
)

// fakeClock advances instantly on After and records every wait
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.waits = append(c.waits, d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

const testUUID = "4f7c1d9e-2b3a-4c5d-8e6f-7a8b9c0d1e2f"

// fakeClient scripts service responses and counts calls
type fakeClient struct {
	mu sync.Mutex

	authErr   error
	submitErr error
	jobUUID   string
	statuses  []JobStatus // the last status repeats
	statusErr error
	onStatus  func()
	findings  []types.RawFinding
	resultErr error

	authCalls, submitCalls, statusCalls, resultCalls int
	lastSubmission                                   Submission
}

func (f *fakeClient) Authenticate(ctx context.Context, address, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	if f.authErr != nil {
		return "", f.authErr
	}
	return "token", nil
}

func (f *fakeClient) Submit(ctx context.Context, token string, sub Submission) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	f.lastSubmission = sub
	if f.submitErr != nil {
		return "", f.submitErr
	}
	if f.jobUUID != "" {
		return f.jobUUID, nil
	}
	return testUUID, nil
}

func (f *fakeClient) Status(ctx context.Context, token, id string) (JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.onStatus != nil {
		f.onStatus()
	}
	if f.statusErr != nil {
		return "", f.statusErr
	}
	i := f.statusCalls - 1
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	return f.statuses[i], nil
}

func (f *fakeClient) Results(ctx context.Context, token, id string) ([]types.RawFinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultCalls++
	return f.findings, f.resultErr
}

var creds = Credentials{EthAddress: "0xabc", Password: "secret"}

func testArtifact(t *testing.T) (*types.CompiledArtifact, *types.SourceSet) {
	t.Helper()
	set := types.NewSourceSet()
	require.NoError(t, set.Add(types.SourceFile{Name: "Token.sol", Content: "contract Token {}"}))
	set.Freeze()
	return &types.CompiledArtifact{
		ContractName:     "Token",
		SourceName:       "Token.sol",
		Bytecode:         "6080",
		DeployedBytecode: "6080",
		SourceList:       []string{"Token.sol"},
	}, set
}

func submitted(t *testing.T, client *fakeClient, clock Clock, mode Mode) (*Session, *Job) {
	t.Helper()
	s := NewSession(client, clock, nil)
	require.NoError(t, s.Authenticate(context.Background(), creds))
	artifact, sources := testArtifact(t)
	job, err := s.Submit(context.Background(), artifact, sources, mode)
	require.NoError(t, err)
	return s, job
}

func TestSession_HappyPath(t *testing.T) {
	clock := newFakeClock()
	client := &fakeClient{
		statuses: []JobStatus{StatusPending, StatusPending, StatusCompleted},
		findings: []types.RawFinding{{RuleID: "SWC-101"}},
	}
	s, job := submitted(t, client, clock, ModeQuick)
	assert.Equal(t, StateSubmitted, s.State())
	assert.Equal(t, testUUID, job.UUID.String())
	assert.Equal(t, "Token", client.lastSubmission.ContractName)
	assert.Equal(t, "contract Token {}", client.lastSubmission.Sources["Token.sol"].Source)
	assert.Equal(t, ModeQuick, client.lastSubmission.Mode)

	var polls []int
	s.OnPoll = func(j Job, elapsed time.Duration) { polls = append(polls, j.Polls) }

	require.NoError(t, s.Await(context.Background(), job))
	assert.Equal(t, StateCompleted, s.State())
	assert.Equal(t, 3, job.Polls)
	assert.Equal(t, []int{1, 2, 3}, polls)
	assert.Equal(t, []time.Duration{20 * time.Second, 5 * time.Second, 5 * time.Second}, clock.Waits())

	raw, err := s.Retrieve(context.Background(), job)
	require.NoError(t, err)
	assert.Len(t, raw, 1)
	assert.Equal(t, 1, client.resultCalls)
}

func TestSession_QuickModeTimesOut(t *testing.T) {
	clock := newFakeClock()
	client := &fakeClient{statuses: []JobStatus{StatusPending}}
	s, job := submitted(t, client, clock, ModeQuick)

	err := s.Await(context.Background(), job)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, testUUID, timeout.UUID)
	assert.Equal(t, 180*time.Second, timeout.Elapsed)
	assert.Equal(t, StateTimedOut, s.State())
	assert.Nil(t, s.Job(), "session drops the job after a timeout")

	// polls at 20s, 25s, ..., 175s
	assert.Equal(t, 32, client.statusCalls)
	waits := clock.Waits()
	assert.Equal(t, 20*time.Second, waits[0])

	_, err = s.Retrieve(context.Background(), job)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 0, client.resultCalls)
}

func TestSession_FullModeBacksOff(t *testing.T) {
	clock := newFakeClock()
	client := &fakeClient{statuses: []JobStatus{StatusPending}}
	s, job := submitted(t, client, clock, ModeFull)

	err := s.Await(context.Background(), job)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 2400*time.Second, timeout.Elapsed)

	waits := clock.Waits()
	require.GreaterOrEqual(t, len(waits), 6)
	assert.Equal(t, 300*time.Second, waits[0])
	assert.Equal(t, 30*time.Second, waits[1])
	assert.Equal(t, 45*time.Second, waits[2])
	assert.Equal(t, 67500*time.Millisecond, waits[3])
	assert.Equal(t, 101250*time.Millisecond, waits[4])
	assert.Equal(t, 120*time.Second, waits[5])
	for _, w := range waits {
		assert.LessOrEqual(t, w, 300*time.Second)
	}
}

func TestSession_RemoteFailure(t *testing.T) {
	client := &fakeClient{statuses: []JobStatus{StatusPending, StatusFailed}}
	s, job := submitted(t, client, newFakeClock(), ModeQuick)

	err := s.Await(context.Background(), job)
	var failed *JobFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, StateFailed, s.State())

	_, err = s.Retrieve(context.Background(), job)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSession_Authentication(t *testing.T) {
	tests := []struct {
		name      string
		creds     Credentials
		authErr   error
		wantAuth  bool
		wantCalls int
	}{
		{"missing password", Credentials{EthAddress: "0xabc"}, nil, true, 0},
		{"rejected", creds, ErrAuthentication, true, 1},
		{"network", creds, errors.New("connection refused"), false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{authErr: tt.authErr}
			s := NewSession(client, newFakeClock(), nil)
			err := s.Authenticate(context.Background(), tt.creds)
			require.Error(t, err)
			assert.Equal(t, tt.wantAuth, errors.Is(err, ErrAuthentication))
			if !tt.wantAuth {
				var te *TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, types.StageAuth, te.Stage)
			}
			assert.Equal(t, tt.wantCalls, client.authCalls)
			assert.Equal(t, StateUnauthenticated, s.State())
		})
	}
}

func TestSession_InvalidTransitions(t *testing.T) {
	client := &fakeClient{statuses: []JobStatus{StatusCompleted}}
	s := NewSession(client, newFakeClock(), nil)
	artifact, sources := testArtifact(t)
	ctx := context.Background()

	_, err := s.Submit(ctx, artifact, sources, ModeQuick)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, s.Await(ctx, &Job{}), ErrInvalidTransition)

	require.NoError(t, s.Authenticate(ctx, creds))
	assert.ErrorIs(t, s.Authenticate(ctx, creds), ErrInvalidTransition)

	job, err := s.Submit(ctx, artifact, sources, ModeQuick)
	require.NoError(t, err)
	_, err = s.Retrieve(ctx, job)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, 0, client.statusCalls)
	assert.Equal(t, 0, client.resultCalls)
}

func TestSession_TransportFailures(t *testing.T) {
	ctx := context.Background()

	client := &fakeClient{submitErr: errors.New("503")}
	s := NewSession(client, newFakeClock(), nil)
	require.NoError(t, s.Authenticate(ctx, creds))
	artifact, sources := testArtifact(t)
	_, err := s.Submit(ctx, artifact, sources, ModeQuick)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, types.StageSubmit, te.Stage)

	client = &fakeClient{jobUUID: "not-a-uuid"}
	s = NewSession(client, newFakeClock(), nil)
	require.NoError(t, s.Authenticate(ctx, creds))
	_, err = s.Submit(ctx, artifact, sources, ModeQuick)
	require.ErrorAs(t, err, &te)

	client = &fakeClient{statusErr: errors.New("connection reset")}
	s, job := submitted(t, client, newFakeClock(), ModeQuick)
	err = s.Await(ctx, job)
	require.ErrorAs(t, err, &te)
	assert.Equal(t, types.StagePoll, te.Stage)
	assert.Equal(t, 1, client.statusCalls, "no retries")

	client = &fakeClient{statuses: []JobStatus{StatusCompleted}, resultErr: errors.New("500")}
	s, job = submitted(t, client, newFakeClock(), ModeQuick)
	require.NoError(t, s.Await(ctx, job))
	_, err = s.Retrieve(ctx, job)
	var re *RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, testUUID, re.UUID)
}

// blockingClock never fires
type blockingClock struct{ *fakeClock }

func (c *blockingClock) After(d time.Duration) <-chan time.Time { return make(chan time.Time) }

func TestSession_AwaitHonoursCancellation(t *testing.T) {
	client := &fakeClient{statuses: []JobStatus{StatusPending}}
	clock := &blockingClock{fakeClock: newFakeClock()}
	s, job := submitted(t, client, clock, ModeQuick)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Await(ctx, job) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Await did not return after cancellation")
	}
	assert.Equal(t, 0, client.statusCalls)
	assert.Equal(t, StateCanceled, s.State())

	_, err := s.Retrieve(context.Background(), job)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSession_RequestTimeoutIsTransportError(t *testing.T) {
	// an HTTP client timeout wraps context.DeadlineExceeded long before the mode timeout
	clock := newFakeClock()
	client := &fakeClient{statusErr: fmt.Errorf("Get status: %w", context.DeadlineExceeded)}
	s, job := submitted(t, client, clock, ModeQuick)

	err := s.Await(context.Background(), job)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, types.StagePoll, te.Stage)
	var timeout *TimeoutError
	assert.False(t, errors.As(err, &timeout))
	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, 1, client.statusCalls)
	assert.NotNil(t, s.Job(), "job is kept after a transport failure")
}

// slowClient answers status requests only when their context ends
type slowClient struct {
	*fakeClient
}

func (c *slowClient) Status(ctx context.Context, token, id string) (JobStatus, error) {
	c.mu.Lock()
	c.statusCalls++
	c.mu.Unlock()
	<-ctx.Done()
	return "", fmt.Errorf("Get status: %w", ctx.Err())
}

// jumpClock moves straight to a fixed offset on its first wait
type jumpClock struct {
	*fakeClock
	jump   time.Duration
	jumped bool
}

func (c *jumpClock) After(d time.Duration) <-chan time.Time {
	if !c.jumped {
		c.jumped = true
		return c.fakeClock.After(c.jump)
	}
	return c.fakeClock.After(d)
}

func TestSession_StatusRequestBoundedByDeadline(t *testing.T) {
	clock := &jumpClock{fakeClock: newFakeClock(), jump: 180*time.Second - 20*time.Millisecond}
	client := &slowClient{fakeClient: &fakeClient{}}
	s, job := submitted(t, client.fakeClient, clock, ModeQuick)
	s.client = client

	start := time.Now()
	err := s.Await(context.Background(), job)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, StateTimedOut, s.State())
	assert.Equal(t, 1, client.statusCalls)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSession_SlowStatusPastDeadlineTimesOut(t *testing.T) {
	clock := newFakeClock()
	client := &fakeClient{statusErr: errors.New("connection reset")}
	client.onStatus = func() {
		// the request took the rest of the analysis window
		clock.mu.Lock()
		clock.now = clock.now.Add(200 * time.Second)
		clock.mu.Unlock()
	}
	s, job := submitted(t, client, clock, ModeQuick)

	err := s.Await(context.Background(), job)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, StateTimedOut, s.State())
	assert.Nil(t, s.Job())
}

func TestSession_DeadlineIsInclusive(t *testing.T) {
	// polls at 20s..175s stay pending; the job would complete at 180s
	statuses := make([]JobStatus, 0, 33)
	for range 32 {
		statuses = append(statuses, StatusPending)
	}
	statuses = append(statuses, StatusCompleted)
	client := &fakeClient{statuses: statuses}
	s, job := submitted(t, client, newFakeClock(), ModeQuick)

	err := s.Await(context.Background(), job)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 180*time.Second, timeout.Elapsed)
	assert.Equal(t, 32, client.statusCalls, "no request is sent at the deadline")
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Full")
	require.NoError(t, err)
	assert.Equal(t, ModeFull, m)

	_, err = ParseMode("deep")
	assert.Error(t, err)

	assert.Equal(t, 180*time.Second, ModeQuick.Schedule().Timeout)
	assert.Equal(t, 2400*time.Second, ModeFull.Schedule().Timeout)
}
