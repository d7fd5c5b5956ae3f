package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shellpilot/internal/events"
	"shellpilot/internal/planner"
	"shellpilot/internal/risk"
	"shellpilot/internal/ssh"

	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

type fakePlanner struct {
	plan     *events.Plan
	set      *planner.CommandSet
	planErr  error
	panicMsg string
	// when set, Plan blocks until it is closed or the execution is cancelled
	gate chan struct{}

	mu       sync.Mutex
	contexts []planner.Context
}

func (f *fakePlanner) Plan(ctx context.Context, prompt string, pctx planner.Context) (*events.Plan, error) {
	f.mu.Lock()
	f.contexts = append(f.contexts, pctx)
	f.mu.Unlock()

	if f.panicMsg != "" {
		panic(f.panicMsg)
	}

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.planErr != nil {
		return nil, f.planErr
	}

	return f.plan, nil
}

func (f *fakePlanner) Commands(ctx context.Context, plan *events.Plan, pctx planner.Context) (*planner.CommandSet, error) {
	return f.set, nil
}

type fakeClassifier struct {
	assessment risk.Assessment
	err        error
}

func (f *fakeClassifier) Classify(ctx context.Context, commands []string) (*risk.Assessment, error) {
	if f.err != nil {
		return nil, f.err
	}

	a := f.assessment
	return &a, nil
}

type fakeAnalyzer struct {
	analysis *events.Analysis
	err      error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, prompt string, results []ssh.CommandResult) (*events.Analysis, error) {
	return f.analysis, f.err
}

type fakeCredentials struct {
	err error
}

func (f *fakeCredentials) Credentials(ctx context.Context, serverID string) (*ssh.Credentials, error) {
	if f.err != nil {
		return nil, f.err
	}

	return &ssh.Credentials{Host: "10.0.0.5", Port: 22, Username: "deploy", AuthType: ssh.AuthTypePassword, Password: "pw"}, nil
}

// fakeExecutor mimics the sequencer: one output chunk per command, stop on
// the first failure, check ctx between commands.
type fakeExecutor struct {
	failOn map[string]int
	// when set, each command announces itself and waits for a release
	started chan string
	release chan struct{}

	mu  sync.Mutex
	ran []string
}

func (f *fakeExecutor) ExecuteCommands(ctx context.Context, serverID string, commands []string, creds *ssh.Credentials, output chan<- ssh.Output) []ssh.CommandResult {
	var results []ssh.CommandResult

	for _, command := range commands {
		if ctx.Err() != nil {
			break
		}

		if f.started != nil {
			f.started <- command
			<-f.release
		}

		f.mu.Lock()
		f.ran = append(f.ran, command)
		f.mu.Unlock()

		result := ssh.CommandResult{Command: command, Stdout: command + ": ok", Success: true}

		if code, ok := f.failOn[command]; ok {
			result = ssh.CommandResult{Command: command, Stderr: command + ": failed", ExitCode: code}
			output <- ssh.Output{Stream: ssh.StreamStderr, Content: result.Stderr}
		} else {
			output <- ssh.Output{Stream: ssh.StreamStdout, Content: result.Stdout}
		}

		results = append(results, result)

		if !result.Success {
			break
		}
	}

	return results
}

func (f *fakeExecutor) commandsRun() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.ran...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Emit(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, e)
}

func (s *recordingSink) all() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]events.Event(nil), s.events...)
}

// kinds lists emitted event kinds without status notices.
func (s *recordingSink) kinds() []events.Kind {
	var kinds []events.Kind

	for _, e := range s.all() {
		if e.Kind() != events.KindStatus {
			kinds = append(kinds, e.Kind())
		}
	}

	return kinds
}

func (s *recordingSink) find(kind events.Kind) (events.Event, bool) {
	for _, e := range s.all() {
		if e.Kind() == kind {
			return e, true
		}
	}

	return nil, false
}

func (s *recordingSink) hasStatus(status Status) bool {
	for _, e := range s.all() {
		if st, ok := e.(events.Status); ok && st.Status == string(status) {
			return true
		}
	}

	return false
}

func (s *recordingSink) waitFor(t *testing.T, kind events.Kind) events.Event {
	t.Helper()

	var found events.Event

	require.Eventually(t, func() bool {
		e, ok := s.find(kind)
		found = e
		return ok
	}, waitTimeout, 5*time.Millisecond, "no %s event", kind)

	return found
}

func (s *recordingSink) waitForStatus(t *testing.T, status Status) {
	t.Helper()

	require.Eventually(t, func() bool { return s.hasStatus(status) }, waitTimeout, 5*time.Millisecond, "no %s status", status)
}

type memoryRecorder struct {
	snapshots chan Snapshot
	err       error
}

func newMemoryRecorder() *memoryRecorder {
	return &memoryRecorder{snapshots: make(chan Snapshot, 16)}
}

func (r *memoryRecorder) Record(ctx context.Context, s Snapshot) error {
	r.snapshots <- s
	return r.err
}

func (r *memoryRecorder) wait(t *testing.T) Snapshot {
	t.Helper()

	select {
	case s := <-r.snapshots:
		return s
	case <-time.After(waitTimeout):
		t.Fatal("execution was not recorded")
		return Snapshot{}
	}
}

type harness struct {
	planner    *fakePlanner
	classifier *fakeClassifier
	executor   *fakeExecutor
	recorder   *memoryRecorder
	sink       *recordingSink
	o          *Orchestrator
}

func newHarness(t *testing.T, level risk.Level, commands ...string) *harness {
	t.Helper()

	h := &harness{
		planner: &fakePlanner{
			plan: &events.Plan{Objective: "Update the system", Steps: []string{"refresh", "upgrade"}, Risks: []string{}, EstimatedTime: "2 minutes"},
			set:  &planner.CommandSet{Commands: commands, Explanation: "refresh and upgrade", Warnings: []string{}},
		},
		classifier: &fakeClassifier{assessment: risk.Assessment{Level: level, BlockedCommands: []string{}, Reason: "scored"}},
		executor:   &fakeExecutor{},
		recorder:   newMemoryRecorder(),
		sink:       &recordingSink{},
	}

	h.o = New(h.planner, h.classifier, h.executor, &fakeCredentials{}, WithRecorder(h.recorder))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = h.o.Shutdown(ctx)
	})

	return h
}

func (h *harness) execute(t *testing.T, prompt string) string {
	t.Helper()

	id, err := h.o.Execute("conn-1", h.sink, events.Execute{ServerID: "s1", Prompt: prompt})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	return id
}

func requireProtocolError(t *testing.T, err error, cause error) {
	t.Helper()

	var perr *ProtocolError
	require.True(t, errors.As(err, &perr), "expected ProtocolError, got %v", err)
	require.True(t, errors.Is(err, cause), "expected %v, got %v", cause, err)
}
