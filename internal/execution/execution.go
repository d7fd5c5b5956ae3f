package execution

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"shellpilot/internal/events"
	"shellpilot/internal/risk"
	"shellpilot/internal/ssh"
)

// Execution is the state of one submitted intent. Every field is guarded by
// mu; the worker goroutine and client requests (confirm, cancel) are the only
// writers.
type Execution struct {
	mu sync.Mutex

	id       string
	owner    string
	serverID string
	prompt   string
	dryRun   bool

	status               Status
	plan                 *events.Plan
	commands             []string
	explanation          string
	warnings             []string
	riskLevel            risk.Level
	requiresConfirmation bool
	results              []ssh.CommandResult
	output               strings.Builder
	analysis             *events.Analysis
	failure              string

	createdAt  time.Time
	finishedAt time.Time

	sink      Sink
	ctx       context.Context
	cancel    context.CancelFunc
	confirmed chan struct{}
}

func newExecution(id, owner string, sink Sink, req events.Execute) *Execution {
	ctx, cancel := context.WithCancel(context.Background())

	return &Execution{
		id:        id,
		owner:     owner,
		serverID:  req.ServerID,
		prompt:    req.Prompt,
		dryRun:    req.DryRun,
		status:    StatusPlanning,
		createdAt: time.Now(),
		sink:      sink,
		ctx:       ctx,
		cancel:    cancel,
		confirmed: make(chan struct{}),
	}
}

// transition moves the execution to the given status. Entering a terminal
// status cancels the execution context. Callers hold mu.
func (e *Execution) transition(to Status) error {
	if !CanTransition(e.status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.status, to)
	}

	e.status = to

	if to.Terminal() {
		e.finishedAt = time.Now()
		e.cancel()
	}

	return nil
}

// emit sends an event unless the execution is already terminal. Callers hold
// mu, which keeps events of one execution in production order.
func (e *Execution) emit(ev events.Event) {
	if e.status.Terminal() || e.sink == nil {
		return
	}

	e.sink.Emit(ev)
}

func (e *Execution) emitStatus(message string) {
	e.emit(events.Status{ExecutionID: e.id, Status: string(e.status), Message: message})
}

// fail emits an error event and moves to FAILED. It is a no-op for an
// execution that is already terminal.
func (e *Execution) fail(err error) bool {
	if e.status.Terminal() {
		return false
	}

	e.failure = err.Error()
	e.emit(events.Error{ExecutionID: e.id, Message: e.failure})

	return e.transition(StatusFailed) == nil
}

// Snapshot is a read-only copy of an execution.
type Snapshot struct {
	ID                   string
	Owner                string
	ServerID             string
	Prompt               string
	DryRun               bool
	Status               Status
	Plan                 *events.Plan
	Commands             []string
	Explanation          string
	Warnings             []string
	RiskLevel            risk.Level
	RequiresConfirmation bool
	Results              []ssh.CommandResult
	Output               string
	Analysis             *events.Analysis
	Error                string
	CreatedAt            time.Time
	FinishedAt           time.Time
}

func (e *Execution) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		ID:                   e.id,
		Owner:                e.owner,
		ServerID:             e.serverID,
		Prompt:               e.prompt,
		DryRun:               e.dryRun,
		Status:               e.status,
		Plan:                 e.plan,
		Commands:             append([]string(nil), e.commands...),
		Explanation:          e.explanation,
		Warnings:             append([]string(nil), e.warnings...),
		RiskLevel:            e.riskLevel,
		RequiresConfirmation: e.requiresConfirmation,
		Results:              append([]ssh.CommandResult(nil), e.results...),
		Output:               e.output.String(),
		Analysis:             e.analysis,
		Error:                e.failure,
		CreatedAt:            e.createdAt,
		FinishedAt:           e.finishedAt,
	}
}
