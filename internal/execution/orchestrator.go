package execution

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"shellpilot/internal/events"
	"shellpilot/internal/logger"
	"shellpilot/internal/risk"

	"github.com/google/uuid"
)

const (
	DefaultConfirmationThreshold = risk.LevelLow
	DefaultRecordTimeout         = 10 * time.Second
)

// Orchestrator drives every active execution. Each execution gets its own
// worker goroutine; the registry lock is only held for map access.
type Orchestrator struct {
	planner     Planner
	analyzer    Analyzer
	classifier  RiskClassifier
	executor    Executor
	credentials CredentialSource
	recorder    Recorder

	threshold     risk.Level
	recordTimeout time.Duration

	mu         sync.Mutex
	executions map[string]*Execution
	closed     bool
	workers    sync.WaitGroup
}

type Option func(*Orchestrator)

// WithAnalyzer sets the collaborator that summarizes results. Without one,
// or when it fails, a summary is built locally.
func WithAnalyzer(a Analyzer) Option {
	return func(o *Orchestrator) { o.analyzer = a }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithConfirmationThreshold sets the highest risk level that runs without
// confirmation.
func WithConfirmationThreshold(level risk.Level) Option {
	return func(o *Orchestrator) { o.threshold = level }
}

func New(planner Planner, classifier RiskClassifier, executor Executor, credentials CredentialSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		planner:       planner,
		classifier:    classifier,
		executor:      executor,
		credentials:   credentials,
		threshold:     DefaultConfirmationThreshold,
		recordTimeout: DefaultRecordTimeout,
		executions:    make(map[string]*Execution),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Execute registers a new execution in PLANNING and starts its worker. The
// returned id addresses later confirm and cancel requests from owner.
func (o *Orchestrator) Execute(owner string, sink Sink, req events.Execute) (string, error) {
	req.ServerID = strings.TrimSpace(req.ServerID)
	req.Prompt = strings.TrimSpace(req.Prompt)

	if req.ServerID == "" || req.Prompt == "" {
		return "", protocolError("", fmt.Errorf("%w: serverId and prompt are required", ErrInvalidRequest))
	}

	e := newExecution(uuid.NewString(), owner, sink, req)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return "", protocolError("", ErrShuttingDown)
	}
	o.executions[e.id] = e
	o.workers.Add(1)
	o.mu.Unlock()

	logger.Info("Execution %s started for server %s (dry run: %t)", e.id, e.serverID, e.dryRun)

	go o.run(e)

	return e.id, nil
}

// Confirm releases an execution waiting in AWAITING_CONFIRMATION.
func (o *Orchestrator) Confirm(owner, id string) error {
	e, err := o.lookup(owner, id)

	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status.Terminal() {
		return protocolError(id, ErrUnknownExecution)
	}

	if e.status != StatusAwaitingConfirmation {
		return protocolError(id, fmt.Errorf("%w (status %s)", ErrNotAwaitingConfirmation, e.status))
	}

	if err := e.transition(StatusExecuting); err != nil {
		return protocolError(id, err)
	}

	e.emitStatus(fmt.Sprintf("Confirmed, executing %d commands", len(e.commands)))
	close(e.confirmed)

	logger.Info("Execution %s confirmed", id)

	return nil
}

// Cancel stops an active execution. A command already running on the server
// finishes, but nothing after it starts and no further events are sent.
func (o *Orchestrator) Cancel(owner, id string) error {
	e, err := o.lookup(owner, id)

	if err != nil {
		return err
	}

	if !o.cancel(e, "Execution cancelled") {
		return protocolError(id, ErrUnknownExecution)
	}

	logger.Info("Execution %s cancelled", id)

	return nil
}

func (o *Orchestrator) cancel(e *Execution, message string) bool {
	e.mu.Lock()

	if e.status.Terminal() {
		e.mu.Unlock()
		return false
	}

	e.emit(events.Status{ExecutionID: e.id, Status: string(StatusCancelled), Message: message})
	_ = e.transition(StatusCancelled)
	e.mu.Unlock()

	o.evict(e)

	return true
}

// Release cancels every execution owned by owner. The channel calls it when
// the client disconnects.
func (o *Orchestrator) Release(owner string) {
	for _, e := range o.owned(owner) {
		if o.cancel(e, "Client disconnected") {
			logger.Info("Execution %s cancelled: owner disconnected", e.id)
		}
	}
}

// Active returns snapshots of all non-terminal executions, oldest first.
func (o *Orchestrator) Active() []Snapshot {
	o.mu.Lock()
	list := make([]*Execution, 0, len(o.executions))
	for _, e := range o.executions {
		list = append(list, e)
	}
	o.mu.Unlock()

	snapshots := make([]Snapshot, 0, len(list))
	for _, e := range list {
		snapshots = append(snapshots, e.Snapshot())
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt)
	})

	return snapshots
}

// Shutdown refuses new executions, cancels the active ones and waits for
// their workers until ctx expires.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	list := make([]*Execution, 0, len(o.executions))
	for _, e := range o.executions {
		list = append(list, e)
	}
	o.mu.Unlock()

	for _, e := range list {
		o.cancel(e, "Server shutting down")
	}

	done := make(chan struct{})
	go func() {
		o.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for execution workers: %w", ctx.Err())
	}
}

// lookup hides executions of other owners behind ErrUnknownExecution.
func (o *Orchestrator) lookup(owner, id string) (*Execution, error) {
	o.mu.Lock()
	e, ok := o.executions[id]
	o.mu.Unlock()

	if !ok || e.owner != owner {
		return nil, protocolError(id, ErrUnknownExecution)
	}

	return e, nil
}

func (o *Orchestrator) owned(owner string) []*Execution {
	o.mu.Lock()
	defer o.mu.Unlock()

	var list []*Execution
	for _, e := range o.executions {
		if e.owner == owner {
			list = append(list, e)
		}
	}

	return list
}

func (o *Orchestrator) evict(e *Execution) {
	o.mu.Lock()
	if o.executions[e.id] == e {
		delete(o.executions, e.id)
	}
	o.mu.Unlock()
}

// retire runs when a worker stops: the execution leaves the registry and is
// handed to the recorder.
func (o *Orchestrator) retire(e *Execution) {
	e.mu.Lock()
	if !e.status.Terminal() {
		e.fail(fmt.Errorf("%w: worker stopped in status %s", ErrInternal, e.status))
	}
	e.mu.Unlock()

	o.evict(e)

	snapshot := e.Snapshot()

	logger.Info("Execution %s finished with status %s", snapshot.ID, snapshot.Status)

	if o.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.recordTimeout)
	defer cancel()

	if err := o.recorder.Record(ctx, snapshot); err != nil {
		logger.Error("Failed to record execution %s: %v", snapshot.ID, err)
	}
}
