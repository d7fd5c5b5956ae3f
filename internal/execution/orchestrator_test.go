package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"shellpilot/internal/events"
	"shellpilot/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPlanning, StatusAwaitingConfirmation},
		{StatusPlanning, StatusExecuting},
		{StatusPlanning, StatusCompleted},
		{StatusPlanning, StatusFailed},
		{StatusPlanning, StatusCancelled},
		{StatusAwaitingConfirmation, StatusExecuting},
		{StatusAwaitingConfirmation, StatusCancelled},
		{StatusAwaitingConfirmation, StatusFailed},
		{StatusExecuting, StatusCompleted},
		{StatusExecuting, StatusFailed},
		{StatusExecuting, StatusCancelled},
	}

	for _, tr := range allowed {
		assert.True(t, CanTransition(tr.from, tr.to), "%s -> %s", tr.from, tr.to)
	}

	rejected := []struct{ from, to Status }{
		{StatusExecuting, StatusPlanning},
		{StatusExecuting, StatusAwaitingConfirmation},
		{StatusAwaitingConfirmation, StatusPlanning},
		{StatusAwaitingConfirmation, StatusCompleted},
		{StatusCompleted, StatusCancelled},
		{StatusFailed, StatusExecuting},
		{StatusCancelled, StatusExecuting},
		{StatusCancelled, StatusCancelled},
	}

	for _, tr := range rejected {
		assert.False(t, CanTransition(tr.from, tr.to), "%s -> %s", tr.from, tr.to)
	}

	e := newExecution("e1", "owner", nil, events.Execute{ServerID: "s1", Prompt: "p"})
	require.NoError(t, e.transition(StatusExecuting))
	require.NoError(t, e.transition(StatusCompleted))
	assert.True(t, errors.Is(e.transition(StatusCancelled), ErrInvalidTransition))
	assert.Error(t, e.ctx.Err(), "terminal status cancels the execution context")
}

func TestLowRiskRunsWithoutConfirmation(t *testing.T) {
	h := newHarness(t, risk.LevelLow, "apt update", "apt upgrade -y")

	id := h.execute(t, "update system")
	snapshot := h.recorder.wait(t)

	assert.Equal(t, []events.Kind{
		events.KindPlan,
		events.KindCommands,
		events.KindOutput,
		events.KindOutput,
		events.KindComplete,
	}, h.sink.kinds())

	cmds, _ := h.sink.find(events.KindCommands)
	assert.Equal(t, events.Commands{
		ExecutionID:          id,
		Commands:             []string{"apt update", "apt upgrade -y"},
		Explanation:          "refresh and upgrade",
		RiskLevel:            "LOW",
		RequiresConfirmation: false,
		Warnings:             []string{},
	}, cmds)

	complete, _ := h.sink.find(events.KindComplete)
	assert.True(t, complete.(events.Complete).Success)
	assert.Contains(t, complete.(events.Complete).Analysis.Summary, "2 commands")

	for _, e := range h.sink.all() {
		assert.Equal(t, id, events.ExecutionID(e))
	}

	assert.Equal(t, []string{"apt update", "apt upgrade -y"}, h.executor.commandsRun())
	assert.Equal(t, StatusCompleted, snapshot.Status)
	assert.Len(t, snapshot.Results, 2)
	assert.Equal(t, "apt update: ok\napt upgrade -y: ok\n", snapshot.Output)
	assert.Empty(t, h.o.Active())

	// the planner sees the target host but never its secrets
	assert.Equal(t, "10.0.0.5", h.planner.contexts[0].Host)
	assert.Equal(t, "deploy", h.planner.contexts[0].Username)
}

func TestConfirmationGate(t *testing.T) {
	h := newHarness(t, risk.LevelHigh, "systemctl stop nginx", "rm -r /var/www/old")

	id := h.execute(t, "remove the old site")
	h.sink.waitForStatus(t, StatusAwaitingConfirmation)

	cmds, _ := h.sink.find(events.KindCommands)
	assert.True(t, cmds.(events.Commands).RequiresConfirmation)
	assert.Equal(t, "HIGH", cmds.(events.Commands).RiskLevel)

	// nothing runs while the gate is closed
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, h.executor.commandsRun())
	require.Len(t, h.o.Active(), 1)
	assert.Equal(t, StatusAwaitingConfirmation, h.o.Active()[0].Status)

	require.NoError(t, h.o.Confirm("conn-1", id))

	snapshot := h.recorder.wait(t)
	assert.Equal(t, StatusCompleted, snapshot.Status)
	assert.Equal(t, []string{"systemctl stop nginx", "rm -r /var/www/old"}, h.executor.commandsRun())
	assert.Equal(t, []events.Kind{
		events.KindPlan,
		events.KindCommands,
		events.KindOutput,
		events.KindOutput,
		events.KindComplete,
	}, h.sink.kinds())
}

func TestConfirmationThreshold(t *testing.T) {
	h := newHarness(t, risk.LevelHigh, "systemctl stop nginx")
	h.o.threshold = risk.LevelHigh

	h.execute(t, "stop nginx")
	snapshot := h.recorder.wait(t)

	assert.Equal(t, StatusCompleted, snapshot.Status)
	assert.False(t, snapshot.RequiresConfirmation)
}

func TestCancelWhileAwaitingConfirmation(t *testing.T) {
	h := newHarness(t, risk.LevelCritical, "reboot")

	id := h.execute(t, "reboot the box")
	h.sink.waitForStatus(t, StatusAwaitingConfirmation)

	require.NoError(t, h.o.Cancel("conn-1", id))

	snapshot := h.recorder.wait(t)
	assert.Equal(t, StatusCancelled, snapshot.Status)
	assert.Empty(t, h.executor.commandsRun())
	assert.True(t, h.sink.hasStatus(StatusCancelled))

	_, completed := h.sink.find(events.KindComplete)
	assert.False(t, completed)

	// terminal executions accept nothing further
	requireProtocolError(t, h.o.Confirm("conn-1", id), ErrUnknownExecution)
	requireProtocolError(t, h.o.Cancel("conn-1", id), ErrUnknownExecution)
}

func TestBlockedCommandsNeverRun(t *testing.T) {
	h := newHarness(t, risk.LevelLow, "uptime", "rm -rf /")
	h.classifier.assessment = risk.Assessment{
		Level:           risk.LevelCritical,
		BlockedCommands: []string{"rm -rf /"},
		Reason:          "removes the root filesystem",
	}

	id := h.execute(t, "clean up")
	snapshot := h.recorder.wait(t)

	assert.Equal(t, StatusFailed, snapshot.Status)
	assert.Empty(t, h.executor.commandsRun())
	assert.Equal(t, []events.Kind{events.KindPlan, events.KindBlocked}, h.sink.kinds())

	blocked, _ := h.sink.find(events.KindBlocked)
	assert.Equal(t, events.Blocked{
		ExecutionID:     id,
		BlockedCommands: []string{"rm -rf /"},
		Reason:          "removes the root filesystem",
	}, blocked)
}

func TestCompletedExecutionRejectsConfirmAndCancel(t *testing.T) {
	h := newHarness(t, risk.LevelLow, "uptime")

	id := h.execute(t, "uptime")
	h.recorder.wait(t)

	requireProtocolError(t, h.o.Confirm("conn-1", id), ErrUnknownExecution)
	requireProtocolError(t, h.o.Cancel("conn-1", id), ErrUnknownExecution)
}

func TestConfirmOutsideAwaitingConfirmation(t *testing.T) {
	h := newHarness(t, risk.LevelLow, "uptime")
	h.planner.gate = make(chan struct{})

	id := h.execute(t, "uptime")

	requireProtocolError(t, h.o.Confirm("conn-1", id), ErrNotAwaitingConfirmation)

	close(h.planner.gate)
	assert.Equal(t, StatusCompleted, h.recorder.wait(t).Status)
}

func TestForeignOwnerCannotTouchExecution(t *testing.T) {
	h := newHarness(t, risk.LevelHigh, "systemctl stop nginx")

	id := h.execute(t, "stop nginx")
	h.sink.waitForStatus(t, StatusAwaitingConfirmation)

	requireProtocolError(t, h.o.Confirm("conn-2", id), ErrUnknownExecution)
	requireProtocolError(t, h.o.Cancel("conn-2", id), ErrUnknownExecution)
	requireProtocolError(t, h.o.Confirm("conn-1", "no-such-id"), ErrUnknownExecution)

	require.Len(t, h.o.Active(), 1)
	assert.Empty(t, h.executor.commandsRun())
}

func TestCancelDuringPlanning(t *testing.T) {
	h := newHarness(t, risk.LevelLow, "uptime")
	h.planner.gate = make(chan struct{})

	id := h.execute(t, "uptime")
	require.NoError(t, h.o.Cancel("conn-1", id))

	snapshot := h.recorder.wait(t)
	assert.Equal(t, StatusCancelled, snapshot.Status)
	assert.Empty(t, snapshot.Error, "the aborted planner call is not reported as a failure")

	_, hasError := h.sink.find(events.KindError)
	assert.False(t, hasError)
}

func TestCancelDuringExecutionLetsInFlightCommandFinish(t *testing.T) {
	h := newHarness(t, risk.LevelLow, "first", "second", "third")
	h.executor.started = make(chan string)
	h.executor.release = make(chan struct{})

	id := h.execute(t, "run three things")

	select {
	case command := <-h.executor.started:
		assert.Equal(t, "first", command)
	case <-time.After(waitTimeout):
		t.Fatal("first command never started")
	}

	require.NoError(t, h.o.Cancel("conn-1", id))
	close(h.executor.release)

	snapshot := h.recorder.wait(t)

	assert.Equal(t, StatusCancelled, snapshot.Status)
	assert.Equal(t, []string{"first"}, h.executor.commandsRun())
	assert.Len(t, snapshot.Results, 1)

	_, completed := h.sink.find(events.KindComplete)
	assert.False(t, completed)

	// nothing is emitted after the cancellation notice
	all := h.sink.all()
	last := all[len(all)-1].(events.Status)
	assert.Equal(t, string(StatusCancelled), last.Status)
}

func TestStopOnFirstFailure(t *testing.T) {
	h := newHarness(t, risk.LevelLow, "A", "B", "C")
	h.executor.failOn = map[string]int{"B": 2}

	h.execute(t, "a b c")
	snapshot := h.recorder.wait(t)

	assert.Equal(t, StatusFailed, snapshot.Status)
	assert.Equal(t, []string{"A", "B"}, h.executor.commandsRun())
	require.Len(t, snapshot.Results, 2)
	assert.Equal(t, 2, snapshot.Results[1].ExitCode)

	complete, _ := h.sink.find(events.KindComplete)
	c := complete.(events.Complete)
	assert.False(t, c.Success)
	assert.Contains(t, c.Analysis.Summary, `"B" failed with exit code 2`)
	assert.Contains(t, c.Analysis.Details, "1 remaining commands were not run")

	output, _ := h.sink.find(events.KindOutput)
	assert.Equal(t, "stdout", output.(events.Output).Type)
}

func TestOutputAlwaysPrecedesComplete(t *testing.T) {
	commands := make([]string, 200)
	for i := range commands {
		commands[i] = fmt.Sprintf("step-%d", i)
	}

	h := newHarness(t, risk.LevelLow, commands...)

	h.execute(t, "many steps")
	h.recorder.wait(t)

	kinds := h.sink.kinds()
	require.Len(t, kinds, 2+len(commands)+1)
	assert.Equal(t, events.KindComplete, kinds[len(kinds)-1])

	var outputs []string
	for _, e := range h.sink.all() {
		if o, ok := e.(events.Output); ok {
			outputs = append(outputs, o.Content)
		}
	}

	for i, content := range outputs {
		assert.Equal(t, commands[i]+": ok", content)
	}
}

func TestDryRunPlansWithoutExecuting(t *testing.T) {
	h := newHarness(t, risk.LevelHigh, "systemctl restart nginx")

	id, err := h.o.Execute("conn-1", h.sink, events.Execute{ServerID: "s1", Prompt: "restart nginx", DryRun: true})
	require.NoError(t, err)

	snapshot := h.recorder.wait(t)

	assert.Equal(t, StatusCompleted, snapshot.Status)
	assert.Empty(t, h.executor.commandsRun())
	assert.Equal(t, []events.Kind{events.KindPlan, events.KindCommands, events.KindComplete}, h.sink.kinds())

	complete, _ := h.sink.find(events.KindComplete)
	assert.True(t, complete.(events.Complete).Success)
	assert.Contains(t, complete.(events.Complete).Analysis.Summary, "Dry run")

	requireProtocolError(t, h.o.Confirm("conn-1", id), ErrUnknownExecution)
}

func TestAnalyzer(t *testing.T) {
	t.Run("used when available", func(t *testing.T) {
		h := newHarness(t, risk.LevelLow, "uptime")
		WithAnalyzer(&fakeAnalyzer{analysis: &events.Analysis{Summary: "Host is healthy", NextSteps: []string{"none"}}})(h.o)

		h.execute(t, "uptime")
		snapshot := h.recorder.wait(t)

		assert.Equal(t, "Host is healthy", snapshot.Analysis.Summary)
	})

	t.Run("falls back to a local summary", func(t *testing.T) {
		h := newHarness(t, risk.LevelLow, "uptime")
		WithAnalyzer(&fakeAnalyzer{err: errors.New("analysis service down")})(h.o)

		h.execute(t, "uptime")
		snapshot := h.recorder.wait(t)

		assert.Equal(t, StatusCompleted, snapshot.Status)
		assert.Equal(t, "All 1 commands completed successfully.", snapshot.Analysis.Summary)
	})
}

func TestFailuresEndInErrorEventAndFailed(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(h *harness)
		cause   string
	}{
		{
			name:    "planner error",
			prepare: func(h *harness) { h.planner.planErr = errors.New("model unavailable") },
			cause:   "model unavailable",
		},
		{
			name:    "planner panic",
			prepare: func(h *harness) { h.planner.panicMsg = "nil map" },
			cause:   ErrInternal.Error(),
		},
		{
			name:    "classifier error",
			prepare: func(h *harness) { h.classifier.err = errors.New("classifier timeout") },
			cause:   "classifier timeout",
		},
		{
			name:    "no commands",
			prepare: func(h *harness) { h.planner.set.Commands = nil },
			cause:   ErrNoCommands.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, risk.LevelLow, "uptime")
			tt.prepare(h)

			id := h.execute(t, "uptime")
			snapshot := h.recorder.wait(t)

			assert.Equal(t, StatusFailed, snapshot.Status)
			assert.Empty(t, h.executor.commandsRun())

			e, ok := h.sink.find(events.KindError)
			require.True(t, ok)
			assert.Equal(t, id, e.(events.Error).ExecutionID)
			assert.Contains(t, e.(events.Error).Message, tt.cause)
		})
	}
}

func TestCredentialFailure(t *testing.T) {
	h := newHarness(t, risk.LevelLow, "uptime")
	h.o.credentials = &fakeCredentials{err: errors.New("record not found")}

	h.execute(t, "uptime")
	snapshot := h.recorder.wait(t)

	assert.Equal(t, StatusFailed, snapshot.Status)
	assert.Contains(t, snapshot.Error, ErrNoCredentials.Error())
	assert.Empty(t, h.planner.contexts)
}

func TestExecuteRejectsInvalidRequest(t *testing.T) {
	h := newHarness(t, risk.LevelLow, "uptime")

	_, err := h.o.Execute("conn-1", h.sink, events.Execute{ServerID: " ", Prompt: "uptime"})
	requireProtocolError(t, err, ErrInvalidRequest)

	_, err = h.o.Execute("conn-1", h.sink, events.Execute{ServerID: "s1"})
	requireProtocolError(t, err, ErrInvalidRequest)
}

func TestReleaseCancelsOnlyOwnedExecutions(t *testing.T) {
	h := newHarness(t, risk.LevelHigh, "systemctl stop nginx")
	other := &recordingSink{}

	mine := h.execute(t, "stop nginx")
	theirs, err := h.o.Execute("conn-2", other, events.Execute{ServerID: "s1", Prompt: "stop nginx"})
	require.NoError(t, err)

	h.sink.waitForStatus(t, StatusAwaitingConfirmation)
	other.waitForStatus(t, StatusAwaitingConfirmation)

	h.o.Release("conn-1")

	snapshot := h.recorder.wait(t)
	assert.Equal(t, mine, snapshot.ID)
	assert.Equal(t, StatusCancelled, snapshot.Status)

	active := h.o.Active()
	require.Len(t, active, 1)
	assert.Equal(t, theirs, active[0].ID)
}

func TestShutdownCancelsAndRefusesWork(t *testing.T) {
	h := newHarness(t, risk.LevelHigh, "systemctl stop nginx")

	h.execute(t, "stop nginx")
	h.sink.waitForStatus(t, StatusAwaitingConfirmation)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	require.NoError(t, h.o.Shutdown(ctx))
	assert.Equal(t, StatusCancelled, h.recorder.wait(t).Status)

	_, err := h.o.Execute("conn-1", h.sink, events.Execute{ServerID: "s1", Prompt: "uptime"})
	requireProtocolError(t, err, ErrShuttingDown)
}

func TestLocalAnalysis(t *testing.T) {
	a := localAnalysis(nil, []string{"a"})
	assert.Equal(t, "No commands were executed.", a.Summary)
	assert.NotNil(t, a.NextSteps)
}
