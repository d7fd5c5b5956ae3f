package execution

import (
	"fmt"
	"strings"

	"shellpilot/internal/events"
	"shellpilot/internal/logger"
	"shellpilot/internal/planner"
	"shellpilot/internal/risk"
	"shellpilot/internal/ssh"
)

const outputBuffer = 64

func (o *Orchestrator) run(e *Execution) {
	defer o.workers.Done()
	defer o.retire(e)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Execution %s panicked: %v", e.id, r)

			e.mu.Lock()
			e.fail(fmt.Errorf("%w: %v", ErrInternal, r))
			e.mu.Unlock()
		}
	}()

	creds, ok := o.prepare(e)

	if !ok {
		return
	}

	select {
	case <-e.confirmed:
	case <-e.ctx.Done():
		return
	}

	o.execute(e, creds)
}

// abort fails the execution unless it was cancelled while the failing call
// was in flight.
func (o *Orchestrator) abort(e *Execution, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fail(err) {
		logger.Warn("Execution %s failed: %v", e.id, err)
	}
}

// prepare runs the PLANNING phase: plan, commands and the risk gate. It
// returns true when the execution is headed for EXECUTING, either directly or
// after confirmation.
func (o *Orchestrator) prepare(e *Execution) (*ssh.Credentials, bool) {
	e.mu.Lock()
	e.emitStatus("Creating execution plan")
	e.mu.Unlock()

	creds, err := o.credentials.Credentials(e.ctx, e.serverID)

	if err != nil {
		o.abort(e, fmt.Errorf("%w: %v", ErrNoCredentials, err))
		return nil, false
	}

	pctx := planner.Context{
		ServerID: e.serverID,
		Host:     creds.Host,
		Username: creds.Username,
		DryRun:   e.dryRun,
	}

	plan, err := o.planner.Plan(e.ctx, e.prompt, pctx)

	if err != nil {
		o.abort(e, fmt.Errorf("%w: %v", ErrPlanningFailed, err))
		return nil, false
	}

	e.mu.Lock()
	e.plan = plan
	e.emit(events.PlanEvent{ExecutionID: e.id, Plan: *plan})
	e.emitStatus("Generating commands")
	e.mu.Unlock()

	set, err := o.planner.Commands(e.ctx, plan, pctx)

	if err != nil {
		o.abort(e, fmt.Errorf("%w: %v", ErrCommandsFailed, err))
		return nil, false
	}

	if len(set.Commands) == 0 {
		o.abort(e, ErrNoCommands)
		return nil, false
	}

	assessment, err := o.classifier.Classify(e.ctx, set.Commands)

	if err != nil {
		o.abort(e, fmt.Errorf("%w: %v", ErrRiskAssessment, err))
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status.Terminal() {
		return nil, false
	}

	e.commands = append([]string(nil), set.Commands...)
	e.explanation = set.Explanation
	e.riskLevel = assessment.Level
	e.warnings = append(append([]string{}, set.Warnings...), assessment.Warnings...)

	if assessment.Blocked() {
		e.failure = assessment.Reason
		e.emit(events.Blocked{
			ExecutionID:     e.id,
			BlockedCommands: assessment.BlockedCommands,
			Reason:          assessment.Reason,
		})
		_ = e.transition(StatusFailed)

		logger.Warn("Execution %s blocked: %s", e.id, assessment.Reason)

		return nil, false
	}

	e.requiresConfirmation = assessment.Level.Above(o.threshold)

	e.emit(events.Commands{
		ExecutionID:          e.id,
		Commands:             e.commands,
		Explanation:          e.explanation,
		RiskLevel:            assessment.Level.String(),
		RequiresConfirmation: e.requiresConfirmation,
		Warnings:             e.warnings,
	})

	switch {
	case e.dryRun:
		e.analysis = dryRunAnalysis(e.commands, e.explanation)
		e.emit(events.Complete{ExecutionID: e.id, Success: true, Analysis: *e.analysis})
		_ = e.transition(StatusCompleted)

		return nil, false
	case e.requiresConfirmation:
		_ = e.transition(StatusAwaitingConfirmation)
		e.emitStatus(fmt.Sprintf("Risk level %s: waiting for confirmation", assessment.Level))

		logger.Info("Execution %s awaiting confirmation (risk %s)", e.id, assessment.Level)
	default:
		_ = e.transition(StatusExecuting)
		e.emitStatus(fmt.Sprintf("Executing %d commands", len(e.commands)))
		close(e.confirmed)
	}

	return creds, true
}

// execute runs the EXECUTING phase. Output is forwarded by a separate
// goroutine that is drained before complete is sent.
func (o *Orchestrator) execute(e *Execution, creds *ssh.Credentials) {
	e.mu.Lock()
	commands := e.commands
	e.mu.Unlock()

	output := make(chan ssh.Output, outputBuffer)
	forwarded := make(chan struct{})

	go func() {
		defer close(forwarded)

		for chunk := range output {
			e.mu.Lock()
			e.output.WriteString(chunk.Content)
			e.output.WriteByte('\n')
			e.emit(events.Output{ExecutionID: e.id, Type: string(chunk.Stream), Content: chunk.Content})
			e.mu.Unlock()
		}
	}()

	results := func() []ssh.CommandResult {
		defer close(output)
		return o.executor.ExecuteCommands(e.ctx, e.serverID, commands, creds, output)
	}()

	<-forwarded

	success := len(results) == len(commands) && allSucceeded(results)
	analysis := o.analyze(e, results, commands)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.results = results

	if e.status.Terminal() {
		return
	}

	e.analysis = analysis
	e.emit(events.Complete{ExecutionID: e.id, Success: success, Analysis: *analysis})

	if success {
		_ = e.transition(StatusCompleted)
		return
	}

	e.failure = analysis.Summary
	_ = e.transition(StatusFailed)
}

func (o *Orchestrator) analyze(e *Execution, results []ssh.CommandResult, commands []string) *events.Analysis {
	if o.analyzer == nil || e.ctx.Err() != nil {
		return localAnalysis(results, commands)
	}

	analysis, err := o.analyzer.Analyze(e.ctx, e.prompt, results)

	if err != nil || analysis == nil {
		logger.Warn("Analysis for execution %s unavailable, using local summary: %v", e.id, err)
		return localAnalysis(results, commands)
	}

	return analysis
}

func allSucceeded(results []ssh.CommandResult) bool {
	for _, r := range results {
		if !r.Success {
			return false
		}
	}

	return true
}

func localAnalysis(results []ssh.CommandResult, commands []string) *events.Analysis {
	if len(results) == len(commands) && allSucceeded(results) {
		return &events.Analysis{
			Summary:   fmt.Sprintf("All %d commands completed successfully.", len(commands)),
			Details:   lastOutput(results),
			NextSteps: []string{},
		}
	}

	if len(results) == 0 {
		return &events.Analysis{
			Summary:   "No commands were executed.",
			NextSteps: []string{},
		}
	}

	failed := results[len(results)-1]
	skipped := len(commands) - len(results)

	details := failed.Stderr
	if details == "" {
		details = failed.Stdout
	}

	if skipped > 0 {
		details = strings.TrimSpace(fmt.Sprintf("%s\n\n%d remaining commands were not run.", details, skipped))
	}

	return &events.Analysis{
		Summary:   fmt.Sprintf("Command %q failed with exit code %d.", failed.Command, failed.ExitCode),
		Details:   details,
		NextSteps: []string{"Inspect the error output, fix the cause and submit the request again."},
	}
}

func lastOutput(results []ssh.CommandResult) string {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Stdout != "" {
			return results[i].Stdout
		}
	}

	return ""
}

func dryRunAnalysis(commands []string, explanation string) *events.Analysis {
	return &events.Analysis{
		Summary:   fmt.Sprintf("Dry run: %d commands were planned and none were executed.", len(commands)),
		Details:   explanation,
		NextSteps: []string{"Submit the request again without dry run to execute the commands."},
	}
}

var (
	_ RiskClassifier = (*risk.PolicyClassifier)(nil)
	_ Executor       = (*ssh.Manager)(nil)
	_ Planner        = (*planner.Client)(nil)
	_ Analyzer       = (*planner.Client)(nil)
)
