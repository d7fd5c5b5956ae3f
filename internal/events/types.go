package events

type Kind string

// Outbound kinds (server to client)
const (
	KindStatus   Kind = "status"
	KindPlan     Kind = "plan"
	KindCommands Kind = "commands"
	KindOutput   Kind = "output"
	KindBlocked  Kind = "blocked"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
)

// Inbound kinds (client to server)
const (
	KindExecute Kind = "execute"
	KindConfirm Kind = "confirm"
	KindCancel  Kind = "cancel"
)

func (k Kind) Inbound() bool {
	switch k {
	case KindExecute, KindConfirm, KindCancel:
		return true
	}

	return false
}

func (k Kind) Outbound() bool {
	switch k {
	case KindStatus, KindPlan, KindCommands, KindOutput, KindBlocked, KindComplete, KindError:
		return true
	}

	return false
}

// Event is the closed set of messages exchanged on the chat channel. Only the
// types declared in this package implement it.
type Event interface {
	Kind() Kind
	event()
}

type Plan struct {
	Objective     string   `json:"objective"`
	Steps         []string `json:"steps"`
	Risks         []string `json:"risks"`
	EstimatedTime string   `json:"estimatedTime"`
}

type Analysis struct {
	Summary   string   `json:"summary"`
	Details   string   `json:"details"`
	NextSteps []string `json:"nextSteps"`
}

type Status struct {
	ExecutionID string `json:"executionId"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

type PlanEvent struct {
	ExecutionID string `json:"executionId"`
	Plan        Plan   `json:"plan"`
}

type Commands struct {
	ExecutionID          string   `json:"executionId"`
	Commands             []string `json:"commands"`
	Explanation          string   `json:"explanation"`
	RiskLevel            string   `json:"riskLevel"`
	RequiresConfirmation bool     `json:"requiresConfirmation"`
	Warnings             []string `json:"warnings"`
}

type Output struct {
	ExecutionID string `json:"executionId"`
	// "stdout" or "stderr"
	Type    string `json:"type"`
	Content string `json:"content"`
}

type Blocked struct {
	ExecutionID     string   `json:"executionId"`
	BlockedCommands []string `json:"blockedCommands"`
	Reason          string   `json:"reason"`
}

type Complete struct {
	ExecutionID string   `json:"executionId"`
	Success     bool     `json:"success"`
	Analysis    Analysis `json:"analysis"`
}

// Error reports a failed execution or a rejected inbound event. ExecutionID
// is empty when the failure is not tied to a known execution.
type Error struct {
	ExecutionID string `json:"executionId,omitempty"`
	Message     string `json:"message"`
}

type Execute struct {
	ServerID string `json:"serverId"`
	Prompt   string `json:"prompt"`
	DryRun   bool   `json:"dryRun"`
}

type Confirm struct {
	ExecutionID string `json:"executionId"`
}

type Cancel struct {
	ExecutionID string `json:"executionId"`
}

func (Status) Kind() Kind    { return KindStatus }
func (PlanEvent) Kind() Kind { return KindPlan }
func (Commands) Kind() Kind  { return KindCommands }
func (Output) Kind() Kind    { return KindOutput }
func (Blocked) Kind() Kind   { return KindBlocked }
func (Complete) Kind() Kind  { return KindComplete }
func (Error) Kind() Kind     { return KindError }
func (Execute) Kind() Kind   { return KindExecute }
func (Confirm) Kind() Kind   { return KindConfirm }
func (Cancel) Kind() Kind    { return KindCancel }

func (Status) event()    {}
func (PlanEvent) event() {}
func (Commands) event()  {}
func (Output) event()    {}
func (Blocked) event()   {}
func (Complete) event()  {}
func (Error) event()     {}
func (Execute) event()   {}
func (Confirm) event()   {}
func (Cancel) event()    {}

// ExecutionID returns the execution an event refers to, or "" for execute
// requests and unscoped errors.
func ExecutionID(e Event) string {
	switch ev := e.(type) {
	case Status:
		return ev.ExecutionID
	case PlanEvent:
		return ev.ExecutionID
	case Commands:
		return ev.ExecutionID
	case Output:
		return ev.ExecutionID
	case Blocked:
		return ev.ExecutionID
	case Complete:
		return ev.ExecutionID
	case Error:
		return ev.ExecutionID
	case Confirm:
		return ev.ExecutionID
	case Cancel:
		return ev.ExecutionID
	}

	return ""
}
