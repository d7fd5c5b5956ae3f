package execution

type Status string

const (
	StatusPlanning             Status = "PLANNING"
	StatusAwaitingConfirmation Status = "AWAITING_CONFIRMATION"
	StatusExecuting            Status = "EXECUTING"
	StatusCompleted            Status = "COMPLETED"
	StatusFailed               Status = "FAILED"
	StatusCancelled            Status = "CANCELLED"
)

// transitions lists every allowed move. PLANNING -> COMPLETED is taken by
// dry runs only.
var transitions = map[Status][]Status{
	StatusPlanning:             {StatusAwaitingConfirmation, StatusExecuting, StatusCompleted, StatusFailed, StatusCancelled},
	StatusAwaitingConfirmation: {StatusExecuting, StatusFailed, StatusCancelled},
	StatusExecuting:            {StatusCompleted, StatusFailed, StatusCancelled},
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}
