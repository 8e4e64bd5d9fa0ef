package domain

// RunStatus is the lifecycle state of a run as reported by the remote
// service. The set is closed: queued -> in_progress -> one of the terminal
// states, with requires_action as a parked non-terminal state. Transitions
// are driven exclusively by the remote service and only observed here.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
)

// Terminal reports whether no further status transition can occur.
// requires_action is not terminal: the remote service is waiting on an
// external action and will move on once it arrives.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled:
		return true
	case RunQueued, RunInProgress, RunRequiresAction:
		return false
	}
	return false
}

// Run is one asynchronous execution of an assistant configuration against a
// thread. The ID is scoped to its thread.
type Run struct {
	ID          string
	ThreadID    string
	AssistantID string
	Status      RunStatus
}
