package graph

// State tracks a node's progress through one evaluation cycle. The values
// form a total order so schedulers can compare progress directly.
type State int32

const (
	// NoState means the node has not been considered yet.
	NoState State = iota
	// Pending means the node is queued for evaluation.
	Pending
	// Executing means the node's actions are currently running.
	Executing
	// UpToDate means the node was evaluated and found current.
	UpToDate
	// Executed means the node's actions ran to completion.
	Executed
	// Failed means the node's build failed or was skipped after an
	// upstream failure.
	Failed
)

// String returns the lowercase display name of the state.
func (s State) String() string {
	switch s {
	case NoState:
		return "no_state"
	case Pending:
		return "pending"
	case Executing:
		return "executing"
	case UpToDate:
		return "up_to_date"
	case Executed:
		return "executed"
	case Failed:
		return "failed"
	}
	return "unknown"
}
