package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for misuse of the node API.
var (
	// ErrNilChild is returned when a nil node appears in a child list.
	ErrNilChild = errors.New("nil node in child list")
	// ErrNoExecutor is returned by Executor(false) when no executor is bound.
	ErrNoExecutor = errors.New("node has no executor")
)

// StopError halts the build of a single target without aborting the whole
// run. Prepare returns it when a dependency neither exists nor can be built.
type StopError struct {
	Target   *Node
	Missing  *Node
	Implicit bool
}

// Error implements the error interface.
func (e *StopError) Error() string {
	kind := "Explicit"
	if e.Implicit {
		kind = "Implicit"
	}
	return fmt.Sprintf("%s dependency `%s' not found, needed by target `%s'.", kind, e.Missing, e.Target)
}

// BuildError reports an action failure while building a target. It wraps the
// underlying cause so errors.Is and errors.As see through it.
type BuildError struct {
	Node *Node
	Err  error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("building `%s': %v", e.Node, e.Err)
}

// Unwrap returns the underlying action error.
func (e *BuildError) Unwrap() error {
	return e.Err
}
