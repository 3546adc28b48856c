package join

import "fmt"

// ErrNotBound is returned by an injector when its MoleculeID has not yet
// been bound to an activated JoinDefinition.
type ErrNotBound struct {
	ID *MoleculeID
}

func (e *ErrNotBound) Error() string {
	return fmt.Sprintf("molecule %q is not bound to any join definition", e.ID.Name)
}

// ErrAlreadyBound is returned by Activate when a reaction references a
// MoleculeID already owned by another JoinDefinition.
type ErrAlreadyBound struct {
	ID *MoleculeID
}

func (e *ErrAlreadyBound) Error() string {
	return fmt.Sprintf("molecule %q is already bound to another join definition", e.ID.Name)
}

// ConfigurationError reports a structural problem with a reaction list
// discovered before static analysis runs (empty input pattern, blocking
// input without a reply binder, malformed matcher). Fatal at activation.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// StaticAnalysisError reports a fatal StaticAnalyzer finding (unavoidable
// indeterminism or unavoidable livelock). Activation is rolled back.
type StaticAnalysisError struct {
	Messages []string
}

func (e *StaticAnalysisError) Error() string {
	if len(e.Messages) == 1 {
		return e.Messages[0]
	}
	s := "activation refused:"
	for _, m := range e.Messages {
		s += "\n  " + m
	}
	return s
}

// RuntimeProtocolError reports that a consumed blocking molecule was never
// replied to, because the reaction returned without replying or faulted.
// A reply invoked more than once does not produce this error: the first
// reply reaches the emitter and the extra one is only logged as a warning.
type RuntimeProtocolError struct {
	Reason string
}

func (e *RuntimeProtocolError) Error() string {
	return "runtime protocol error: " + e.Reason
}

// UserReactionError wraps an arbitrary panic/fault raised from a reaction
// body so it never propagates into caller threads.
type UserReactionError struct {
	Reaction string
	Cause    any
}

func (e *UserReactionError) Error() string {
	return fmt.Sprintf("reaction %q faulted: %v", e.Reaction, e.Cause)
}
