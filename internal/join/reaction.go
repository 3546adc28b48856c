package join

import "fmt"

// InputPattern pairs one input position with the MoleculeID it consumes
// from and the Matcher that decides whether a candidate value fills that
// position.
type InputPattern struct {
	ID      *MoleculeID
	Matcher Matcher
}

// ReactionDescriptor is the normalized representation of a reaction
// consumed by the scheduler and analyzer. Descriptors are assembled by the
// fluent ReactionBuilder below or compiled from a schema document by
// BuildFromConfig.
type ReactionDescriptor struct {
	Inputs []InputPattern
	Guard  Guard
	Body   func(Bindings)
	Retry  bool

	// Outputs is the declared output-pattern list. Reaction bodies are
	// opaque closures the engine cannot introspect, so builders declare
	// emissions explicitly via Emits/EmitVar/EmitConst; the livelock and
	// deadlock checks consult this declared list.
	Outputs []OutputPattern

	// Name is a human-readable label used in diagnostics, warnings and
	// error messages.
	Name string

	// SourceConfig records the ReactionConfig this descriptor was built
	// from by BuildFromConfig, or nil when built directly through the Go
	// builder. It lets diagnostics and the JSON/YAML schema round-trip
	// recover a readable description.
	SourceConfig *ReactionConfig
}

// signature returns the alphabetically-sorted, " + "-joined list of input
// molecule names, used both for shadowing/livelock diagnostics and for the
// JoinDefinition's soup-listing input signature.
func (r *ReactionDescriptor) signature() string {
	names := make([]string, len(r.Inputs))
	for i, in := range r.Inputs {
		names[i] = in.ID.Name
	}
	return joinSorted(names, " + ")
}

func (r *ReactionDescriptor) String() string {
	if r.Name != "" {
		return r.Name
	}
	return r.signature()
}

// ReactionBuilder is the fluent Go frontend for assembling a
// ReactionDescriptor from named input patterns.
type ReactionBuilder struct {
	desc *ReactionDescriptor
}

// NewReaction starts building a reaction over the given input patterns.
func NewReaction(inputs ...InputPattern) *ReactionBuilder {
	return &ReactionBuilder{desc: &ReactionDescriptor{Inputs: inputs}}
}

// Named sets the diagnostic name used in log_soup and error messages.
func (b *ReactionBuilder) Named(name string) *ReactionBuilder {
	b.desc.Name = name
	return b
}

// When attaches a guard predicate over bound variables.
func (b *ReactionBuilder) When(g Guard) *ReactionBuilder {
	b.desc.Guard = g
	return b
}

// Retry marks the reaction so a UserReactionError re-emits its consumed
// non-blocking inputs instead of discarding them; consumed blocking inputs
// are settled as failed either way.
func (b *ReactionBuilder) Retry() *ReactionBuilder {
	b.desc.Retry = true
	return b
}

// Emits declares the reaction's output-pattern list, in emission order, for
// the analyzer's livelock and deadlock checks.
func (b *ReactionBuilder) Emits(outs ...OutputPattern) *ReactionBuilder {
	b.desc.Outputs = append(b.desc.Outputs, outs...)
	return b
}

// Do sets the reaction body and finalizes the descriptor.
func (b *ReactionBuilder) Do(body func(Bindings)) *ReactionDescriptor {
	b.desc.Body = body
	return b.desc
}

// OutputPattern is one declared emission in a reaction's output sequence.
// Const outputs carry a known value (used by the livelock "constant covers
// constant input" rule); non-const outputs are treated as depending on
// bound variables.
type OutputPattern struct {
	ID    *MoleculeID
	Const bool
	Value any
}

// EmitVar declares a non-constant emission of id (its value depends on
// bound variables).
func EmitVar(id *MoleculeID) OutputPattern { return OutputPattern{ID: id} }

// EmitConst declares an emission of id carrying the fixed value v.
func EmitConst(id *MoleculeID, v any) OutputPattern {
	return OutputPattern{ID: id, Const: true, Value: v}
}

func (o OutputPattern) String() string {
	if o.Const {
		return fmt.Sprintf("%s(%v)", o.ID.Name, o.Value)
	}
	return o.ID.Name + "(_)"
}

// validateShape enforces the structural checks that do not require the full
// analyzer pass: non-empty input pattern, a body present, and every
// blocking input carrying a ReplyBinder.
func validateShape(reactions []*ReactionDescriptor) error {
	for _, r := range reactions {
		if len(r.Inputs) == 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("reaction %q has an empty input pattern", r.String())}
		}
		if r.Body == nil {
			return &ConfigurationError{Reason: fmt.Sprintf("reaction %q has no body", r.String())}
		}
		for _, in := range r.Inputs {
			if in.ID == nil {
				return &ConfigurationError{Reason: fmt.Sprintf("reaction %q has an input pattern with no molecule id", r.String())}
			}
			_, isReplyBinder := in.Matcher.(ReplyBinder)
			if in.ID.Blocking && !isReplyBinder {
				return &ConfigurationError{Reason: fmt.Sprintf(
					"reaction %q: blocking molecule %q must be matched with a reply binder", r.String(), in.ID.Name)}
			}
			if !in.ID.Blocking && isReplyBinder {
				return &ConfigurationError{Reason: fmt.Sprintf(
					"reaction %q: non-blocking molecule %q cannot use a reply binder", r.String(), in.ID.Name)}
			}
		}
	}
	return nil
}
