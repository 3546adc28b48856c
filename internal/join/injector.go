package join

import "time"

// MolInjector is the emission handle for a non-blocking molecule declared
// with DeclareNonBlocking: calling it emits immediately and returns.
type MolInjector[T any] struct {
	id *MoleculeID
}

// DeclareNonBlocking creates a new non-blocking molecule identity and
// returns its injector.
func DeclareNonBlocking[T any](name string) *MolInjector[T] {
	return &MolInjector[T]{id: newMoleculeID(name, false)}
}

// ID exposes the underlying MoleculeID for use in InputPattern/OutputPattern
// construction.
func (m *MolInjector[T]) ID() *MoleculeID { return m.id }

// Emit inserts value into the bound JoinDefinition's soup and triggers a
// decision pass. Returns ErrNotBound if the molecule has not been bound by
// Activate yet.
func (m *MolInjector[T]) Emit(value T) error {
	return Emit(m.id, value, nil)
}

// LogSoup returns the diagnostic soup listing of the JoinDefinition this
// molecule is bound to.
func (m *MolInjector[T]) LogSoup() string {
	jd := boundTo(m.id)
	if jd == nil {
		return "Join{}\nNo molecules"
	}
	return jd.LogSoup()
}

// SetLogLevel adjusts the bound JoinDefinition's log level.
func (m *MolInjector[T]) SetLogLevel(n int) {
	if jd := boundTo(m.id); jd != nil {
		jd.SetLogLevel(n)
	}
}

// BlockingInjector is the emission handle for a blocking molecule declared
// with DeclareBlocking: calling it emits, then suspends the caller until a
// reaction replies, the optional timeout elapses, or a runtime protocol
// fault occurs.
type BlockingInjector[T, R any] struct {
	id *MoleculeID
}

// DeclareBlocking creates a new blocking molecule identity and returns its
// injector.
func DeclareBlocking[T, R any](name string) *BlockingInjector[T, R] {
	return &BlockingInjector[T, R]{id: newMoleculeID(name, true)}
}

// ID exposes the underlying MoleculeID.
func (b *BlockingInjector[T, R]) ID() *MoleculeID { return b.id }

// NoTimeout makes a blocking emission wait forever for its reply.
const NoTimeout time.Duration = -1

// Emit emits value and blocks the calling goroutine until reply, timeout,
// or fault. A negative timeout (NoTimeout) waits forever; a zero timeout
// performs exactly one synchronous match attempt and returns
// (zero, true, nil) if no reaction can fire on it right away; a positive
// timeout waits until the deadline.
func (b *BlockingInjector[T, R]) Emit(value T, timeout time.Duration) (R, bool, error) {
	var zero R
	jd := boundTo(b.id)
	if jd == nil {
		return zero, false, &ErrNotBound{ID: b.id}
	}
	out, timedOut, err := emitBlocking(jd, b.id, value, timeout)
	if err != nil || timedOut {
		return zero, timedOut, err
	}
	v, _ := out.(R)
	return v, false, nil
}

// emitBlocking is the blocking-emission protocol shared by
// BlockingInjector.Emit and DefinitionManager.EmitBlocking.
func emitBlocking(jd *JoinDefinition, id *MoleculeID, value any, timeout time.Duration) (any, bool, error) {
	slot := NewReplySlot()
	val := MolVal{ID: id, Value: value, Reply: slot}

	if timeout == 0 {
		// Probe: insert and run one decision pass on this goroutine. If
		// the molecule is still in the bag afterwards, nothing could fire
		// on it synchronously; settle the slot as timed out and return.
		// The value stays in the soup, like any other timed-out emission,
		// and a later reply to it is dropped.
		jd.runDecisionPass(&val)
		if jd.replyPendingInBag(slot) {
			slot.timeout()
			return nil, true, nil
		}
		// A reaction consumed the molecule in that pass; it will settle
		// the slot with a reply or a fault.
		return slot.Await(time.Time{})
	}

	if err := jd.submitEmit(val); err != nil {
		return nil, false, err
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	// A caller emitting recursively from inside a reaction body must wrap
	// the call in JoinDefinition.MarkIdle so it doesn't starve the reaction
	// pool; a top-level caller outside any pool holds no pool slot to
	// release, so no such wrapping happens here.
	return slot.Await(deadline)
}

// LogSoup mirrors MolInjector.LogSoup for blocking molecules.
func (b *BlockingInjector[T, R]) LogSoup() string {
	jd := boundTo(b.id)
	if jd == nil {
		return "Join{}\nNo molecules"
	}
	return jd.LogSoup()
}

// SetLogLevel mirrors MolInjector.SetLogLevel for blocking molecules.
func (b *BlockingInjector[T, R]) SetLogLevel(n int) {
	if jd := boundTo(b.id); jd != nil {
		jd.SetLogLevel(n)
	}
}
