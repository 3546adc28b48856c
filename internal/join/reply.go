package join

import (
	"sync/atomic"
	"time"
)

// replyState is the ReplySlot state machine: Pending -> {Replied, TimedOut,
// Failed}.
type replyState int32

const (
	replyPending replyState = iota
	replyReplied
	replyTimedOut
	replyFailed
)

type replyOutcome struct {
	state  replyState
	value  any
	reason string
}

// ReplySlot is the single-shot rendezvous primitive paired with a blocking
// molecule's value: a one-shot promise. It is built on a buffered channel so
// the first write never blocks the replier, plus an atomic state word and
// reply counter to detect at-most-one-reply violations.
type ReplySlot struct {
	ch      chan replyOutcome
	state   atomic.Int32
	replies atomic.Int32
}

// NewReplySlot allocates a Pending slot for a freshly emitted blocking
// molecule.
func NewReplySlot() *ReplySlot {
	s := &ReplySlot{ch: make(chan replyOutcome, 1)}
	s.state.Store(int32(replyPending))
	return s
}

// ReplyHandle is what a ReplyBinder matcher binds: a move-only-by-convention
// capability to reply exactly once to the blocking molecule a reaction
// consumed. Replying through a stale handle (the reaction already returned,
// or on a handle obtained by any means other than consuming the molecule)
// is a no-op and Reply returns false. A second reply made while the
// consuming reaction is still running is logged as a warning by the
// scheduler once the body returns; a reply made after that is not logged.
type ReplyHandle struct {
	slot *ReplySlot
}

// Reply delivers v to the blocked emitter. Returns false if the slot had
// already settled (Replied/TimedOut/Failed); the caller should treat this
// as a stale/duplicate reply and surface RuntimeProtocolError accordingly.
func (h *ReplyHandle) Reply(v any) bool {
	return h.slot.deliver(replyOutcome{state: replyReplied, value: v})
}

// deliver attempts the Pending -> target transition exactly once; losing
// the CAS race (already Replied/TimedOut/Failed) records a dropped
// outcome and returns false without blocking.
func (s *ReplySlot) deliver(out replyOutcome) bool {
	s.replies.Add(1)
	if !s.state.CompareAndSwap(int32(replyPending), int32(out.state)) {
		return false
	}
	s.ch <- out
	return true
}

// fail settles the slot as Failed(reason), used by the scheduler/runtime
// when a reaction consuming a blocking molecule faults without replying.
func (s *ReplySlot) fail(reason string) bool {
	return s.deliver(replyOutcome{state: replyFailed, reason: reason})
}

// timeout settles the slot as TimedOut; a concurrent reply that loses this
// race is recorded via replies but otherwise dropped silently.
func (s *ReplySlot) timeout() bool {
	return s.deliver(replyOutcome{state: replyTimedOut})
}

// replyCount returns how many times Reply/fail/timeout were attempted, used
// to detect a reply invoked more than once.
func (s *ReplySlot) replyCount() int32 { return s.replies.Load() }

// Await blocks the emitter until a reply, timeout deadline, or fault
// settles the slot. deadline.IsZero() means wait forever.
func (s *ReplySlot) Await(deadline time.Time) (value any, timedOut bool, err error) {
	if deadline.IsZero() {
		out := <-s.ch
		return s.interpret(out)
	}

	d := time.Until(deadline)
	if d <= 0 {
		if s.timeout() {
			return nil, true, nil
		}
		// Reply already landed before we even checked the deadline.
		out := <-s.ch
		return s.interpret(out)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case out := <-s.ch:
		return s.interpret(out)
	case <-timer.C:
		if s.timeout() {
			return nil, true, nil
		}
		out := <-s.ch
		return s.interpret(out)
	}
}

func (s *ReplySlot) interpret(out replyOutcome) (any, bool, error) {
	switch out.state {
	case replyReplied:
		return out.value, false, nil
	case replyTimedOut:
		return nil, true, nil
	default:
		return nil, false, &RuntimeProtocolError{Reason: out.reason}
	}
}
