package join

import (
	"fmt"
	"time"
)

// matchReaction attempts to find one candidate value per input pattern of r
// that jointly satisfies every matcher and the guard. It is a small
// backtracking traversal over each input's fair-rotated candidate list that
// short-circuits as soon as an input has no viable candidate. Must be
// called with jd.mu held.
func (jd *JoinDefinition) matchReaction(r *ReactionDescriptor) ([]MolVal, Bindings, bool) {
	bindings := make(Bindings, len(r.Inputs))
	tuple := make([]MolVal, len(r.Inputs))

	var backtrack func(i int) bool
	backtrack = func(i int) bool {
		if i == len(r.Inputs) {
			if r.Guard != nil && !r.Guard(bindings) {
				return false
			}
			return true
		}
		in := r.Inputs[i]
		for _, candidate := range jd.bag.Candidates(in.ID) {
			bound, ok := in.Matcher.Match(candidate)
			if !ok {
				continue
			}
			bindings[i] = bound
			tuple[i] = candidate
			if backtrack(i + 1) {
				return true
			}
		}
		return false
	}

	if backtrack(0) {
		return tuple, bindings, true
	}
	return nil, nil, false
}

// runDecisionPass is the scheduler entry point. An emission (emitted !=
// nil) inserts the new value then runs one matching pass; a finished
// reaction (emitted == nil) just re-checks. Exactly one reaction fires per
// pass; its pool submission happens after the mutex is released.
func (jd *JoinDefinition) runDecisionPass(emitted *MolVal) {
	jd.mu.Lock()

	if emitted != nil {
		jd.bag.Insert(*emitted)
	}

	n := len(jd.reactions)
	if n == 0 {
		jd.mu.Unlock()
		return
	}

	start := jd.nextStart
	var fired *ReactionDescriptor
	var tuple []MolVal
	var bindings Bindings

	for k := 0; k < n; k++ {
		idx := (start + k) % n
		r := jd.reactions[idx]
		if t, b, ok := jd.matchReaction(r); ok {
			fired, tuple, bindings = r, t, b
			jd.nextStart = (idx + 1) % n
			break
		}
	}

	if fired == nil {
		jd.mu.Unlock()
		return
	}

	for _, v := range tuple {
		jd.bag.Remove(v.ID, v)
	}
	jd.mu.Unlock()

	jd.submitReactionBody(fired, tuple, bindings)
}

// submitReactionBody hands the matched tuple to the reaction pool;
// long-running bodies must not run on the decision pool. If the pool
// rejects the submission, the consumed tuple is put back so the match is
// not silently lost.
func (jd *JoinDefinition) submitReactionBody(r *ReactionDescriptor, tuple []MolVal, bindings Bindings) {
	err := jd.reactionPool.Submit(func() {
		defer jd.scheduleRecheck() // re-check for further matches once the body finishes
		jd.executeBody(r, tuple, bindings)
	})
	if err != nil {
		jd.logger.Errorf("join: reaction %q could not be submitted: %v", r.String(), err)
		jd.mu.Lock()
		for _, v := range tuple {
			jd.bag.Insert(v)
		}
		jd.mu.Unlock()
	}
}

// scheduleRecheck submits the post-reaction decision pass to the decision
// pool, so matching never runs on the reaction pool and a long backlog of
// finished reactions cannot starve it.
func (jd *JoinDefinition) scheduleRecheck() {
	if err := jd.decisionPool.Submit(func() { jd.runDecisionPass(nil) }); err != nil {
		jd.logger.Warnf("join: could not schedule decision re-check: %v", err)
	}
}

// executeBody runs the reaction body, recovering any panic into a
// UserReactionError so faults never propagate into caller goroutines, then
// enforces the blocking-reply protocol on every consumed blocking input
// before applying the retry/discard policy.
func (jd *JoinDefinition) executeBody(r *ReactionDescriptor, tuple []MolVal, bindings Bindings) {
	var faulted bool
	var cause any

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				faulted = true
				cause = rec
			}
		}()
		r.Body(bindings)
	}()

	for _, v := range tuple {
		if v.Reply == nil {
			continue
		}
		switch {
		case faulted:
			v.Reply.fail((&UserReactionError{Reaction: r.String(), Cause: cause}).Error())
		case v.Reply.replyCount() == 0:
			v.Reply.fail(fmt.Sprintf("reaction %q returned without replying to %q", r.String(), v.ID.Name))
			jd.logger.Errorf("join: reaction %q consumed blocking molecule %q without replying", r.String(), v.ID.Name)
		case v.Reply.replyCount() > 1:
			jd.logger.Warnf("join: reaction %q replied to %q more than once", r.String(), v.ID.Name)
		}
	}

	if jd.notifier != nil {
		jd.emitNotification(r, tuple, faulted, cause)
	}

	if !faulted {
		return
	}

	if r.Retry {
		jd.logger.Warnf("join: reaction %q faulted, re-emitting non-blocking consumed inputs: %v", r.String(), cause)
		jd.mu.Lock()
		for _, v := range tuple {
			// Blocking inputs were already settled Failed above; their
			// original emitter has moved on, so only non-blocking inputs
			// are safe to re-emit with their original values.
			if v.Reply == nil {
				jd.bag.Insert(v)
			}
		}
		jd.mu.Unlock()
	} else {
		jd.logger.Errorf("join: reaction %q faulted, inputs discarded: %v", r.String(), cause)
	}
}

// emitNotification enqueues a NotificationEvent for one reaction firing.
// Produced reflects the reaction's declared Outputs, not the actual runtime
// values emitted by the opaque body closure: a best-effort summary, not a
// ground-truth trace.
func (jd *JoinDefinition) emitNotification(r *ReactionDescriptor, tuple []MolVal, faulted bool, cause any) {
	consumed := make([]ConsumedMolecule, len(tuple))
	for i, v := range tuple {
		consumed[i] = ConsumedMolecule{Molecule: v.ID.Name, Value: v.Value}
	}
	produced := make([]ProducedMolecule, len(r.Outputs))
	for i, o := range r.Outputs {
		produced[i] = ProducedMolecule{Molecule: o.ID.Name, Value: o.Value}
	}
	event := NotificationEvent{
		JoinName:     jd.name,
		ReactionName: r.String(),
		Timestamp:    time.Now().Unix(),
		Consumed:     consumed,
		Produced:     produced,
		Faulted:      faulted,
	}
	if faulted {
		event.FaultReason = fmt.Sprintf("%v", cause)
	}
	jd.notifier.Enqueue(event, jd.notifierIDs)
}
