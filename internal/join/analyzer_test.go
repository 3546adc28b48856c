package join

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectShadowingRefusesActivation(t *testing.T) {
	a := newMoleculeID("a", false)
	b := newMoleculeID("b", false)

	general := NewReaction(InputPattern{ID: a, Matcher: Wildcard{}}).
		Named("general").Do(func(Bindings) {})
	specific := NewReaction(
		InputPattern{ID: a, Matcher: Wildcard{}},
		InputPattern{ID: b, Matcher: Wildcard{}},
	).Named("specific").Do(func(Bindings) {})

	_, _, err := Activate([]*ReactionDescriptor{general, specific})
	require.Error(t, err)
	var sae *StaticAnalysisError
	require.ErrorAs(t, err, &sae)
	require.Contains(t, sae.Error(), "Unavoidable indeterminism")
}

func TestUnavoidableLivelockRefusesActivation(t *testing.T) {
	a := newMoleculeID("a", false)

	loop := NewReaction(InputPattern{ID: a, Matcher: Wildcard{}}).
		Named("loop").
		Emits(EmitVar(a)).
		Do(func(b Bindings) { _ = Emit(a, nil, nil) })

	_, _, err := Activate([]*ReactionDescriptor{loop})
	require.Error(t, err)
	var sae *StaticAnalysisError
	require.ErrorAs(t, err, &sae)
	require.Contains(t, sae.Error(), "Unavoidable livelock")
}

func TestGuardedSelfLoopIsOnlyAPossibleLivelockWarning(t *testing.T) {
	a := newMoleculeID("a", false)

	loop := NewReaction(InputPattern{ID: a, Matcher: SimpleVar{}}).
		Named("loop").
		When(func(b Bindings) bool { return b[0].(int) > 0 }).
		Emits(EmitVar(a)).
		Do(func(b Bindings) {})

	jd, wae, err := Activate([]*ReactionDescriptor{loop})
	require.NoError(t, err)
	defer jd.ShutdownNow()
	require.False(t, wae.HasErrors())
	require.NotEmpty(t, wae.Warnings)
	require.Contains(t, wae.Warnings[0], "Possible livelock")
}

func TestPossibleDeadlockAcrossTwoJoinDefinitions(t *testing.T) {
	reqA := newMoleculeID("ReqA", true)
	stepB := newMoleculeID("StepB", false)
	trigger := newMoleculeID("Trigger", false)

	// Already activated: a reaction that can only reply to ReqA once StepB
	// has also arrived.
	waitsOnBoth := NewReaction(
		InputPattern{ID: reqA, Matcher: ReplyBinder{}},
		InputPattern{ID: stepB, Matcher: Wildcard{}},
	).Named("waitsOnBoth").Do(func(b Bindings) {
		reply := b[0].(*ReplyHandle)
		reply.Reply(nil)
	})
	jd1, _, err := Activate([]*ReactionDescriptor{waitsOnBoth})
	require.NoError(t, err)
	defer jd1.ShutdownNow()

	// Activated second: a reaction whose own output sequence emits the
	// blocking ReqA and then the non-blocking StepB that waitsOnBoth also
	// needs: if ReqA's emission blocks the orchestrator's goroutine before
	// it reaches the StepB emission, waitsOnBoth can never fire.
	orchestrator := NewReaction(InputPattern{ID: trigger, Matcher: Wildcard{}}).
		Named("orchestrator").
		Emits(EmitVar(reqA), EmitVar(stepB)).
		Do(func(b Bindings) {})

	jd2, wae, err := Activate([]*ReactionDescriptor{orchestrator})
	require.NoError(t, err)
	defer jd2.ShutdownNow()
	require.False(t, wae.HasErrors())

	found := false
	for _, w := range wae.Warnings {
		if w == "Possible deadlock: molecule ReqA may deadlock due to outputs of orchestrator" {
			found = true
		}
	}
	require.True(t, found, "warnings: %v", wae.Warnings)
}
