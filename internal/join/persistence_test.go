package join

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotEncodeDecodeRoundTrip(t *testing.T) {
	item := DeclareNonBlocking[int]("Item")
	sink := DeclareNonBlocking[int]("Sink")

	reaction := NewReaction(InputPattern{ID: sink.ID(), Matcher: Wildcard{}}).
		Do(func(Bindings) {})
	jd, _, err := Activate([]*ReactionDescriptor{reaction}, WithName("snap"))
	require.NoError(t, err)
	defer jd.ShutdownNow()

	require.Error(t, item.Emit(1)) // Item was never activated into any JoinDefinition

	snap := jd.Snapshot(1000)
	require.Equal(t, "snap", snap.Name)
	require.Empty(t, snap.Molecules) // Sink has no pending values yet

	require.NoError(t, Emit(sink.ID(), 7, nil))
	require.NoError(t, Emit(sink.ID(), 8, nil))
	// Sink's only reaction matches a Wildcard, so these values are consumed
	// asynchronously; the encode/decode round trip below therefore uses a
	// hand-built snapshot rather than one taken from jd.

	data, err := EncodeSnapshotJSON(Snapshot{Name: "x", Timestamp: 1, Molecules: []MoleculeSnapshot{
		{Molecule: "Sink", Values: []any{float64(7)}},
	}})
	require.NoError(t, err)

	decoded, err := DecodeSnapshotJSON(data)
	require.NoError(t, err)
	require.Equal(t, "x", decoded.Name)
	require.Len(t, decoded.Molecules, 1)
	require.Equal(t, "Sink", decoded.Molecules[0].Molecule)
}

func TestValidateSnapshotRejectsBlockingAndUnknownMolecules(t *testing.T) {
	nb := newMoleculeID("NB", false)
	blocking := newMoleculeID("B", true)
	reg := MoleculeRegistry{"NB": nb, "B": blocking}

	require.NoError(t, ValidateSnapshot(Snapshot{Molecules: []MoleculeSnapshot{{Molecule: "NB", Values: []any{1}}}}, reg))

	err := ValidateSnapshot(Snapshot{Molecules: []MoleculeSnapshot{{Molecule: "B", Values: []any{1}}}}, reg)
	require.Error(t, err)

	err = ValidateSnapshot(Snapshot{Molecules: []MoleculeSnapshot{{Molecule: "Unknown"}}}, reg)
	require.Error(t, err)

	err = ValidateSnapshot(Snapshot{Molecules: []MoleculeSnapshot{{Molecule: "NB"}, {Molecule: "NB"}}}, reg)
	require.Error(t, err)
}

func TestRestoreInsertsValuesAndTriggersDecisionPass(t *testing.T) {
	counter := DeclareNonBlocking[int]("RestoreCounter")
	fetch := DeclareBlocking[struct{}, int]("RestoreFetch")

	reaction := NewReaction(
		InputPattern{ID: counter.ID(), Matcher: SimpleVar{}},
		InputPattern{ID: fetch.ID(), Matcher: ReplyBinder{}},
	).Emits(EmitVar(counter.ID())).Do(func(b Bindings) {
		n := b[0].(int)
		reply := b[1].(*ReplyHandle)
		reply.Reply(n)
		_ = counter.Emit(n)
	})
	jd, _, err := Activate([]*ReactionDescriptor{reaction})
	require.NoError(t, err)
	defer jd.ShutdownNow()

	reg := NewMoleculeRegistry(counter.ID(), fetch.ID())
	err = jd.Restore(Snapshot{Molecules: []MoleculeSnapshot{{Molecule: "RestoreCounter", Values: []any{42}}}}, reg)
	require.NoError(t, err)

	// The restored counter is already in the soup, so even a zero-timeout
	// probe fires the fetch reaction synchronously.
	v, timedOut, err := fetch.Emit(struct{}{}, 0)
	require.NoError(t, err)
	require.False(t, timedOut)
	require.Equal(t, 42, v)
}
