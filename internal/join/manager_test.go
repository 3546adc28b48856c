package join

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func forwardSchema(name string) SchemaConfig {
	return SchemaConfig{
		Name: name,
		Molecules: []MoleculeConfig{
			{Name: "ping"},
			{Name: "ask", Blocking: true},
		},
		Reactions: []ReactionConfig{
			{
				ID:   "forward",
				Name: "forward",
				Inputs: []InputConfig{
					{Molecule: "ping", As: "p"},
					{Molecule: "ask", As: "r"},
				},
				Effects: []EffectConfig{
					{Reply: "r", From: "p"},
				},
			},
		},
	}
}

func TestDefinitionManagerApplyEmitAndBlockingReply(t *testing.T) {
	dm := NewDefinitionManager()
	defer dm.Close()

	md, wae, err := dm.Apply("d1", forwardSchema("forward-v1"))
	require.NoError(t, err)
	require.Empty(t, wae.Errors)
	require.Equal(t, DefinitionID("d1"), md.ID)

	require.NoError(t, dm.Emit("d1", "ping", 42))

	v, timedOut, err := dm.EmitBlocking("d1", "ask", nil, time.Second)
	require.NoError(t, err)
	require.False(t, timedOut)
	require.Equal(t, 42, v)
}

func TestDefinitionManagerRejectsWrongEmissionKind(t *testing.T) {
	dm := NewDefinitionManager()
	defer dm.Close()

	_, _, err := dm.Apply("d2", forwardSchema("forward-v1"))
	require.NoError(t, err)

	require.Error(t, dm.Emit("d2", "ask", nil))
	_, _, err = dm.EmitBlocking("d2", "ping", 1, time.Second)
	require.Error(t, err)
	require.Error(t, dm.Emit("d2", "nope", 1))
}

func TestDefinitionManagerApplySwapsAndReleasesOldDefinition(t *testing.T) {
	dm := NewDefinitionManager()
	defer dm.Close()

	oldMD, _, err := dm.Apply("d3", forwardSchema("forward-v1"))
	require.NoError(t, err)
	oldPing := oldMD.Registry["ping"]

	newMD, _, err := dm.Apply("d3", forwardSchema("forward-v2"))
	require.NoError(t, err)
	require.NotSame(t, oldMD.JD, newMD.JD)
	require.NotSame(t, oldPing, newMD.Registry["ping"])

	// The replaced definition's molecules are unbound: direct emission to
	// the old identity now fails, while the name routes to the new one.
	err = Emit(oldPing, 1, nil)
	var notBound *ErrNotBound
	require.ErrorAs(t, err, &notBound)
	require.NoError(t, dm.Emit("d3", "ping", 1))
}

func TestDefinitionManagerDeleteRemovesDefinition(t *testing.T) {
	dm := NewDefinitionManager()
	defer dm.Close()

	_, _, err := dm.Apply("d4", forwardSchema("forward-v1"))
	require.NoError(t, err)
	require.Contains(t, dm.List(), DefinitionID("d4"))

	require.NoError(t, dm.Delete("d4"))
	require.Error(t, dm.Delete("d4"))
	require.Error(t, dm.Emit("d4", "ping", 1))
}

func TestDefinitionManagerSoupAndSnapshot(t *testing.T) {
	dm := NewDefinitionManager()
	defer dm.Close()

	_, _, err := dm.Apply("d5", forwardSchema("forward-v1"))
	require.NoError(t, err)
	require.NoError(t, dm.Emit("d5", "ping", 7))

	// The decision pass runs asynchronously on the decision pool; wait for
	// the emitted value to land in the bag.
	require.Eventually(t, func() bool {
		soup, err := dm.Soup("d5")
		require.NoError(t, err)
		return soup == "Join{ask + ping}\nMolecules: ping(7)"
	}, time.Second, 5*time.Millisecond)

	snap, err := dm.Snapshot("d5", 123)
	require.NoError(t, err)
	require.Equal(t, "d5", snap.Name)
	require.Len(t, snap.Molecules, 1)
	require.Equal(t, "ping", snap.Molecules[0].Molecule)
}
