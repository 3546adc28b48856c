package join

import (
	"encoding/json"
	"fmt"
)

// MoleculeSnapshot is the pending-value list for one molecule identity.
type MoleculeSnapshot struct {
	Molecule string `json:"molecule"`
	Values   []any  `json:"values"`
}

// Snapshot is a point-in-time capture of a JoinDefinition's bag.
//
// Blocking molecules with a live reply are never captured: resurrecting a
// ReplySlot across a process restart has no sound semantics (the original
// emitter's goroutine is gone), so a snapshot drops any pending blocking
// emission rather than pretending to preserve it.
type Snapshot struct {
	Name      string             `json:"name"`
	Timestamp int64              `json:"timestamp"`
	Molecules []MoleculeSnapshot `json:"molecules"`
}

// Snapshot captures jd's current bag contents.
func (jd *JoinDefinition) Snapshot(timestamp int64) Snapshot {
	jd.mu.Lock()
	defer jd.mu.Unlock()

	snap := Snapshot{Name: jd.name, Timestamp: timestamp}
	for _, id := range jd.bag.AllIDs() {
		var values []any
		for _, v := range jd.bag.Candidates(id) {
			if v.Reply != nil {
				continue
			}
			values = append(values, v.Value)
		}
		if len(values) > 0 {
			snap.Molecules = append(snap.Molecules, MoleculeSnapshot{Molecule: id.Name, Values: values})
		}
	}
	return snap
}

// ValidateSnapshot checks that every molecule name in snap is declared in
// reg, appears only once, and is not blocking.
func ValidateSnapshot(snap Snapshot, reg MoleculeRegistry) error {
	seen := make(map[string]struct{})
	for _, m := range snap.Molecules {
		if m.Molecule == "" {
			return fmt.Errorf("snapshot entry has empty molecule name")
		}
		if _, dup := seen[m.Molecule]; dup {
			return fmt.Errorf("duplicate molecule entry: %s", m.Molecule)
		}
		seen[m.Molecule] = struct{}{}
		if reg != nil {
			if id, ok := reg[m.Molecule]; !ok {
				return fmt.Errorf("snapshot molecule %q not found in registry", m.Molecule)
			} else if id.Blocking {
				return fmt.Errorf("snapshot molecule %q is blocking and cannot be restored", m.Molecule)
			}
		}
	}
	return nil
}

// EncodeSnapshotJSON encodes a Snapshot to JSON.
func EncodeSnapshotJSON(snap Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshotJSON decodes a Snapshot from JSON.
func DecodeSnapshotJSON(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}

// Restore re-inserts every value from snap into jd's bag via reg, and
// triggers a decision pass afterward so any reaction already satisfiable
// from the restored soup fires immediately. Call ValidateSnapshot first;
// Restore itself only checks that each name resolves in reg and is not a
// blocking molecule.
func (jd *JoinDefinition) Restore(snap Snapshot, reg MoleculeRegistry) error {
	for _, m := range snap.Molecules {
		id, ok := reg[m.Molecule]
		if !ok {
			return fmt.Errorf("snapshot molecule %q not found in registry", m.Molecule)
		}
		if id.Blocking {
			return fmt.Errorf("snapshot molecule %q is blocking and cannot be restored", m.Molecule)
		}
		jd.mu.Lock()
		for _, v := range m.Values {
			jd.bag.Insert(MolVal{ID: id, Value: v})
		}
		jd.mu.Unlock()
	}
	jd.runDecisionPass(nil)
	return nil
}
