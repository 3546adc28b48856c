// Package join implements an embedded Join Calculus runtime: molecules,
// reactions, a mutex-guarded decision engine, blocking/reply rendezvous, and
// static analysis of reaction lists for shadowing, livelock and deadlock.
package join

import "github.com/google/uuid"

// MoleculeID is the opaque handle created at molecule-declaration time.
// Identity, not Name, is what the bag, scheduler and single-binding
// registry use for matching and lookup: two *MoleculeID values are the same
// molecule iff they are the same pointer. UUID is carried only for
// diagnostics (log_soup, notifications) and is never compared for identity.
type MoleculeID struct {
	Name     string
	Blocking bool
	UUID     uuid.UUID
}

func newMoleculeID(name string, blocking bool) *MoleculeID {
	return &MoleculeID{
		Name:     name,
		Blocking: blocking,
		UUID:     uuid.New(),
	}
}

// String returns the display name, used by log_soup and error messages.
func (id *MoleculeID) String() string {
	return id.Name
}
