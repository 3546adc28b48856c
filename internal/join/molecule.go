package join

// MolVal is the value owned by the bag until a reaction consumes it. For
// blocking molecules it carries the ReplySlot the consuming reaction must
// reply to; for non-blocking molecules Reply is nil.
type MolVal struct {
	ID    *MoleculeID
	Value any
	Reply *ReplySlot

	// seq is assigned by Bag.Insert and identifies this exact pending
	// value for removal. Value itself is never compared: its dynamic type
	// may be a map or slice, and == on those panics.
	seq uint64
}
