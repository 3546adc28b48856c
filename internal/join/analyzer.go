package join

import "fmt"

// RunStaticAnalyzer checks the reaction list at activation time for
// shadowing and unavoidable livelock (fatal errors) and possible livelock /
// possible deadlock (non-fatal warnings). priorConsumers indexes reactions
// from already-activated JoinDefinitions by the MoleculeIDs they consume,
// used for the cross-definition possible-deadlock check.
func RunStaticAnalyzer(reactions []*ReactionDescriptor, site string, priorConsumers map[*MoleculeID][]*ReactionDescriptor) WarningsAndErrors {
	wae := WarningsAndErrors{Site: site}

	if shadow := detectShadowing(reactions); len(shadow) > 0 {
		wae.Errors = append(wae.Errors, fmt.Sprintf("In Join{%s}: Unavoidable indeterminism: %s", site, joinSorted(shadow, "; ")))
	}

	var unavoidableLivelock []string
	for _, r := range reactions {
		subset, covered := livelockShape(r)
		if !subset {
			continue
		}
		if covered && r.Guard == nil {
			unavoidableLivelock = append(unavoidableLivelock, r.String())
		} else {
			wae.Warnings = append(wae.Warnings, fmt.Sprintf("Possible livelock: reaction %s => %s", r.String(), outputsSummary(r)))
		}
	}
	if len(unavoidableLivelock) > 0 {
		word := "reaction"
		if len(unavoidableLivelock) > 1 {
			word = "reactions"
		}
		wae.Errors = append(wae.Errors, fmt.Sprintf("In Join{%s}: Unavoidable livelock: %s %s", site, word, joinSorted(unavoidableLivelock, ", ")))
	}

	wae.Warnings = append(wae.Warnings, detectPossibleDeadlocks(reactions, priorConsumers)...)

	return wae
}

// detectShadowing finds unavoidable indeterminism: R1 shadows R2 iff R1 has
// no guard, R1's input MoleculeIDs are a multiset-subset of R2's, and each
// of R1's inputs pairs with a distinct R2 input on the same MoleculeID with
// a weaker-or-equal matcher. Reports one message per shadowing pair found.
func detectShadowing(reactions []*ReactionDescriptor) []string {
	var msgs []string
	for _, r1 := range reactions {
		if r1.Guard != nil {
			continue
		}
		for _, r2 := range reactions {
			if r1 == r2 {
				continue
			}
			if shadowsPair(r1, r2) {
				msgs = append(msgs, fmt.Sprintf("reaction %s is shadowed by %s", r2.String(), r1.String()))
			}
		}
	}
	return msgs
}

// shadowsPair reports whether r1 shadows r2: every input of r1 can be paired
// with a distinct, same-MoleculeID input of r2 such that r1's matcher is
// weaker-or-equal to r2's (r2's matcher is no weaker than r1's), and r1 has
// no more inputs than r2 (so r2 is the more specific reaction). Matchers the
// analyzer cannot compare are conservatively treated as "not weaker",
// avoiding false positives.
func shadowsPair(r1, r2 *ReactionDescriptor) bool {
	if len(r1.Inputs) > len(r2.Inputs) {
		return false
	}
	used := make([]bool, len(r2.Inputs))
	for _, in1 := range r1.Inputs {
		paired := false
		for j, in2 := range r2.Inputs {
			if used[j] || in2.ID != in1.ID {
				continue
			}
			if in1.Matcher.weakerOrEqual(in2.Matcher) {
				used[j] = true
				paired = true
				break
			}
		}
		if !paired {
			return false
		}
	}
	return true
}

// livelockShape reports whether r's input MoleculeIDs are a multiset-subset
// of its declared output MoleculeIDs (isSubset), and whether every input is
// provably re-enabled by an output: infallible matchers (Wildcard,
// SimpleVar) are covered by any output of that id; Constant matchers need a
// Const output carrying the same value; anything else (Arbitrary,
// ReplyBinder, or no matching output) is not provably covered.
func livelockShape(r *ReactionDescriptor) (isSubset, covered bool) {
	inCount := make(map[*MoleculeID]int)
	for _, in := range r.Inputs {
		inCount[in.ID]++
	}
	outByID := make(map[*MoleculeID][]OutputPattern)
	for _, o := range r.Outputs {
		outByID[o.ID] = append(outByID[o.ID], o)
	}

	for id, n := range inCount {
		if len(outByID[id]) < n {
			return false, false
		}
	}

	covered = true
	for _, in := range r.Inputs {
		outs := outByID[in.ID]
		if in.Matcher.infallible() {
			continue
		}
		if c, ok := in.Matcher.(Constant); ok {
			found := false
			for _, o := range outs {
				if o.Const && o.Value == c.Value {
					found = true
					break
				}
			}
			if !found {
				covered = false
			}
			continue
		}
		covered = false
	}
	return true, covered
}

func outputsSummary(r *ReactionDescriptor) string {
	parts := make([]string, len(r.Outputs))
	for i, o := range r.Outputs {
		parts[i] = o.String()
	}
	s := ""
	for i, p := range parts {
		if i > 0 {
			s += " + "
		}
		s += p
	}
	return s
}

// detectPossibleDeadlocks warns when a reaction emits a blocking molecule B
// and later, in the same output sequence, emits a non-blocking molecule M
// that some reaction consuming B (already activated, or in this same
// definition) also requires as an input: the emitter blocks on B before M
// exists, and B's consumer needs M.
func detectPossibleDeadlocks(reactions []*ReactionDescriptor, priorConsumers map[*MoleculeID][]*ReactionDescriptor) []string {
	consumersOf := func(id *MoleculeID) []*ReactionDescriptor {
		all := append([]*ReactionDescriptor{}, priorConsumers[id]...)
		for _, r := range reactions {
			for _, in := range r.Inputs {
				if in.ID == id {
					all = append(all, r)
				}
			}
		}
		return all
	}

	var msgs []string
	seen := make(map[string]bool)
	for _, r := range reactions {
		for i, out := range r.Outputs {
			if !out.ID.Blocking {
				continue
			}
			for _, later := range r.Outputs[i+1:] {
				if later.ID.Blocking {
					continue
				}
				for _, consumer := range consumersOf(out.ID) {
					if consumer == r {
						continue
					}
					if inputsContain(consumer, later.ID) {
						key := out.ID.Name + "|" + r.String()
						if seen[key] {
							continue
						}
						seen[key] = true
						msgs = append(msgs, fmt.Sprintf("Possible deadlock: molecule %s may deadlock due to outputs of %s", out.ID.Name, r.String()))
					}
				}
			}
		}
	}
	return msgs
}

func inputsContain(r *ReactionDescriptor, id *MoleculeID) bool {
	for _, in := range r.Inputs {
		if in.ID == id {
			return true
		}
	}
	return false
}
