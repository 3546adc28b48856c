package join

import (
	"fmt"
	"sort"
	"strings"
)

// joinSorted sorts a copy of ss and joins it with sep, used by both the
// soup-listing input signature and the analyzer's reaction listings.
func joinSorted(ss []string, sep string) string {
	cp := make([]string, len(ss))
	copy(cp, ss)
	sort.Strings(cp)
	return strings.Join(cp, sep)
}

// formatMoleculeListing renders a bag's contents as "No molecules" or
// "Molecules: name(val), ..." sorted by molecule name.
func formatMoleculeListing(values map[*MoleculeID][]MolVal) string {
	type entry struct {
		name string
		strs []string
	}
	entries := make([]entry, 0, len(values))
	for id, vals := range values {
		if len(vals) == 0 {
			continue
		}
		strs := make([]string, 0, len(vals))
		for _, v := range vals {
			strs = append(strs, fmt.Sprintf("%s(%v)", id.Name, v.Value))
		}
		entries = append(entries, entry{name: id.Name, strs: strs})
	}
	if len(entries) == 0 {
		return "No molecules"
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	all := make([]string, 0)
	for _, e := range entries {
		all = append(all, e.strs...)
	}
	return "Molecules: " + strings.Join(all, ", ")
}
