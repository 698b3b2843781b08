// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package merge resolves field-level conflicts between a local entry and the
// remote record matched for it.
package merge

import (
	"sort"
	"strings"

	"github.com/pdiddy/bibsync/pkg/types"
)

// ChangedEntryType is the name reported in the changed list when the merge
// replaces the entry type.
const ChangedEntryType = "entrytype"

// Policy carries the caller's precedence options.
type Policy struct {
	// PreferLongJournalNames makes the longer journal name win a conflict,
	// whichever side it comes from.
	PreferLongJournalNames bool
}

// Merge returns a copy of local updated from remote together with the sorted
// names of the fields it changed. It never removes a local field, never
// touches the key and performs no I/O.
func Merge(local types.Entry, remote types.Record, p Policy) (types.Entry, []string) {
	out := local.Clone()
	var changed []string

	for name, rv := range remote.Fields {
		name = strings.ToLower(name)
		if strings.TrimSpace(rv) == "" {
			continue
		}
		lv, ok := out.Get(name)
		if !ok || strings.TrimSpace(lv) == "" {
			out.Set(name, rv)
			changed = append(changed, name)
			continue
		}
		if Normalize(lv) == Normalize(rv) {
			continue
		}
		if name == "journal" && p.PreferLongJournalNames {
			if len(rv) > len(lv) {
				out.Set(name, rv)
				changed = append(changed, name)
			}
			continue
		}
		out.Set(name, rv)
		changed = append(changed, name)
	}

	if remote.Type != "" && (out.Type == "" || out.Type == "misc") && remote.Type != out.Type {
		out.Type = remote.Type
		changed = append(changed, ChangedEntryType)
	}

	sort.Strings(changed)
	return out, changed
}

// Normalize folds a field value for comparison: braces are dropped, case is
// folded and runs of whitespace collapse to one space.
func Normalize(v string) string {
	v = strings.NewReplacer("{", "", "}", "").Replace(v)
	return strings.ToLower(strings.Join(strings.Fields(v), " "))
}
