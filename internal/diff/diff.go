// Package diff computes key-level add/delete/update changes between two
// plugin snapshots, per the State Diff Engine contract.
package diff

import (
	"reflect"
	"sort"

	"github.com/canaryhq/canary-agent/internal/plugin"
)

// ChangeKind tags the shape of a single Change.
type ChangeKind string

const (
	Added   ChangeKind = "added"
	Updated ChangeKind = "updated"
	Deleted ChangeKind = "deleted"
)

// FieldDiff is the (old, new) pair for one changed field. For Added, Old is
// always nil; for Deleted, New is always nil.
type FieldDiff struct {
	Old interface{} `json:"0"`
	New interface{} `json:"1"`
}

// Change is one key-level delta between two snapshots.
type Change struct {
	Plugin string
	Kind   ChangeKind
	Key    string
	Fields map[string]FieldDiff
}

// DiffUpdates reports whether a plugin wants partial-field updates (true)
// or always wants the full item on change (false). Implemented by
// plugin.Plugin; kept as its own tiny interface so this package doesn't
// need the whole Plugin contract to compute a diff.
type DiffUpdates interface {
	DiffUpdates() bool
}

// Compute diffs newSnap against prevSnap for one plugin and returns the
// ordered list of Changes. The list is sorted by kind, then by key, for
// determinism in tests; the server treats the list as an unordered
// set, per the contract.
func Compute(p DiffUpdates, newSnap, prevSnap plugin.Snapshot) []Change {
	var changes []Change

	// 1. Deleted: keys present in prevSnap but not newSnap.
	for key, prevItem := range prevSnap {
		if _, ok := newSnap[key]; ok {
			continue
		}
		fields := make(map[string]FieldDiff, len(prevItem))
		for k, v := range prevItem {
			fields[k] = FieldDiff{Old: v, New: nil}
		}
		changes = append(changes, Change{Kind: Deleted, Key: key, Fields: fields})
	}

	// 2. Added + updated: keys present in newSnap.
	for key, item := range newSnap {
		prevItem, existed := prevSnap[key]

		if !existed {
			fields := make(map[string]FieldDiff, len(item))
			for k, v := range item {
				fields[k] = FieldDiff{Old: nil, New: v}
			}
			changes = append(changes, Change{Kind: Added, Key: key, Fields: fields})
			continue
		}

		allKeys := unionKeys(item, prevItem)
		fields := make(map[string]FieldDiff)
		for _, k := range allKeys {
			oldV, newV := prevItem[k], item[k]
			if !valuesEqual(oldV, newV) {
				fields[k] = FieldDiff{Old: oldV, New: newV}
			}
		}

		if len(fields) == 0 {
			continue
		}

		if !p.DiffUpdates() {
			// Plugin opted out of partial diffs: ship the full new item,
			// still paired with whatever the previous value was (often
			// the same value for unchanged fields).
			full := make(map[string]FieldDiff, len(item))
			for k, v := range item {
				full[k] = FieldDiff{Old: prevItem[k], New: v}
			}
			fields = full
		}

		changes = append(changes, Change{Kind: Updated, Key: key, Fields: fields})
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Kind != changes[j].Kind {
			return changes[i].Kind < changes[j].Kind
		}
		return changes[i].Key < changes[j].Key
	})

	return changes
}

func unionKeys(a, b plugin.Item) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for k := range a {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	for k := range b {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// valuesEqual implements the equality rule from the diff contract: ordered
// lists compare element-wise, sets (values wrapped in Set) compare by
// membership ignoring order, everything else compares by deep equality.
func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	aSet, aIsSet := a.(Set)
	bSet, bIsSet := b.(Set)
	if aIsSet || bIsSet {
		if !aIsSet || !bIsSet {
			return false
		}
		return setsEqual(aSet, bSet)
	}

	return reflect.DeepEqual(a, b)
}

// Set marks a value as set-semantics (membership equality, order
// ignored) rather than list semantics (element-wise, order matters). The
// transport always serializes a Set as a JSON list; this wrapper exists
// purely so the diff engine applies the right equality rule.
type Set []interface{}

func setsEqual(a, b Set) bool {
	if len(a) != len(b) {
		return false
	}

	counts := make(map[interface{}]int, len(a))
	for _, v := range a {
		counts[v]++
	}
	for _, v := range b {
		counts[v]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}

// NormalizeLegacy rewrites a legacy Added/Deleted field map that was built
// from bare values (not (old,new) tuples) into the canonical form. This
// mirrors canaryd's "COMPAT w/canaryd < 0.2" handling in diff.py for
// upstream callers that still pass bare values.
func NormalizeLegacy(kind ChangeKind, raw map[string]interface{}) map[string]FieldDiff {
	out := make(map[string]FieldDiff, len(raw))
	for k, v := range raw {
		switch kind {
		case Added:
			out[k] = FieldDiff{Old: nil, New: v}
		case Deleted:
			out[k] = FieldDiff{Old: v, New: nil}
		default:
			// Updated changes are never legacy bare values.
			out[k] = FieldDiff{New: v}
		}
	}
	return out
}
