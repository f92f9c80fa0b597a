package remote

import (
	"github.com/canaryhq/canary-agent/internal/diff"
	"github.com/canaryhq/canary-agent/internal/plugin"
)

// Tag selects which server endpoint semantics a StatusPayload carries.
type Tag string

const (
	TagSync   Tag = "SYNC"
	TagDiff   Tag = "DIFF"
	TagError  Tag = "ERROR"
	TagEvents Tag = "EVENTS"
)

// StatusPayload is what the Collection Loop hands to the Remote Client for
// one plugin on one tick. Exactly one of Snapshot/Changes/Error/Events is
// populated, selected by Tag.
type StatusPayload struct {
	Tag      Tag
	Snapshot plugin.Snapshot
	Changes  []diff.Change
	Error    *plugin.ErrorRecord
	Events   []plugin.Event
}

// Sync builds a SYNC payload.
func Sync(snap plugin.Snapshot) StatusPayload { return StatusPayload{Tag: TagSync, Snapshot: snap} }

// Diff builds a DIFF payload.
func Diff(changes []diff.Change) StatusPayload {
	if changes == nil {
		changes = []diff.Change{}
	}
	return StatusPayload{Tag: TagDiff, Changes: changes}
}

// ErrorPayload builds an ERROR payload.
func ErrorPayload(rec plugin.ErrorRecord) StatusPayload {
	return StatusPayload{Tag: TagError, Error: &rec}
}

// EventsPayload builds an EVENTS payload.
func EventsPayload(events []plugin.Event) StatusPayload {
	return StatusPayload{Tag: TagEvents, Events: events}
}

// wireData returns the JSON-ready second element of this payload's [tag,
// data] wire entry.
func (p StatusPayload) wireData() interface{} {
	switch p.Tag {
	case TagSync:
		return wireSnapshot(p.Snapshot)
	case TagDiff:
		return wireChanges(p.Changes)
	case TagError:
		return p.Error
	case TagEvents:
		return p.Events
	default:
		return nil
	}
}

func wireSnapshot(snap plugin.Snapshot) map[string]plugin.Item {
	out := make(map[string]plugin.Item, len(snap))
	for k, v := range snap {
		out[k] = v
	}
	return out
}

// wireChange is the JSON shape of one diff.Change: field_diff maps field
// name to a (old, new) two-element array.
type wireChange struct {
	Kind   diff.ChangeKind          `json:"kind"`
	Key    string                   `json:"key"`
	Fields map[string][2]interface{} `json:"fields"`
}

func wireChanges(changes []diff.Change) []wireChange {
	out := make([]wireChange, 0, len(changes))
	for _, c := range changes {
		fields := make(map[string][2]interface{}, len(c.Fields))
		for k, fd := range c.Fields {
			fields[k] = [2]interface{}{fd.Old, fd.New}
		}
		out = append(out, wireChange{Kind: c.Kind, Key: c.Key, Fields: fields})
	}
	return out
}

// Batch is the full per-tick upload: every plugin's payload(s), keyed by
// plugin name. A plugin may have more than one entry (e.g. DIFF and
// EVENTS on the same tick).
type Batch map[string][]StatusPayload

func (b Batch) wireEntries() map[string][]entry {
	out := make(map[string][]entry, len(b))
	for name, payloads := range b {
		entries := make([]entry, 0, len(payloads))
		for _, p := range payloads {
			entries = append(entries, entry{Tag: string(p.Tag), Data: p.wireData()})
		}
		out[name] = entries
	}
	return out
}
