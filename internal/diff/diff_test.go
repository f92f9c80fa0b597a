package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canaryhq/canary-agent/internal/plugin"
)

type diffUpdatesFlag bool

func (d diffUpdatesFlag) DiffUpdates() bool { return bool(d) }

func snapshot(kvs ...interface{}) plugin.Snapshot {
	snap := plugin.Snapshot{}
	for i := 0; i < len(kvs); i += 2 {
		snap[kvs[i].(string)] = kvs[i+1].(plugin.Item)
	}
	return snap
}

func TestCompute_EmptyDiff(t *testing.T) {
	s := snapshot("sshd", plugin.Item{"running": true, "pid": 42})
	changes := Compute(diffUpdatesFlag(true), s, s)
	assert.Empty(t, changes)
}

func TestCompute_FullAdd(t *testing.T) {
	s := snapshot(
		"sshd", plugin.Item{"running": true, "pid": 42},
		"cron", plugin.Item{"running": true, "pid": 7},
	)
	changes := Compute(diffUpdatesFlag(true), s, plugin.Snapshot{})

	require.Len(t, changes, 2)
	for _, c := range changes {
		assert.Equal(t, Added, c.Kind)
		item := s[c.Key]
		require.Len(t, c.Fields, len(item))
		for field, fd := range c.Fields {
			assert.Nil(t, fd.Old)
			assert.Equal(t, item[field], fd.New)
		}
	}
}

func TestCompute_FullDelete(t *testing.T) {
	s := snapshot(
		"sshd", plugin.Item{"running": true, "pid": 42},
	)
	changes := Compute(diffUpdatesFlag(true), plugin.Snapshot{}, s)

	require.Len(t, changes, 1)
	c := changes[0]
	assert.Equal(t, Deleted, c.Kind)
	assert.Equal(t, "sshd", c.Key)
	for field, fd := range c.Fields {
		assert.Equal(t, s["sshd"][field], fd.Old)
		assert.Nil(t, fd.New)
	}
}

func TestCompute_UpdatedDiffUpdatesTrue(t *testing.T) {
	prev := snapshot("meta", plugin.Item{"hostname": "h1"})
	next := snapshot("meta", plugin.Item{"hostname": "h2"})

	changes := Compute(diffUpdatesFlag(true), next, prev)
	require.Len(t, changes, 1)
	assert.Equal(t, Updated, changes[0].Kind)
	assert.Equal(t, map[string]FieldDiff{"hostname": {Old: "h1", New: "h2"}}, changes[0].Fields)
}

func TestCompute_UpdatedDiffUpdatesFalseShipsFullItem(t *testing.T) {
	prev := snapshot("sshd", plugin.Item{"running": true, "pid": 42})
	next := snapshot("sshd", plugin.Item{"running": false, "pid": 42})

	changes := Compute(diffUpdatesFlag(false), next, prev)
	require.Len(t, changes, 1)
	assert.Equal(t, Updated, changes[0].Kind)
	assert.Equal(t, map[string]FieldDiff{
		"running": {Old: true, New: false},
		"pid":     {Old: 42, New: 42},
	}, changes[0].Fields)
}

func TestCompute_AddedKey(t *testing.T) {
	prev := plugin.Snapshot{}
	next := snapshot("sshd", plugin.Item{"running": true, "pid": 42})

	changes := Compute(diffUpdatesFlag(true), next, prev)
	require.Len(t, changes, 1)
	assert.Equal(t, Added, changes[0].Kind)
	assert.Equal(t, "sshd", changes[0].Key)
	assert.Equal(t, map[string]FieldDiff{
		"running": {Old: nil, New: true},
		"pid":     {Old: nil, New: 42},
	}, changes[0].Fields)
}

func TestCompute_SetEquality_OrderIgnored(t *testing.T) {
	prev := snapshot("pkg", plugin.Item{"tags": Set{"a", "b"}})
	next := snapshot("pkg", plugin.Item{"tags": Set{"b", "a"}})

	changes := Compute(diffUpdatesFlag(true), next, prev)
	assert.Empty(t, changes)
}

func TestCompute_ListEquality_OrderMatters(t *testing.T) {
	prev := snapshot("pkg", plugin.Item{"versions": []interface{}{"1", "2"}})
	next := snapshot("pkg", plugin.Item{"versions": []interface{}{"2", "1"}})

	changes := Compute(diffUpdatesFlag(true), next, prev)
	require.Len(t, changes, 1)
	assert.Equal(t, Updated, changes[0].Kind)
}

// Round-trip property: applying diff(b, a) to a as added/updated/deleted
// operations must yield b, field-for-field.
func TestCompute_RoundTrip(t *testing.T) {
	a := snapshot(
		"keep", plugin.Item{"x": 1, "y": "same"},
		"gone", plugin.Item{"z": true},
	)
	b := snapshot(
		"keep", plugin.Item{"x": 2, "y": "same"},
		"new", plugin.Item{"w": 3},
	)

	changes := Compute(diffUpdatesFlag(true), b, a)

	result := plugin.Snapshot{}
	for k, v := range a {
		item := plugin.Item{}
		for f, val := range v {
			item[f] = val
		}
		result[k] = item
	}

	for _, c := range changes {
		switch c.Kind {
		case Deleted:
			delete(result, c.Key)
		case Added:
			item := plugin.Item{}
			for f, fd := range c.Fields {
				item[f] = fd.New
			}
			result[c.Key] = item
		case Updated:
			item := result[c.Key]
			for f, fd := range c.Fields {
				item[f] = fd.New
			}
			result[c.Key] = item
		}
	}

	assert.Equal(t, b, result)
}

func TestNormalizeLegacy(t *testing.T) {
	added := NormalizeLegacy(Added, map[string]interface{}{"running": true})
	assert.Equal(t, map[string]FieldDiff{"running": {Old: nil, New: true}}, added)

	deleted := NormalizeLegacy(Deleted, map[string]interface{}{"running": true})
	assert.Equal(t, map[string]FieldDiff{"running": {Old: true, New: nil}}, deleted)
}
