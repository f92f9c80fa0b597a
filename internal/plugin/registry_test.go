package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubPlugin struct {
	BasePlugin
	name string
	slow bool
}

func (s *stubPlugin) Name() string      { return s.name }
func (s *stubPlugin) Spec() Spec        { return Spec{KeyField: "key"} }
func (s *stubPlugin) DiffUpdates() bool { return true }
func (s *stubPlugin) IsSlow() bool      { return s.slow }
func (s *stubPlugin) EmitsEvents() bool { return false }
func (s *stubPlugin) Prepare(ctx context.Context, settings SettingsView) error {
	return nil
}
func (s *stubPlugin) Collect(ctx context.Context, settings SettingsView) (Snapshot, error) {
	return Snapshot{}, nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubPlugin{name: "meta"})
	r.Register(&stubPlugin{name: "services", slow: true})

	p, ok := r.ByName("meta")
	assert.True(t, ok)
	assert.Equal(t, "meta", p.Name())

	_, ok = r.ByName("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"meta", "services"}, r.Names())
}

func TestRegistry_DuplicateRegistrationPanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubPlugin{name: "meta"})

	assert.Panics(t, func() {
		r.Register(&stubPlugin{name: "meta"})
	})
}

func TestRegistry_ActiveFiltersSlowPlugins(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubPlugin{name: "meta"})
	r.Register(&stubPlugin{name: "services", slow: true})

	fastOnly := r.Active(false)
	assert.Len(t, fastOnly, 1)
	assert.Equal(t, "meta", fastOnly[0].Name())

	all := r.Active(true)
	assert.Len(t, all, 2)
}

func TestRegistry_AllPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubPlugin{name: "z"})
	r.Register(&stubPlugin{name: "a"})

	names := make([]string, 0, 2)
	for _, p := range r.All() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"z", "a"}, names)
}
