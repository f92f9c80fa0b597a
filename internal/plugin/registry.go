package plugin

import (
	"fmt"
	"sort"
)

// Registry is the process-wide, immutable-after-load set of active
// plugins. Unlike the reference implementation's metaclass that populated a
// global list as a side effect of declaring a plugin class, registration
// here is an explicit call made once at process start (see
// internal/plugins.Register), so plugin ordering and membership are never
// hidden global state.
type Registry struct {
	byName map[string]Plugin
	order  []string
}

// NewRegistry returns an empty registry ready for Register calls.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Plugin)}
}

// Register adds p to the registry. Registering two plugins with the same
// name is a programmer error and panics, matching the "process-wide, single
// instance" invariant in the plugin contract.
func (r *Registry) Register(p Plugin) {
	name := p.Name()
	if _, exists := r.byName[name]; exists {
		panic(fmt.Sprintf("plugin: duplicate registration for %q", name))
	}
	r.byName[name] = p
	r.order = append(r.order, name)
}

// ByName looks up a plugin, returning (nil, false) if it isn't registered.
func (r *Registry) ByName(name string) (Plugin, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// All returns every registered plugin in registration order.
func (r *Registry) All() []Plugin {
	out := make([]Plugin, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Active returns the plugins that should run this tick: every fast plugin,
// plus the slow ones only when includeSlow is true.
func (r *Registry) Active(includeSlow bool) []Plugin {
	all := r.All()
	if includeSlow {
		return all
	}

	out := make([]Plugin, 0, len(all))
	for _, p := range all {
		if !p.IsSlow() {
			out = append(out, p)
		}
	}
	return out
}

// Names returns every registered plugin name, sorted, for diagnostics.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
