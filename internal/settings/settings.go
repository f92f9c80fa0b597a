// Package settings models the mutable Settings document: the flat,
// string-keyed configuration the server can patch at runtime and every
// other component reads a point-in-time snapshot of.
//
// Settings is treated as an immutable value swapped wholesale on update
// rather than mutated in place, so concurrent readers never observe a
// partially-applied patch without needing to take a lock.
package settings

import (
	"sync/atomic"
	"time"
)

// Settings is the flat configuration document the agent runs on. Values
// are plain Go types; PluginSections carries the opaque [plugin:<name>]
// INI sections verbatim.
type Settings struct {
	APIBaseURL   string
	APIVer       int
	APIKeyValue  string
	ServerIDVal  string

	CollectIntervalS     int
	SlowCollectIntervalS int

	LogFile               string
	LogFileRotation       string
	LogFileRotationCount  int
	SyslogFacility        string
	Debug                 bool

	PluginSections map[string]map[string]string
}

// APIBase, APIVersion, APIKey, ServerID implement remote.Config.
func (s *Settings) APIBase() string  { return s.APIBaseURL }
func (s *Settings) APIVersion() int  { return s.APIVer }
func (s *Settings) APIKey() string   { return s.APIKeyValue }
func (s *Settings) ServerID() string { return s.ServerIDVal }

// CollectInterval and SlowCollectInterval return the cadence knobs as
// time.Duration for convenience at call sites.
func (s *Settings) CollectInterval() time.Duration {
	return time.Duration(s.CollectIntervalS) * time.Second
}

func (s *Settings) SlowCollectInterval() time.Duration {
	return time.Duration(s.SlowCollectIntervalS) * time.Second
}

// PluginSettings returns the [plugin:<name>] section for name, or an empty
// map if the plugin has no section. Implements plugin.SettingsView.
func (s *Settings) PluginSettings(name string) map[string]string {
	if sec, ok := s.PluginSections[name]; ok {
		return sec
	}
	return map[string]string{}
}

// clone returns a deep-enough copy of s: the atomic swap in Store always
// installs a brand new *Settings, so readers holding an old snapshot never
// observe a partial write, but clone lets Update build the new value
// without mutating a snapshot a concurrent reader might still hold.
func (s *Settings) clone() *Settings {
	cp := *s
	cp.PluginSections = make(map[string]map[string]string, len(s.PluginSections))
	for name, section := range s.PluginSections {
		sectionCopy := make(map[string]string, len(section))
		for k, v := range section {
			sectionCopy[k] = v
		}
		cp.PluginSections[name] = sectionCopy
	}
	return &cp
}

// Default returns the built-in defaults, matching CanarydSettings' class
// attributes in the reference implementation.
func Default() *Settings {
	return &Settings{
		APIBaseURL:           "https://api.servicecanary.com",
		APIVer:               1,
		CollectIntervalS:     30,
		SlowCollectIntervalS: 900,
		LogFileRotationCount: 5,
		PluginSections:       map[string]map[string]string{},
	}
}

// Store holds the live Settings behind an atomic pointer so every reader
// gets a consistent, if possibly stale, snapshot without locking — the
// single-threaded Collection Loop is the only writer.
type Store struct {
	ptr atomic.Pointer[Settings]
}

// NewStore creates a Store seeded with initial.
func NewStore(initial *Settings) *Store {
	st := &Store{}
	st.ptr.Store(initial)
	return st
}

// Snapshot returns the current Settings. Callers must not mutate the
// returned value; Update is the only sanctioned mutation path.
func (st *Store) Snapshot() *Settings {
	return st.ptr.Load()
}

// Update applies a patch of key -> value pairs (as decoded from a server
// response or a reload) to the live Settings, returning the keys that
// actually changed, matching CanarydSettings.update()'s log-worthy
// contract. Unknown keys are ignored (forward compatible with servers
// that send settings this agent version doesn't recognize yet).
func (st *Store) Update(patch map[string]interface{}) []string {
	current := st.ptr.Load()
	next := current.clone()

	var changed []string
	apply := func(key string, ok bool) {
		if ok {
			changed = append(changed, key)
		}
	}

	for key, value := range patch {
		switch key {
		case "api_base":
			if s, ok := asString(value); ok && s != next.APIBaseURL {
				next.APIBaseURL = s
				apply(key, true)
			}
		case "api_version":
			if n, ok := asInt(value); ok && n != next.APIVer {
				next.APIVer = n
				apply(key, true)
			}
		case "api_key":
			if s, ok := asString(value); ok && s != next.APIKeyValue {
				next.APIKeyValue = s
				apply(key, true)
			}
		case "server_id":
			if s, ok := asString(value); ok && s != next.ServerIDVal {
				next.ServerIDVal = s
				apply(key, true)
			}
		case "collect_interval_s":
			if n, ok := asInt(value); ok && n != next.CollectIntervalS {
				next.CollectIntervalS = n
				apply(key, true)
			}
		case "slow_collect_interval_s":
			if n, ok := asInt(value); ok && n != next.SlowCollectIntervalS {
				next.SlowCollectIntervalS = n
				apply(key, true)
			}
		case "log_file":
			if s, ok := asString(value); ok && s != next.LogFile {
				next.LogFile = s
				apply(key, true)
			}
		case "log_file_rotation":
			if s, ok := asString(value); ok && s != next.LogFileRotation {
				next.LogFileRotation = s
				apply(key, true)
			}
		case "log_file_rotation_count":
			if n, ok := asInt(value); ok && n != next.LogFileRotationCount {
				next.LogFileRotationCount = n
				apply(key, true)
			}
		case "syslog_facility":
			if s, ok := asString(value); ok && s != next.SyslogFacility {
				next.SyslogFacility = s
				apply(key, true)
			}
		case "debug":
			if b, ok := value.(bool); ok && b != next.Debug {
				next.Debug = b
				apply(key, true)
			}
		}
	}

	if len(changed) == 0 {
		return nil
	}

	st.ptr.Store(next)
	return changed
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
