package plugin

import "context"

// Item is a mapping from field name to value, matching a plugin's Spec.
// Items have no identity of their own; the identity is the Snapshot key.
type Item map[string]interface{}

// Snapshot is a mapping from item key to Item, produced by one plugin
// invocation.
type Snapshot map[string]Item

// ErrorRecord is captured when a plugin's Collect raises or panics, so the
// server can surface the failure as a warning.
type ErrorRecord struct {
	ClassName string `json:"class_name"`
	Message   string `json:"message"`
	Traceback string `json:"traceback"`
}

// PrepareFailure is returned by Prepare when a plugin's dependency isn't
// available yet (missing binary, unreadable file, ...). It is non-fatal:
// the plugin is silently excluded from the tick.
type PrepareFailure struct {
	Reason string
}

func (f *PrepareFailure) Error() string { return f.Reason }

// Change mirrors diff.Change but plugins only ever receive it as opaque
// pass-through data for the two server-side hook methods below; the core
// never interprets the return values of ShouldApplyChange/ActionForChange.
type Change struct {
	Kind string
	Key  string
	Data map[string]FieldDiff
}

// FieldDiff is the (old, new) pair for one changed field.
type FieldDiff struct {
	Old interface{}
	New interface{}
}

// SettingsView is the read-only slice of Settings a Plugin needs: its own
// [plugin:<name>] section. Implemented by internal/settings.Settings.
type SettingsView interface {
	PluginSettings(name string) map[string]string
}

// Plugin is a named probe observing one host concern. Implementations are
// registered once at process start via Registry.Register and never
// recreated; the four operations below are called by the core each tick.
type Plugin interface {
	// Name is the plugin's stable snake_case identifier.
	Name() string

	// Spec declares each item field's value type.
	Spec() Spec

	// DiffUpdates reports whether updated items should ship only the
	// changed fields (true) or the full item every time (false).
	DiffUpdates() bool

	// IsSlow reports whether this plugin should run on the slow cadence
	// rather than every tick.
	IsSlow() bool

	// EmitsEvents reports whether this plugin may produce an
	// out-of-band EVENTS payload alongside its regular SYNC/DIFF/ERROR
	// payload on a given tick.
	EmitsEvents() bool

	// Prepare is a cheap readiness check run every tick before Collect.
	// A non-nil *PrepareFailure excludes the plugin from this tick only.
	Prepare(ctx context.Context, settings SettingsView) error

	// Collect performs the (possibly expensive) state collection. May
	// return an error; panics are converted to ErrorRecord by the
	// isolated runner and never escape this call's caller.
	Collect(ctx context.Context, settings SettingsView) (Snapshot, error)

	// ShouldApplyChange and ActionForChange are opaque server-side hooks;
	// the core never executes them, it only threads their existence
	// through so an implementation may attach them to outgoing Change
	// records if desired. The zero-value implementations below (see
	// BasePlugin) are sufficient for plugins with no per-change hints.
	ShouldApplyChange(change Change) bool
	ActionForChange(change Change) (action string, ok bool)

	// PendingEvents drains and returns any out-of-band events collected
	// since the last call, or nil if there are none. Called once per
	// tick regardless of the tick's collection outcome.
	PendingEvents() []Event
}

// Event is a single out-of-band occurrence a plugin wants to ship as an
// EVENTS payload entry (e.g. a line matched while tailing a log).
type Event struct {
	Type        string
	Description string
	Data        map[string]interface{}
}

// BasePlugin implements the two server-side hooks and PendingEvents as
// no-ops; concrete plugins embed it and override only what they need.
type BasePlugin struct{}

// ShouldApplyChange defaults to true: the core passes every change through,
// the server decides whether to act on it.
func (BasePlugin) ShouldApplyChange(Change) bool { return true }

// ActionForChange defaults to "no hint attached".
func (BasePlugin) ActionForChange(Change) (string, bool) { return "", false }

// PendingEvents defaults to "no out-of-band events".
func (BasePlugin) PendingEvents() []Event { return nil }
