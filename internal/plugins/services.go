package plugins

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/canaryhq/canary-agent/internal/plugin"
)

// Services reports the merged view of systemd-managed services: running
// state and enabled state, narrowed to the one init system a container or
// modern Linux host actually runs. The spec declares a pid field, but
// Collect does not populate it.
type Services struct {
	plugin.BasePlugin
}

// NewServices constructs the Services plugin.
func NewServices() *Services { return &Services{} }

func (s *Services) Name() string { return "services" }

func (s *Services) Spec() plugin.Spec {
	return plugin.Spec{
		KeyField: "service",
		Fields: map[string]plugin.FieldType{
			"running":     plugin.Primitive(plugin.KindBool),
			"pid":         plugin.Primitive(plugin.KindInt),
			"enabled":     plugin.Primitive(plugin.KindBool),
			"init_system": plugin.Primitive(plugin.KindText),
		},
	}
}

func (s *Services) DiffUpdates() bool { return true }
func (s *Services) IsSlow() bool      { return false }
func (s *Services) EmitsEvents() bool { return false }

// Prepare excludes this plugin from hosts with no systemctl, since there is
// nothing meaningful to collect without it.
func (s *Services) Prepare(ctx context.Context, settings plugin.SettingsView) error {
	if _, err := exec.LookPath("systemctl"); err != nil {
		return &plugin.PrepareFailure{Reason: "systemctl not found"}
	}
	return nil
}

func (s *Services) Collect(ctx context.Context, settings plugin.SettingsView) (plugin.Snapshot, error) {
	unitStates, err := listUnits(ctx)
	if err != nil {
		return nil, fmt.Errorf("list systemd units: %w", err)
	}

	snap := plugin.Snapshot{}
	for name, running := range unitStates {
		enabled, _ := isEnabled(ctx, name)
		snap[name] = plugin.Item{
			"running":     running,
			"enabled":     enabled,
			"init_system": "systemd",
		}
	}

	return snap, nil
}

func listUnits(ctx context.Context) (map[string]bool, error) {
	out, err := exec.CommandContext(ctx, "systemctl", "list-units", "--type=service", "--all", "--no-legend", "--no-pager").Output()
	if err != nil {
		return nil, err
	}

	units := map[string]bool{}
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		name := strings.TrimSuffix(fields[0], ".service")
		active := fields[2]
		units[name] = active == "active"
	}

	return units, nil
}

func isEnabled(ctx context.Context, name string) (bool, error) {
	out, err := exec.CommandContext(ctx, "systemctl", "is-enabled", name+".service").Output()
	if err != nil {
		return false, nil
	}
	return strings.TrimSpace(string(out)) == "enabled", nil
}
