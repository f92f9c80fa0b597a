// Package plugins holds the agent's built-in probes, registered once at
// process start via Register. Each shells out and parses the command's
// output, with every subprocess bound to the collection context so it is
// killed along with the rest of a timed-out tick.
package plugins

import (
	"context"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/canaryhq/canary-agent/internal/plugin"
)

var uptimeRegex = regexp.MustCompile(
	`up\s+(.*?),\s+[0-9]+\s+users?,\s+load averages?:\s+([0-9]+\.[0-9][0-9]),?\s+([0-9]+\.[0-9][0-9]),?\s+([0-9]+\.[0-9][0-9])`,
)

// Meta reports basic host identity and uptime: hostname, kernel, arch, and
// when the host last booted.
type Meta struct {
	plugin.BasePlugin
}

// NewMeta constructs the Meta plugin.
func NewMeta() *Meta { return &Meta{} }

func (m *Meta) Name() string { return "meta" }

func (m *Meta) Spec() plugin.Spec {
	return plugin.Spec{
		KeyField: "key",
		Fields: map[string]plugin.FieldType{
			"value": plugin.Any(),
		},
	}
}

func (m *Meta) DiffUpdates() bool { return true }
func (m *Meta) IsSlow() bool      { return false }
func (m *Meta) EmitsEvents() bool { return false }

func (m *Meta) Prepare(ctx context.Context, settings plugin.SettingsView) error {
	return nil
}

func (m *Meta) Collect(ctx context.Context, settings plugin.SettingsView) (plugin.Snapshot, error) {
	snap := plugin.Snapshot{}

	hostname, err := os.Hostname()
	if err == nil {
		snap["hostname"] = plugin.Item{"value": hostname}
	}

	if kernel, err := unameField(ctx, "-s"); err == nil {
		snap["kernel"] = plugin.Item{"value": kernel}
	}
	if release, err := unameField(ctx, "-r"); err == nil {
		snap["kernel_release"] = plugin.Item{"value": release}
	}
	if arch, err := unameField(ctx, "-m"); err == nil {
		snap["arch"] = plugin.Item{"value": arch}
	}

	if upSince, ok := getUpSince(ctx); ok {
		snap["up_since"] = plugin.Item{"value": upSince.Format("2006-01-02T15:04:05")}
	}

	return snap, nil
}

// ShouldApplyChange suppresses spurious up_since jitter: a reboot is only
// real if the new up_since is meaningfully later than the old one by more
// than a minute.
func (m *Meta) ShouldApplyChange(change plugin.Change) bool {
	if change.Key != "up_since" {
		return true
	}

	fd, ok := change.Data["value"]
	if !ok {
		return true
	}

	oldStr, _ := fd.Old.(string)
	newStr, _ := fd.New.(string)
	oldT, errOld := time.Parse("2006-01-02T15:04:05", oldStr)
	newT, errNew := time.Parse("2006-01-02T15:04:05", newStr)
	if errOld != nil || errNew != nil {
		return true
	}

	return oldT.Add(time.Minute).Before(newT)
}

func unameField(ctx context.Context, flag string) (string, error) {
	out, err := exec.CommandContext(ctx, "uname", flag).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func getUpSince(ctx context.Context) (time.Time, bool) {
	out, err := exec.CommandContext(ctx, "uptime").Output()
	if err != nil {
		return time.Time{}, false
	}

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		matches := uptimeRegex.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		duration := matches[1]
		var days, hours, mins int

		if strings.Contains(duration, "day") {
			if d := regexp.MustCompile(`([0-9]+)\s+day`).FindStringSubmatch(duration); d != nil {
				days, _ = strconv.Atoi(d[1])
			}
		}
		if strings.Contains(duration, ":") {
			if d := regexp.MustCompile(`([0-9]+):([0-9]+)`).FindStringSubmatch(duration); d != nil {
				hours, _ = strconv.Atoi(d[1])
				mins, _ = strconv.Atoi(d[2])
			}
		}
		if strings.Contains(duration, "min") {
			if d := regexp.MustCompile(`([0-9]+)\s+min`).FindStringSubmatch(duration); d != nil {
				mins, _ = strconv.Atoi(d[1])
			}
		}

		upSince := time.Now().UTC().Add(-time.Duration(days)*24*time.Hour - time.Duration(hours)*time.Hour - time.Duration(mins)*time.Minute)
		return upSince.Truncate(time.Minute), true
	}

	return time.Time{}, false
}
