package settings

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// Load reads the INI-style settings file at path (the `[canaryd]` section
// plus any `[plugin:<name>]` sections) layered over the built-in defaults,
// then applies the four recognized environment overrides exactly once. A
// missing file is not an error: Load returns the defaults plus env
// overrides, so the agent can still boot before its config is deployed.
func Load(path string) (*Settings, error) {
	s := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := loadFile(s, path); err != nil {
				return nil, fmt.Errorf("settings: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("settings: stat %s: %w", path, err)
		}
	}

	applyEnvOverrides(s)

	return s, nil
}

func loadFile(s *Settings, path string) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	if main := cfg.Section("canaryd"); main != nil {
		for _, key := range main.Keys() {
			applyKey(s, key.Name(), key.Value())
		}
	}

	for _, section := range cfg.Sections() {
		name := section.Name()
		if !strings.HasPrefix(name, "plugin:") {
			continue
		}
		pluginName := strings.TrimPrefix(name, "plugin:")
		sectionMap := make(map[string]string, len(section.Keys()))
		for _, key := range section.Keys() {
			sectionMap[key.Name()] = key.Value()
		}
		s.PluginSections[pluginName] = sectionMap
	}

	return nil
}

// applyKey assigns one `[canaryd]` key read from the INI file onto s. Keys
// this agent doesn't recognize are silently ignored rather than erroring,
// so an operator's config file can carry settings a newer or older agent
// version understands differently.
func applyKey(s *Settings, key, value string) {
	switch key {
	case "api_base":
		s.APIBaseURL = value
	case "api_version":
		if n, err := strconv.Atoi(value); err == nil {
			s.APIVer = n
		}
	case "api_key":
		s.APIKeyValue = value
	case "server_id":
		s.ServerIDVal = value
	case "collect_interval_s":
		if n, err := strconv.Atoi(value); err == nil {
			s.CollectIntervalS = n
		}
	case "slow_collect_interval_s":
		if n, err := strconv.Atoi(value); err == nil {
			s.SlowCollectIntervalS = n
		}
	case "log_file":
		s.LogFile = value
	case "log_file_rotation":
		s.LogFileRotation = value
	case "log_file_rotation_count":
		if n, err := strconv.Atoi(value); err == nil {
			s.LogFileRotationCount = n
		}
	case "syslog_facility":
		s.SyslogFacility = value
	case "debug":
		if b, err := strconv.ParseBool(value); err == nil {
			s.Debug = b
		}
	}
}

// applyEnvOverrides shadows the file-loaded values with API_BASE,
// API_VERSION, API_KEY, SERVER_ID if set. These are only ever read at
// startup, never again.
func applyEnvOverrides(s *Settings) {
	if v := os.Getenv("API_BASE"); v != "" {
		s.APIBaseURL = v
	}
	if v := os.Getenv("API_VERSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.APIVer = n
		}
	}
	if v := os.Getenv("API_KEY"); v != "" {
		s.APIKeyValue = v
	}
	if v := os.Getenv("SERVER_ID"); v != "" {
		s.ServerIDVal = v
	}
}
