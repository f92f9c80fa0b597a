package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadPluginOverridesYAML merges a YAML-formatted per-plugin settings
// document into s, on top of whatever `[plugin:<name>]` INI sections Load
// already populated. This is a supplement to the INI file (not a
// replacement for it): operators who prefer structured nesting for
// per-plugin settings can maintain one alongside canaryd.conf. A missing
// file is not an error, matching Load's own "no file yet" tolerance.
//
// Expected shape:
//
//	services:
//	  ignore: "cron,ssh"
//	hardware:
//	  poll_interval_s: "3600"
func LoadPluginOverridesYAML(s *Settings, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("settings: read %s: %w", path, err)
	}

	var doc map[string]map[string]string
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("settings: parse %s: %w", path, err)
	}

	for pluginName, overrides := range doc {
		section, ok := s.PluginSections[pluginName]
		if !ok {
			section = map[string]string{}
		}
		for k, v := range overrides {
			section[k] = v
		}
		s.PluginSections[pluginName] = section
	}

	return nil
}
