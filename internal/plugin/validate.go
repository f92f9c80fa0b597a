package plugin

import (
	"fmt"
	"log/slog"
)

// ValidateSnapshot checks every item in snap against spec. Unknown spec
// keys (a field present in an item but absent from the spec) are an error;
// missing spec keys (a field declared in the spec but absent from an item)
// are a warning only, logged and otherwise ignored.
func ValidateSnapshot(logger *slog.Logger, pluginName string, spec Spec, snap Snapshot) error {
	if logger == nil {
		logger = slog.Default()
	}

	for key, item := range snap {
		if err := validateItem(spec, item); err != nil {
			return fmt.Errorf("plugin %s: item %s: %w", pluginName, key, err)
		}

		for field := range spec.Fields {
			if _, ok := item[field]; !ok {
				logger.Warn("item omits spec field",
					"plugin", pluginName,
					"key", key,
					"field", field,
				)
			}
		}
	}

	return nil
}

func validateItem(spec Spec, item Item) error {
	for field, value := range item {
		ft, ok := spec.Fields[field]
		if !ok {
			return fmt.Errorf("unknown spec key %q", field)
		}

		if err := checkValue(ft, value); err != nil {
			return fmt.Errorf("field %q: %w", field, err)
		}
	}

	return nil
}
