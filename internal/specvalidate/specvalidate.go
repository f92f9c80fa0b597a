// Package specvalidate checks a loaded Settings document for fatal-at-
// startup configuration failures (missing api_key/server_id, or a
// nonsensical cadence) before the Collection Loop is allowed to begin.
// Uses go-playground/validator/v10 to validate the config struct, rather
// than a hand-rolled if-chain.
package specvalidate

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Document is validator's view of the startup-critical subset of
// internal/settings.Settings. Kept separate from Settings itself so that
// package doesn't need struct tags for a concern only the CLI's startup
// path cares about, and specvalidate never needs to import settings.
type Document struct {
	APIBase              string `validate:"required,url"`
	APIKey                string `validate:"required"`
	ServerID              string `validate:"required"`
	CollectIntervalS      int    `validate:"required,gt=0"`
	SlowCollectIntervalS  int    `validate:"gtefield=CollectIntervalS"`
}

var validate = validator.New()

// Startup checks d against the invariants required before the loop can
// run. A failure here is fatal: the caller should log and exit rather
// than retry.
func Startup(d Document) error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid startup configuration: %w", err)
	}
	return nil
}
