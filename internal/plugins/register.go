package plugins

import "github.com/canaryhq/canary-agent/internal/plugin"

// Register installs every built-in plugin into r. Called once at process
// start from cmd/canaryd, so plugin membership is an explicit call list
// rather than a side effect of package initialization.
func Register(r *plugin.Registry) {
	r.Register(NewMeta())
	r.Register(NewServices())
}
