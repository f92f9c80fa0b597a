// Package agentlog builds the agent's structured logger: slog over either
// stdout, a rotating file (gopkg.in/natefinch/lumberjack.v2), or syslog,
// selected by the settings keys log_file, log_file_rotation_count,
// syslog_facility, and debug. The log_file_rotation setting is not
// consulted: rotation uses lumberjack's own size-based defaults.
package agentlog

import (
	"fmt"
	"io"
	"log/slog"
	"log/syslog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects where and how verbosely the agent logs. Populated from
// internal/settings.Settings.
type Config struct {
	// LogFile is a path to log to; empty means stdout.
	LogFile string
	// RotationCount is the number of rotated files lumberjack retains.
	// Ignored unless LogFile is set.
	RotationCount int
	// SyslogFacility, if non-empty, routes logs to syslog instead of
	// LogFile (e.g. "daemon", "local0"). Takes priority over LogFile.
	SyslogFacility string
	// Debug raises the level to slog.LevelDebug and adds source positions.
	Debug bool
}

// New builds a logger per cfg.
func New(cfg Config) (*slog.Logger, error) {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.Debug,
	}

	if cfg.SyslogFacility != "" {
		writer, err := syslogWriter(cfg.SyslogFacility)
		if err != nil {
			return nil, fmt.Errorf("agentlog: syslog: %w", err)
		}
		return slog.New(slog.NewJSONHandler(writer, opts)), nil
	}

	return slog.New(slog.NewJSONHandler(writerFor(cfg), opts)), nil
}

// writerFor resolves the log sink: stdout when no file is configured,
// otherwise a lumberjack-managed rotating file.
func writerFor(cfg Config) io.Writer {
	if cfg.LogFile == "" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxBackups: cfg.RotationCount,
		Compress:   true,
	}
}

// facilityCode maps the recognized syslog_facility settings values to their
// syslog.Priority facility bits. Unrecognized names fall back to LOG_DAEMON,
// the sensible default for a background agent.
func facilityCode(name string) syslog.Priority {
	switch name {
	case "daemon":
		return syslog.LOG_DAEMON
	case "local0":
		return syslog.LOG_LOCAL0
	case "local1":
		return syslog.LOG_LOCAL1
	case "local2":
		return syslog.LOG_LOCAL2
	case "local3":
		return syslog.LOG_LOCAL3
	case "local4":
		return syslog.LOG_LOCAL4
	case "local5":
		return syslog.LOG_LOCAL5
	case "local6":
		return syslog.LOG_LOCAL6
	case "local7":
		return syslog.LOG_LOCAL7
	case "user":
		return syslog.LOG_USER
	default:
		return syslog.LOG_DAEMON
	}
}

func syslogWriter(facility string) (io.Writer, error) {
	return syslog.New(facilityCode(facility)|syslog.LOG_INFO, "canaryd")
}
