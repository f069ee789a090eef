package logger

import (
	"io"
	"log/slog"
)

type Backend string

const (
	BackendStd Backend = "std" // text handler, used in dev
	BackendZap Backend = "zap" // JSON through slog-zap, used in stage/prod
)

type Config struct {
	Service    string
	Version    string
	InstanceID string

	Level   slog.Level
	Env     Env
	Backend Backend // default: std for dev, zap otherwise
	Debug   bool

	// Output defaults to os.Stdout.
	Output io.Writer

	// Zap sampling per second
	SampleInitial    int
	SampleThereafter int

	AddSource bool
}

// effectiveLevel lets Debug lower the level only when no explicit level was set.
func (c Config) effectiveLevel() slog.Level {
	if c.Debug && c.Level == 0 {
		return slog.LevelDebug
	}
	return c.Level
}
