package telemetry

import (
	"context"

	"goa.design/clue/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// RotatingLogPath configures where NewContext writes logs when path is
// non-empty: a size-capped, rotated file rather than stdout/stderr, the
// same lumberjack-backed policy the HAYRIDE_LOG environment variable
// selects for long-running embedders (servers, background silos) that
// would otherwise grow an unbounded log file.
type RotatingLogPath struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewContext builds the context.Context every Logger/Tracer in this package
// reads its formatting and debug settings from, wiring in a rotating file
// writer when logPath.Path is set and falling back to clue's terminal/JSON
// detection otherwise.
func NewContext(ctx context.Context, debug bool, logPath RotatingLogPath) context.Context {
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}

	ctx = log.Context(ctx, log.WithFormat(format))
	if logPath.Path != "" {
		ctx = log.Context(ctx, log.WithOutput(&lumberjack.Logger{
			Filename:   logPath.Path,
			MaxSize:    orDefault(logPath.MaxSizeMB, 100),
			MaxBackups: orDefault(logPath.MaxBackups, 3),
			MaxAge:     orDefault(logPath.MaxAgeDays, 28),
		}))
	}
	if debug {
		ctx = log.Context(ctx, log.WithDebug())
	}
	return ctx
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
