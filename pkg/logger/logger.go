package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stock-monitor/server/internal/core"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
}

type LoggerOpts struct {
	Environment core.Environment
	// Level overrides the environment's default level when set (e.g. "warn").
	Level string
	// Output defaults to stdout.
	Output io.Writer
}

func safe(opts ...LoggerOpts) *LoggerOpts {
	if len(opts) == 0 {
		return DefaultLoggerOpts
	}
	return &opts[0]
}

// New builds a logger for the given options. Outside production it writes
// human readable console lines with caller information.
func New(opts ...LoggerOpts) zerolog.Logger {
	o := safe(opts...)
	out := o.Output
	if out == nil {
		out = os.Stdout
	}

	var logger zerolog.Logger
	if o.Environment.IsProduction() {
		logger = zerolog.New(out).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Caller().Logger()
		if o.Environment.Verbose() {
			logger = logger.Level(zerolog.DebugLevel)
		} else {
			logger = logger.Level(zerolog.InfoLevel)
		}
	}

	if o.Level != "" {
		if lvl, err := zerolog.ParseLevel(o.Level); err == nil {
			logger = logger.Level(lvl)
		}
	}
	return logger
}

// Init builds a logger and installs it as the process-wide default, which
// third-party code and main use. Components receive the returned logger.
func Init(opts ...LoggerOpts) zerolog.Logger {
	logger := New(opts...)
	log.Logger = logger
	return logger
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
