package tlog

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/steveiliop56/tinyprovider/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Logger struct {
	Audit zerolog.Logger
	HTTP  zerolog.Logger
	App   zerolog.Logger
}

var (
	Audit = zerolog.Nop()
	HTTP  = zerolog.Nop()
	App   = zerolog.Nop()
)

func NewLogger(cfg config.LogConfig) *Logger {
	return newLogger(cfg, os.Stderr)
}

func NewSimpleLogger() *Logger {
	return NewLogger(config.LogConfig{
		Level: "info",
		Json:  false,
		Streams: config.LogStreams{
			HTTP:  config.LogStreamConfig{Enabled: true},
			App:   config.LogStreamConfig{Enabled: true},
			Audit: config.LogStreamConfig{Enabled: false},
		},
	})
}

// NewWriterLogger writes JSON to w, tests use it to inspect log output.
func NewWriterLogger(cfg config.LogConfig, w io.Writer) *Logger {
	cfg.Json = true
	return newLogger(cfg, w)
}

func (l *Logger) Init() {
	Audit = l.Audit
	HTTP = l.HTTP
	App = l.App
}

func newLogger(cfg config.LogConfig, w io.Writer) *Logger {
	base := zerolog.New(w).With().
		Timestamp().
		Caller().
		Logger().
		Level(parseLogLevel(cfg.Level))

	if !cfg.Json {
		base = base.Output(zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		})
	}

	return &Logger{
		Audit: createLogger("audit", cfg.Streams.Audit, base),
		HTTP:  createLogger("http", cfg.Streams.HTTP, base),
		App:   createLogger("app", cfg.Streams.App, base),
	}
}

func createLogger(stream string, streamCfg config.LogStreamConfig, base zerolog.Logger) zerolog.Logger {
	if !streamCfg.Enabled {
		return zerolog.Nop()
	}
	sub := base.With().Str("log_stream", stream).Logger()
	if streamCfg.Level != "" {
		sub = sub.Level(parseLogLevel(streamCfg.Level))
	}
	return sub
}

func parseLogLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.Warn().Err(err).Str("level", level).Msg("Invalid log level, defaulting to info")
		return zerolog.InfoLevel
	}
	return parsed
}
