package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a ZerologLogger writing to the configured outputs.
// APP_ENV=dev switches stdout to a human readable console format. All logs
// include the provided component field.
func NewZerologLogger(component string) Logger {
	mu.RLock()
	w, lvl, file := output, level, rotator
	mu.RUnlock()
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		if file != nil {
			w = zerolog.MultiLevelWriter(console, file)
		} else {
			w = console
		}
	}
	return NewWithWriter(w, component, lvl)
}

// NewWithWriter builds a logger on an explicit writer, mostly for tests.
func NewWithWriter(w io.Writer, component string, lvl zerolog.Level) Logger {
	z := zerolog.New(w).Level(lvl).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Warnw(msg string, fields map[string]any) {
	l.log.Warn().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
