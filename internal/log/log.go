// Package log wraps zerolog behind a tiny leveled interface used by the pgbox
// commands for their own diagnostics. Container output never goes through
// here; it stays attached to the console untouched.
package log

import (
	"os"
	"runtime"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
)

var Logger = newLogger()

var logLevels = map[string]zerolog.Level{
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"fatal":    zerolog.FatalLevel,
	"disabled": zerolog.Disabled,
}

// SetLevel sets the global log level, backing up to info on unknown names.
func SetLevel(level string) {
	if l, exists := logLevels[strings.ToLower(level)]; exists {
		zerolog.SetGlobalLevel(l)
		return
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

type logger struct {
	zerolog zerolog.Logger
}

func newLogger() *logger {
	if runtime.GOOS == "windows" {
		out := zerolog.ConsoleWriter{Out: colorable.NewColorableStderr()}
		return &logger{zerolog: zerolog.New(out).With().Timestamp().Logger()}
	}

	out := zerolog.ConsoleWriter{Out: os.Stderr}

	return &logger{zerolog: zerolog.New(out).With().Timestamp().Logger()}
}

func (l *logger) Debug(format string, args ...interface{}) {
	l.zerolog.Debug().Msgf(format, args...)
}

func (l *logger) Info(format string, args ...interface{}) {
	l.zerolog.Info().Msgf(format, args...)
}

func (l *logger) Warn(format string, args ...interface{}) {
	l.zerolog.Warn().Msgf(format, args...)
}

func (l *logger) Error(format string, args ...interface{}) {
	l.zerolog.Error().Msgf(format, args...)
}

func (l *logger) Fatal(format string, args ...interface{}) {
	l.zerolog.Fatal().Msgf(format, args...)
}
