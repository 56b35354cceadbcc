package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var root zerolog.Logger

func init() {
	Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), os.Stderr)
}

// Init (re)configures the root logger. Unknown levels fall back to info and
// any format other than "json" prints human readable console lines.
func Init(level, format string, w io.Writer) {
	var out io.Writer = w
	if strings.ToLower(strings.TrimSpace(format)) != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	root = zerolog.New(out).Level(parseLevel(level)).With().Timestamp().Logger()
}

func parseLevel(lvl string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(lvl)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO", "":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return root.With().Str("component", name).Logger()
}

func Debug(format string, args ...interface{}) {
	root.Debug().Msgf(format, args...)
}

func Info(format string, args ...interface{}) {
	root.Info().Msgf(format, args...)
}

func Warn(format string, args ...interface{}) {
	root.Warn().Msgf(format, args...)
}

func Error(format string, args ...interface{}) {
	root.Error().Msgf(format, args...)
}
