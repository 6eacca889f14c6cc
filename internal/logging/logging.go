package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel   = "FRAMER_LOG_LEVEL"
	EnvLogNoColor = "FRAMER_LOG_NOCOLOR"
)

// Init configures the global zerolog logger for a binary. Output goes to
// stderr so stdout stays free for reports.
func Init(app string) zerolog.Logger {
	return New(os.Stderr, app)
}

// New builds a console logger writing to w, applying env overrides.
func New(w io.Writer, app string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		output.NoColor = v
	}

	level := zerolog.InfoLevel
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		level = lvl
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// Adapter exposes a zerolog.Logger through the framer.Logger method set.
type Adapter struct {
	L zerolog.Logger
}

func (a Adapter) Debug(msg string, args ...any) { emit(a.L.Debug(), msg, args) }
func (a Adapter) Info(msg string, args ...any)  { emit(a.L.Info(), msg, args) }
func (a Adapter) Warn(msg string, args ...any)  { emit(a.L.Warn(), msg, args) }
func (a Adapter) Error(msg string, args ...any) { emit(a.L.Error(), msg, args) }

// emit attaches alternating key/value args to e. A trailing key without a
// value is logged under "!BADKEY", as slog does.
func emit(e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			e = e.Interface("!BADKEY", args[i])
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		switch v := args[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
		case fmt.Stringer:
			e = e.Stringer(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}
