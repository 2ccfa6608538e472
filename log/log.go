// Package log is the process-wide structured logger of the ballot box, a thin
// wrapper around zerolog that every other package logs through.
package log

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"path"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	// RFC3339Milli is time.RFC3339 with three fixed-width decimals.
	RFC3339Milli = "2006-01-02T15:04:05.000Z07:00"
)

var (
	logger   zerolog.Logger
	loggerMu sync.RWMutex
)

func init() {
	// $LOG_LEVEL lets tests and tools raise verbosity without code changes.
	Init(cmp.Or(os.Getenv("LOG_LEVEL"), LogLevelError), "stderr", nil)
}

// Logger returns a copy of the global logger.
func Logger() *zerolog.Logger {
	l := current()
	return &l
}

func current() zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

func replace(l zerolog.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// levelFilter forwards only warnings and errors to the wrapped writer.
type levelFilter struct {
	io.Writer
}

var _ zerolog.LevelWriter = (*levelFilter)(nil)

func (f *levelFilter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.WarnLevel {
		return len(p), nil
	}
	return f.Writer.Write(p)
}

func parseLevel(level string) (zerolog.Level, error) {
	switch level {
	case LogLevelDebug:
		return zerolog.DebugLevel, nil
	case LogLevelInfo:
		return zerolog.InfoLevel, nil
	case LogLevelWarn:
		return zerolog.WarnLevel, nil
	case LogLevelError:
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("invalid log level: %q", level)
}

// Init (re)configures the global logger. Output is "stdout", "stderr" or a
// file path; a path ending in ".json" receives JSON lines while the console
// keeps the human readable format. If errorOutput is not nil, warnings and
// errors are also copied there without colors.
func Init(level, output string, errorOutput io.Writer) {
	InitWithWriter(level, output, nil, errorOutput)
}

// InitWithWriter is Init with an explicit console writer, used when output is
// empty. Tests use it to capture log lines.
func InitWithWriter(level, output string, console io.Writer, errorOutput io.Writer) {
	lvl, err := parseLevel(level)
	if err != nil {
		panic(err.Error())
	}

	var writers []io.Writer
	out := console
	switch output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case "":
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			panic(fmt.Sprintf("cannot open log output %s: %v", output, err))
		}
		out = f
		if strings.HasSuffix(output, ".json") {
			writers = append(writers, f)
			out = os.Stdout
		}
	}
	if out == nil {
		out = os.Stderr
	}
	writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: RFC3339Milli})
	if errorOutput != nil {
		writers = append(writers, &levelFilter{zerolog.ConsoleWriter{
			Out:        errorOutput,
			TimeFormat: RFC3339Milli,
			NoColor:    true,
		}})
	}

	var w io.Writer = writers[0]
	if len(writers) > 1 {
		w = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	// skip the frames of this wrapper so the caller is the real call site
	zerolog.CallerSkipFrameCount = 3
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		return fmt.Sprintf("%s/%s:%d", path.Base(path.Dir(file)), path.Base(file), line)
	}

	l := zerolog.New(w).With().Timestamp().Caller().Logger().Level(lvl)
	replace(l)
	l.Debug().Msgf("logger ready, level %s, output %q", level, output)
}

// Level returns the name of the current log level.
func Level() string {
	switch l := current().GetLevel(); l {
	case zerolog.DebugLevel:
		return LogLevelDebug
	case zerolog.InfoLevel:
		return LogLevelInfo
	case zerolog.WarnLevel:
		return LogLevelWarn
	case zerolog.ErrorLevel:
		return LogLevelError
	default:
		panic(fmt.Sprintf("invalid log level: %q", l))
	}
}

// errorHook calls its handler once for the first error level entry.
type errorHook struct {
	once    sync.Once
	handler func(msg string)
}

func (h *errorHook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	if level >= zerolog.ErrorLevel {
		h.once.Do(func() { h.handler(msg) })
	}
}

// OnError installs a hook that calls handler on the first error level entry
// and returns the previous logger, to be passed to Restore. Integration tests
// use it to fail on unexpected errors.
func OnError(handler func(msg string)) zerolog.Logger {
	prev := current()
	replace(prev.Hook(&errorHook{handler: handler}))
	return prev
}

// Restore sets a logger previously returned by OnError.
func Restore(prev zerolog.Logger) {
	replace(prev)
}

func Debug(args ...any) {
	l := current()
	if l.GetLevel() > zerolog.DebugLevel {
		return
	}
	l.Debug().Msg(fmt.Sprint(args...))
}

func Info(args ...any) {
	l := current()
	l.Info().Msg(fmt.Sprint(args...))
}

func Warn(args ...any) {
	l := current()
	l.Warn().Msg(fmt.Sprint(args...))
}

func Error(args ...any) {
	l := current()
	l.Error().Msg(fmt.Sprint(args...))
}

// Fatal logs with the stack trace attached and exits the process.
func Fatal(args ...any) {
	l := current()
	l.Fatal().Msg(fmt.Sprint(args...) + "\n" + string(debug.Stack()))
	panic("unreachable")
}

func Debugf(template string, args ...any) {
	Logger().Debug().Msgf(template, args...)
}

func Infof(template string, args ...any) {
	Logger().Info().Msgf(template, args...)
}

func Warnf(template string, args ...any) {
	Logger().Warn().Msgf(template, args...)
}

func Errorf(template string, args ...any) {
	Logger().Error().Msgf(template, args...)
}

func Fatalf(template string, args ...any) {
	Logger().Fatal().Msgf(template+"\n"+string(debug.Stack()), args...)
}

// Debugw logs msg with key-value pairs.
func Debugw(msg string, keyvalues ...any) {
	Logger().Debug().Fields(keyvalues).Msg(msg)
}

// Infow logs msg with key-value pairs.
func Infow(msg string, keyvalues ...any) {
	Logger().Info().Fields(keyvalues).Msg(msg)
}

// Warnw logs msg with key-value pairs.
func Warnw(msg string, keyvalues ...any) {
	Logger().Warn().Fields(keyvalues).Msg(msg)
}

// Errorw logs msg with err attached.
func Errorw(err error, msg string) {
	Logger().Error().Err(err).Msg(msg)
}

// Monitor logs a structured snapshot of counters at info level, without
// caller information.
func Monitor(msg string, fields map[string]any) {
	l := current()
	l.Info().CallerSkipFrame(100).Fields(fields).Time("at", time.Now()).Msg(msg)
}
