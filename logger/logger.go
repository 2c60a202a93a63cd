package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ZeroLogger wraps zerolog.Logger to implement the Logger interface.
type ZeroLogger struct {
	zlog   *zerolog.Logger
	filter *SensitiveDataFilter
}

var _ Logger = (*ZeroLogger)(nil)

var callerMarshalOnce sync.Once

// New creates a logger writing to stdout. If pretty is true the output is a
// human-readable console format, otherwise JSON lines.
func New(level string, pretty bool) *ZeroLogger {
	return NewWithWriter(os.Stdout, level, pretty, nil)
}

// NewWithFilter creates a stdout logger with a custom sensitive-field filter.
func NewWithFilter(level string, pretty bool, filterConfig *FilterConfig) *ZeroLogger {
	return NewWithWriter(os.Stdout, level, pretty, filterConfig)
}

// NewWithWriter creates a logger writing to out. A nil filterConfig selects
// DefaultFilterConfig. Unknown levels fall back to info.
func NewWithWriter(out io.Writer, level string, pretty bool, filterConfig *FilterConfig) *ZeroLogger {
	callerMarshalOnce.Do(func() {
		zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
			base := filepath.Base(file)
			parent := filepath.Base(filepath.Dir(file))
			if parent != "." && parent != "" {
				return parent + "/" + base + ":" + strconv.Itoa(line)
			}
			return base + ":" + strconv.Itoa(line)
		}
	})

	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	l := zerolog.New(out).With().Timestamp().CallerWithSkipFrameCount(3).Logger()

	zLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		zLevel = zerolog.InfoLevel
	}
	l = l.Level(zLevel)

	return &ZeroLogger{zlog: &l, filter: NewSensitiveDataFilter(filterConfig)}
}

// Nop returns a logger that discards everything. Used as the default when a
// component is built without a logger.
func Nop() *ZeroLogger {
	l := zerolog.Nop()
	return &ZeroLogger{zlog: &l, filter: NewSensitiveDataFilter(nil)}
}

// Level reports the configured minimum level.
func (l *ZeroLogger) Level() zerolog.Level {
	return l.zlog.GetLevel()
}

// WithContext returns the logger stored in ctx by zerolog, if any, keeping
// this logger's filter. Non-context values return l unchanged.
func (l *ZeroLogger) WithContext(ctx any) Logger {
	if c, ok := ctx.(context.Context); ok {
		zl := zerolog.Ctx(c)
		if zl == nil || zl.GetLevel() == zerolog.Disabled {
			return l
		}
		return &ZeroLogger{zlog: zl, filter: l.filter}
	}
	return l
}

// WithFields returns a child logger carrying fields on every entry.
// Sensitive keys are masked before they are attached.
func (l *ZeroLogger) WithFields(fields map[string]any) Logger {
	if l.filter != nil {
		fields = l.filter.FilterFields(fields)
	}
	child := l.zlog.With().Fields(fields).Logger()
	return &ZeroLogger{zlog: &child, filter: l.filter}
}
