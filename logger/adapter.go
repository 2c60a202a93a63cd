package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// LogEventAdapter adapts zerolog events to the LogEvent interface and runs
// string and structured values through the sensitive-data filter.
type LogEventAdapter struct {
	event  *zerolog.Event
	filter *SensitiveDataFilter
}

func (lea *LogEventAdapter) next(e *zerolog.Event) LogEvent {
	return &LogEventAdapter{event: e, filter: lea.filter}
}

// Msg emits the entry.
func (lea *LogEventAdapter) Msg(msg string) {
	lea.event.Msg(msg)
}

// Msgf emits the entry with a formatted message.
func (lea *LogEventAdapter) Msgf(format string, args ...any) {
	lea.event.Msgf(format, args...)
}

func (lea *LogEventAdapter) Err(err error) LogEvent {
	return lea.next(lea.event.Err(err))
}

// Str adds a string field, masking it when the key is sensitive.
func (lea *LogEventAdapter) Str(key, value string) LogEvent {
	if lea.filter != nil {
		value = lea.filter.FilterString(key, value)
	}
	return lea.next(lea.event.Str(key, value))
}

func (lea *LogEventAdapter) Int(key string, value int) LogEvent {
	return lea.next(lea.event.Int(key, value))
}

func (lea *LogEventAdapter) Int64(key string, value int64) LogEvent {
	return lea.next(lea.event.Int64(key, value))
}

func (lea *LogEventAdapter) Uint64(key string, value uint64) LogEvent {
	return lea.next(lea.event.Uint64(key, value))
}

func (lea *LogEventAdapter) Bool(key string, value bool) LogEvent {
	return lea.next(lea.event.Bool(key, value))
}

func (lea *LogEventAdapter) Dur(key string, d time.Duration) LogEvent {
	return lea.next(lea.event.Dur(key, d))
}

// Interface adds an arbitrary value. Maps and header sets are filtered
// key by key.
func (lea *LogEventAdapter) Interface(key string, i any) LogEvent {
	if lea.filter != nil {
		i = lea.filter.FilterValue(key, i)
	}
	return lea.next(lea.event.Interface(key, i))
}

// Bytes adds a raw payload. Payloads are masked wholesale under sensitive
// keys, and JSON payloads are masked key by key otherwise.
func (lea *LogEventAdapter) Bytes(key string, val []byte) LogEvent {
	if lea.filter == nil {
		return lea.next(lea.event.Bytes(key, val))
	}
	if lea.filter.isSensitiveField(key) {
		return lea.next(lea.event.Str(key, lea.filter.config.MaskValue))
	}
	if masked, ok := lea.filter.FilterJSON(val); ok {
		val = masked
	}
	return lea.next(lea.event.Bytes(key, val))
}

func (l *ZeroLogger) Info() LogEvent {
	return &LogEventAdapter{event: l.zlog.Info(), filter: l.filter}
}

func (l *ZeroLogger) Error() LogEvent {
	return &LogEventAdapter{event: l.zlog.Error(), filter: l.filter}
}

func (l *ZeroLogger) Debug() LogEvent {
	return &LogEventAdapter{event: l.zlog.Debug(), filter: l.filter}
}

func (l *ZeroLogger) Warn() LogEvent {
	return &LogEventAdapter{event: l.zlog.Warn(), filter: l.filter}
}

func (l *ZeroLogger) Fatal() LogEvent {
	return &LogEventAdapter{event: l.zlog.Fatal(), filter: l.filter}
}
