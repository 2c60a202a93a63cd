// Package logger defines the structured logging contract used across carekit
// and its zerolog-backed implementation.
package logger

import "time"

// Logger creates leveled log events. Implementations must be safe for
// concurrent use since one instance is shared by the HTTP client, the retry
// executor and the session stores.
type Logger interface {
	Info() LogEvent
	Error() LogEvent
	Debug() LogEvent
	Warn() LogEvent
	Fatal() LogEvent
	WithContext(ctx any) Logger
	WithFields(fields map[string]any) Logger
}

// LogEvent is a single log entry under construction. Fields are added with
// the typed setters and the entry is emitted by Msg or Msgf.
type LogEvent interface {
	Msg(msg string)
	Msgf(format string, args ...any)
	Err(err error) LogEvent
	Str(key, value string) LogEvent
	Int(key string, value int) LogEvent
	Int64(key string, value int64) LogEvent
	Uint64(key string, value uint64) LogEvent
	Bool(key string, value bool) LogEvent
	Dur(key string, d time.Duration) LogEvent
	Interface(key string, i any) LogEvent
	Bytes(key string, val []byte) LogEvent
}
