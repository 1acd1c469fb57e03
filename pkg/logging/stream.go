package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// StreamLogger writes one line per entry to an io.Writer.
// Used for stderr logging and, through NewFileLogger, for log files.
type StreamLogger struct {
	out    *sink
	format Format
	level  Level
	fields Fields
}

// sink is shared between a logger and the loggers derived from it with WithFields
type sink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// NewStreamLogger creates a logger writing to w
func NewStreamLogger(w io.Writer, format Format, level Level) *StreamLogger {
	return &StreamLogger{
		out:    &sink{w: w},
		format: format,
		level:  level,
	}
}

// NewFileLogger creates a logger appending to the file at path.
// Parent directories are created as needed.
func NewFileLogger(path string, format Format, level Level) (*StreamLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := NewStreamLogger(file, format, level)
	l.out.closer = file
	return l, nil
}

// Debug logs a debug message
func (l *StreamLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.log(DebugLevel, msg, nil, fields)
}

// Info logs an info message
func (l *StreamLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.log(InfoLevel, msg, nil, fields)
}

// Warn logs a warning message
func (l *StreamLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.log(WarnLevel, msg, nil, fields)
}

// Error logs an error message
func (l *StreamLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	l.log(ErrorLevel, msg, err, fields)
}

// WithFields returns a logger that adds fields to every entry
func (l *StreamLogger) WithFields(fields Fields) Logger {
	return &StreamLogger{
		out:    l.out,
		format: l.format,
		level:  l.level,
		fields: merge(l.fields, fields),
	}
}

// Close closes the underlying file, if any
func (l *StreamLogger) Close() error {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if l.out.closer == nil {
		return nil
	}
	err := l.out.closer.Close()
	l.out.closer = nil
	return err
}

func (l *StreamLogger) log(level Level, msg string, err error, fields Fields) {
	if level < l.level {
		return
	}

	all := merge(l.fields, fields)
	var line []byte
	if l.format == FormatJSON {
		line = formatJSON(level, msg, err, all)
	} else {
		line = formatText(level, msg, err, all)
	}
	if line == nil {
		return
	}

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.w.Write(line)
}

func merge(a, b Fields) Fields {
	out := make(Fields, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func formatJSON(level Level, msg string, err error, fields Fields) []byte {
	entry := make(map[string]interface{}, len(fields)+4)
	for k, v := range fields {
		entry[k] = v
	}
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	entry["level"] = LevelString(level)
	entry["message"] = msg
	if err != nil {
		entry["error"] = err.Error()
	}

	data, jsonErr := json.Marshal(entry)
	if jsonErr != nil {
		return nil
	}
	return append(data, '\n')
}

// formatText renders "timestamp [LEVEL] message key=value ..." with keys sorted
func formatText(level Level, msg string, err error, fields Fields) []byte {
	var b strings.Builder
	b.WriteString(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	fmt.Fprintf(&b, " [%s] %s", LevelString(level), msg)
	if err != nil {
		fmt.Fprintf(&b, " error=%q", err.Error())
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	b.WriteByte('\n')
	return []byte(b.String())
}
