package logger

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// TestLogger captures every log entry so tests can assert on emitted events
type TestLogger struct {
	*scoped
}

// LogMessage represents a captured log message
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Error   error
}

type sink struct {
	mu       sync.Mutex
	messages []LogMessage
	buffer   bytes.Buffer
}

// scoped carries the fields and error attached through WithField/WithError
type scoped struct {
	sink   *sink
	fields map[string]interface{}
	err    error
}

// NewTestLogger creates a new test logger
func NewTestLogger() *TestLogger {
	return &TestLogger{scoped: &scoped{sink: &sink{}}}
}

func (s *scoped) log(level, msg string, extra map[string]interface{}) {
	fields := s.merge(extra)

	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()

	s.sink.messages = append(s.sink.messages, LogMessage{
		Level:   level,
		Message: msg,
		Fields:  fields,
		Error:   s.err,
	})

	fmt.Fprintf(&s.sink.buffer, "[%s] %s", level, msg)
	if len(fields) > 0 {
		fmt.Fprintf(&s.sink.buffer, " fields=%v", fields)
	}
	if s.err != nil {
		fmt.Fprintf(&s.sink.buffer, " error=%v", s.err)
	}
	s.sink.buffer.WriteByte('\n')
}

func (s *scoped) merge(extra map[string]interface{}) map[string]interface{} {
	if len(s.fields) == 0 && len(extra) == 0 {
		return nil
	}
	merged := make(map[string]interface{}, len(s.fields)+len(extra))
	for k, v := range s.fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func (s *scoped) Debug(msg string) { s.log("DEBUG", msg, nil) }
func (s *scoped) Info(msg string)  { s.log("INFO", msg, nil) }
func (s *scoped) Warn(msg string)  { s.log("WARN", msg, nil) }
func (s *scoped) Error(msg string) { s.log("ERROR", msg, nil) }
func (s *scoped) Fatal(msg string) { s.log("FATAL", msg, nil) }

func (s *scoped) DebugWithFields(msg string, f map[string]interface{}) { s.log("DEBUG", msg, f) }
func (s *scoped) InfoWithFields(msg string, f map[string]interface{})  { s.log("INFO", msg, f) }
func (s *scoped) WarnWithFields(msg string, f map[string]interface{})  { s.log("WARN", msg, f) }
func (s *scoped) ErrorWithFields(msg string, f map[string]interface{}) { s.log("ERROR", msg, f) }
func (s *scoped) FatalWithFields(msg string, f map[string]interface{}) { s.log("FATAL", msg, f) }

func (s *scoped) WithField(key string, value interface{}) Logger {
	return s.WithFields(map[string]interface{}{key: value})
}

func (s *scoped) WithFields(fields map[string]interface{}) Logger {
	return &scoped{sink: s.sink, fields: s.merge(fields), err: s.err}
}

func (s *scoped) WithError(err error) Logger {
	return &scoped{sink: s.sink, fields: s.fields, err: err}
}

func (s *scoped) WithContext(ctx context.Context) Logger {
	return s
}

func (s *scoped) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// GetMessages returns all captured log messages
func (l *TestLogger) GetMessages() []LogMessage {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	messages := make([]LogMessage, len(l.sink.messages))
	copy(messages, l.sink.messages)
	return messages
}

// GetMessagesByLevel returns all messages of a specific level
func (l *TestLogger) GetMessagesByLevel(level string) []LogMessage {
	var filtered []LogMessage
	for _, msg := range l.GetMessages() {
		if msg.Level == level {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

// HasMessage checks if a message with the given text was logged
func (l *TestLogger) HasMessage(text string) bool {
	_, ok := l.FindMessage(text)
	return ok
}

// FindMessage returns the first entry with exactly this message
func (l *TestLogger) FindMessage(text string) (LogMessage, bool) {
	for _, msg := range l.GetMessages() {
		if msg.Message == text {
			return msg, true
		}
	}
	return LogMessage{}, false
}

// HasMessageContaining checks for a message containing the substring
func (l *TestLogger) HasMessageContaining(sub string) bool {
	for _, msg := range l.GetMessages() {
		if strings.Contains(msg.Message, sub) {
			return true
		}
	}
	return false
}

// HasError checks if an error was logged
func (l *TestLogger) HasError() bool {
	return len(l.GetMessagesByLevel("ERROR")) > 0
}

// Clear clears all captured messages
func (l *TestLogger) Clear() {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	l.sink.messages = l.sink.messages[:0]
	l.sink.buffer.Reset()
}

// String returns all log messages as a string
func (l *TestLogger) String() string {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	return l.sink.buffer.String()
}
