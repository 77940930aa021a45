package log

import (
	"encoding/json"
	"time"
)

// Entry is one structured log record.
type Entry struct {
	Timestamp time.Time
	Level     Level
	Caller    string
	RequestID string
	RunID     string
	Message   string
	Fields    map[string]any
}

// NewEntry creates an entry stamped with the current time.
func NewEntry(level Level, msg string) *Entry {
	return &Entry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		Fields:    make(map[string]any),
	}
}

// With adds alternating key/value pairs to the entry.
func (e *Entry) With(keysAndValues ...any) *Entry {
	putPairs(e.Fields, keysAndValues)
	return e
}

// MarshalJSON flattens Fields into the root object. Errors are rendered
// as their message; empty correlation ids are omitted.
func (e Entry) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Fields)+6)

	for k, v := range e.Fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		m[k] = v
	}

	m["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339)
	m["level"] = e.Level.String()
	m["msg"] = e.Message
	if e.Caller != "" {
		m["caller"] = e.Caller
	}
	if e.RequestID != "" {
		m["request_id"] = e.RequestID
	}
	if e.RunID != "" {
		m["run_id"] = e.RunID
	}

	return json.Marshal(m)
}
