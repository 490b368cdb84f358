package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Event type markers. Anything the reporting SDK sends without a type is
// stored as "incoming"; the remaining values are written by the collector
// itself when a policy check fires or a diagnostic record arrives.
const (
	EventTypeIncoming      = "incoming"
	EventTypeConsole       = "console"
	EventTypeServerStarted = "Server Started"
	EventTypeTracking      = "Tracking"
	EventTypeAPIDisabled   = "api-disabled"
	EventTypeSchedule      = "Schedule1"
	EventTypeLimiter       = "Limiter"
)

// ConsoleLog is one console line captured by the reporting SDK during a request.
type ConsoleLog struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ExternalCall is one outbound backend call observed during a request.
type ExternalCall struct {
	Method     string      `json:"method"`
	URL        string      `json:"url"`
	Status     int         `json:"status"`
	DurationMs int64       `json:"durationMs"`
	Response   interface{} `json:"response,omitempty"`
	Error      string      `json:"error,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Event is one durable record of a reported request, or a synthetic record
// written by the policy gate. Events are immutable once written.
type Event struct {
	ID            string        `json:"id" db:"id"`
	APIKey        string        `json:"apiKey" db:"api_key"`
	Type          string        `json:"type" db:"type"`
	Method        string        `json:"method,omitempty" db:"method"`
	Path          string        `json:"path,omitempty" db:"path"`
	Status        int           `json:"status,omitempty" db:"status"`
	DurationMs    int64         `json:"durationMs,omitempty" db:"duration_ms"`
	Message       string        `json:"message,omitempty" db:"message"`
	Response      JSONValue     `json:"response,omitzero" db:"response"`
	ConsoleLogs   ConsoleLogs   `json:"consoleLogs,omitempty" db:"console_logs"`
	ExternalCalls ExternalCalls `json:"externalCalls,omitempty" db:"external_calls"`
	Timestamp     time.Time     `json:"timestamp" db:"timestamp"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
}

// JSONValue carries an arbitrary response payload through a JSONB column.
type JSONValue struct {
	V interface{}
}

// IsZero reports whether the wrapped value is absent, so that
// empty payloads are dropped from JSON output via omitzero.
func (j JSONValue) IsZero() bool {
	return j.V == nil
}

func (j JSONValue) MarshalJSON() ([]byte, error) {
	if j.V == nil {
		return []byte("null"), nil
	}
	return json.Marshal(j.V)
}

func (j *JSONValue) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &j.V)
}

func (j JSONValue) Value() (driver.Value, error) {
	if j.V == nil {
		return nil, nil
	}
	return json.Marshal(j.V)
}

func (j *JSONValue) Scan(src interface{}) error {
	if src == nil {
		j.V = nil
		return nil
	}
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, &j.V)
	case string:
		return json.Unmarshal([]byte(data), &j.V)
	default:
		return fmt.Errorf("cannot scan %T into JSONValue", src)
	}
}

// ConsoleLogs implements the sqlx Valuer/Scanner pair for a JSONB column.
type ConsoleLogs []ConsoleLog

func (c ConsoleLogs) Value() (driver.Value, error) {
	if len(c) == 0 {
		return nil, nil
	}
	return json.Marshal(c)
}

func (c *ConsoleLogs) Scan(src interface{}) error {
	return scanJSON(src, c)
}

type ExternalCalls []ExternalCall

func (e ExternalCalls) Value() (driver.Value, error) {
	if len(e) == 0 {
		return nil, nil
	}
	return json.Marshal(e)
}

func (e *ExternalCalls) Scan(src interface{}) error {
	return scanJSON(src, e)
}

func scanJSON(src, dst interface{}) error {
	if src == nil {
		return nil
	}
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, dst)
	case string:
		return json.Unmarshal([]byte(data), dst)
	default:
		return fmt.Errorf("cannot scan %T", src)
	}
}
