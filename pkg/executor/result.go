package executor

import (
	"time"

	"github.com/platewatch/platewatch/pkg/ir"
)

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogEntry is one line of the execution trail. Entries are append-only and
// ordered by emission.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// ExecutionResult is the full account of one run. Success is true only when
// the walk reached an end block; Outcome is that block's verdict. Error
// carries the failure diagnostic when Success is false.
type ExecutionResult struct {
	Success bool       `json:"success"`
	Outcome ir.Outcome `json:"outcome,omitempty"`
	Error   string     `json:"error,omitempty"`
	Logs    []LogEntry `json:"logs"`
}
