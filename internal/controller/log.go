package controller

import "time"

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
}

// logTail is how many entries a status snapshot carries. The full log stays
// in memory for the lifetime of the run; polling clients only need the tail.
const logTail = 50

// runLog is an append-only log owned by a single run. Not safe for concurrent
// use on its own; callers hold the run's lock.
type runLog struct {
	entries []LogEntry
}

func (l *runLog) append(severity Severity, message string) {
	l.entries = append(l.entries, LogEntry{
		Timestamp: time.Now(),
		Severity:  severity,
		Message:   message,
	})
}

// tail returns a copy of the most recent entries.
func (l *runLog) tail() []LogEntry {
	start := 0
	if len(l.entries) > logTail {
		start = len(l.entries) - logTail
	}
	out := make([]LogEntry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}
