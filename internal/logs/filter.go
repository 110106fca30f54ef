package logs

import (
	"encoding/json"
	"strings"
)

// Record is the subset of a JSON log line used for filtering.
type Record struct {
	Level     string `json:"level"`
	Message   string `json:"msg"`
	EventType string `json:"event_type"`
	Component string `json:"component"`
	FileID    string `json:"file_id"`
	BatchKey  string `json:"batch_key"`
}

// Parse decodes a JSON log line. ok is false for other formats.
func Parse(line string) (Record, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
		return Record{}, false
	}
	return rec, true
}

// Filter selects log lines. Zero fields match everything.
type Filter struct {
	MinLevel  string
	EventType string
	Component string
	FileID    string
}

func (f Filter) empty() bool {
	return f.MinLevel == "" && f.EventType == "" && f.Component == "" && f.FileID == ""
}

// Match reports whether line passes the filter.
func (f Filter) Match(line string) bool {
	if f.empty() {
		return true
	}
	rec, ok := Parse(line)
	if !ok {
		return false
	}
	if f.MinLevel != "" && levelRank(rec.Level) < levelRank(f.MinLevel) {
		return false
	}
	if f.EventType != "" && rec.EventType != f.EventType {
		return false
	}
	if f.Component != "" && !strings.EqualFold(rec.Component, f.Component) {
		return false
	}
	if f.FileID != "" && rec.FileID != f.FileID {
		return false
	}
	return true
}

func levelRank(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return 0
	case "info", "":
		return 1
	case "warn", "warning":
		return 2
	case "error":
		return 3
	default:
		return 1
	}
}
