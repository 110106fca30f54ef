package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"transponster/internal/logs"
)

const sampleLog = `{"ts":"2026-01-01T00:00:00Z","level":"info","msg":"batch started","component":"workflow","batch_key":"C1/1.0"}
{"ts":"2026-01-01T00:00:01Z","level":"warn","msg":"file failed","event_type":"file_failed","component":"workflow","file_id":"F1"}
{"ts":"2026-01-01T00:00:02Z","level":"error","msg":"upload failed","event_type":"upload_failed","component":"slack","file_id":"F2"}
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transponster.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestLastReturnsNewestLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	lines, offset, err := logs.Last(path, 2, logs.Filter{})
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("offset = %d, want 6", offset)
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "absent.log"), 10, logs.Filter{})
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("expected empty result, got %#v %d %v", lines, offset, err)
	}
}

func TestLastAppliesFilter(t *testing.T) {
	path := writeLog(t, sampleLog)

	tests := []struct {
		name   string
		filter logs.Filter
		want   int
	}{
		{"min level warn", logs.Filter{MinLevel: "warn"}, 2},
		{"event type", logs.Filter{EventType: "upload_failed"}, 1},
		{"component", logs.Filter{Component: "WORKFLOW"}, 2},
		{"file id", logs.Filter{FileID: "F1"}, 1},
		{"no match", logs.Filter{FileID: "F9"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, _, err := logs.Last(path, 10, tt.filter)
			if err != nil {
				t.Fatalf("Last: %v", err)
			}
			if len(lines) != tt.want {
				t.Fatalf("got %d lines, want %d: %#v", len(lines), tt.want, lines)
			}
		})
	}
}

func TestFilterRejectsConsoleLinesOnlyWhenFiltering(t *testing.T) {
	line := "2026-01-01 INFO batch started"
	if !(logs.Filter{}).Match(line) {
		t.Fatal("empty filter should match any line")
	}
	if (logs.Filter{MinLevel: "info"}).Match(line) {
		t.Fatal("field filter cannot match a non-JSON line")
	}
}

func TestFollowEmitsAppendedLinesAndHandlesRotation(t *testing.T) {
	path := writeLog(t, "start\n")
	_, offset, err := logs.Last(path, 1, logs.Filter{})
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	var mu sync.Mutex
	var got []string
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, logs.Filter{}, 20*time.Millisecond, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	appendLine := func(content string) {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			t.Fatalf("open append: %v", err)
		}
		if _, err := f.WriteString(content); err != nil {
			t.Fatalf("append: %v", err)
		}
		_ = f.Close()
	}
	waitFor := func(n int) {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			mu.Lock()
			count := len(got)
			mu.Unlock()
			if count >= n {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Fatalf("timed out waiting for %d lines", n)
	}

	appendLine("later\npartial")
	waitFor(1)
	appendLine(" line\n")
	waitFor(2)

	if err := os.WriteFile(path, []byte("rotated\n"), 0o644); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	waitFor(3)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	want := []string{"later", "partial line", "rotated"}
	for i, line := range want {
		if got[i] != line {
			t.Fatalf("line %d = %q, want %q (all: %#v)", i, got[i], line, got)
		}
	}
}
