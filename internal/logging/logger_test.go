package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesHeaderAndLines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug", "hive.log")

	logger, err := New(logPath)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Log("agent %s entered state %s", "coder-1", "active")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "Hive Debug Log Started") {
		t.Error("missing log header")
	}
	if !strings.Contains(content, "agent coder-1 entered state active") {
		t.Errorf("missing log line, got:\n%s", content)
	}
}

func TestNewEmptyPathIsNoop(t *testing.T) {
	logger, err := New("")
	if err != nil {
		t.Fatalf("New(\"\") failed: %v", err)
	}

	logger.Log("dropped")
	if err := logger.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger

	logger.Log("ignored")
	if err := logger.Close(); err != nil {
		t.Errorf("Close on nil logger: %v", err)
	}
}

func TestAppendsToExistingFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "hive.log")

	first, err := New(logPath)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	first.Log("first session")
	first.Close()

	second, err := New(logPath)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	second.Log("second session")
	second.Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "first session") || !strings.Contains(content, "second session") {
		t.Errorf("log did not append across sessions:\n%s", content)
	}
}
