// Package logbook persists a session's case activity to an append-only
// text file. Compliance reviews read this journal after the fact, so
// entries are only ever appended, never rewritten.
//
// The console renders the journal's tail on every frame, so the most
// recent lines are kept in memory; disk is touched once per append, never
// per read.
package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a journal entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// recentCap bounds the in-memory tail, comfortably above anything the
// journal panel asks for.
const recentCap = 64

// Logbook appends timestamped lines to a single journal file and keeps the
// last recentCap lines in memory for the journal panel.
type Logbook struct {
	path   string
	mu     sync.Mutex
	recent []string
}

// New creates a logbook writing to path. If the file already holds entries
// from an earlier session they seed the in-memory tail, so the panel shows
// continuity across restarts.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	lb := &Logbook{path: path}
	lb.seedRecent()
	return lb, nil
}

func (l *Logbook) seedRecent() {
	file, err := os.Open(l.path)
	if err != nil {
		return
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		l.push(line)
	}
}

// push assumes l.mu is held or the logbook is not yet shared.
func (l *Logbook) push(line string) {
	l.recent = append(l.recent, line)
	if len(l.recent) > recentCap {
		l.recent = l.recent[len(l.recent)-recentCap:]
	}
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a single entry to the journal. A disk write failure is
// swallowed; the entry still reaches the in-memory tail so the operator
// sees it even when the journal file is unwritable.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	line := fmt.Sprintf("%s %-5s %s",
		time.Now().UTC().Format(time.RFC3339),
		string(level),
		strings.TrimSpace(message),
	)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.push(line)
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line + "\n")
}

// Tail returns up to maxLines of the most recent entries, served from
// memory.
func (l *Logbook) Tail(maxLines int) []string {
	if l == nil || maxLines <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.recent) == 0 {
		return nil
	}
	start := len(l.recent) - maxLines
	if start < 0 {
		start = 0
	}
	out := make([]string, len(l.recent)-start)
	copy(out, l.recent[start:])
	return out
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}
