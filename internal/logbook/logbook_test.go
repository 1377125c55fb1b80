package logbook

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestTailReturnsRecentLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.log")
	book, err := New(path)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	for i := 0; i < 5; i++ {
		book.Info("entry-%d", i)
	}
	lines := book.Tail(3)
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestTailOnMissingFile(t *testing.T) {
	book, err := New(filepath.Join(t.TempDir(), "never-written.log"))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	if lines := book.Tail(4); lines != nil {
		t.Fatalf("Tail on missing file = %v", lines)
	}
}

func TestNewSeedsTailFromPriorSession(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.log")
	first, err := New(path)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	first.Info("opened case-001")
	first.Warn("backend slow")

	// A fresh process reopening the same journal sees the earlier entries.
	second, err := New(path)
	if err != nil {
		t.Fatalf("reopen logbook: %v", err)
	}
	lines := second.Tail(4)
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "opened case-001") || !strings.Contains(lines[1], "backend slow") {
		t.Fatalf("seeded tail wrong: %v", lines)
	}
}

func TestTailIsBounded(t *testing.T) {
	book, err := New(filepath.Join(t.TempDir(), "session.log"))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	for i := 0; i < recentCap+10; i++ {
		book.Info("entry-%d", i)
	}
	lines := book.Tail(recentCap * 2)
	if len(lines) != recentCap {
		t.Fatalf("len(lines) = %d, want %d", len(lines), recentCap)
	}
	if !strings.Contains(lines[len(lines)-1], "entry-") {
		t.Fatalf("unexpected newest line %q", lines[len(lines)-1])
	}
}

func TestLevelsAreRecorded(t *testing.T) {
	book, err := New(filepath.Join(t.TempDir(), "session.log"))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	book.Warn("slow backend")
	book.Error("execute failed")
	lines := book.Tail(2)
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d", len(lines))
	}
	if !strings.Contains(lines[0], "WARN") || !strings.Contains(lines[1], "ERROR") {
		t.Fatalf("levels missing: %v", lines)
	}
}
