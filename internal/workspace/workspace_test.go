package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAcquireCreatesUniqueDirectories(t *testing.T) {
	m := NewManager(t.TempDir())

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		ws, err := m.Acquire()
		if err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
		if seen[ws.Path()] {
			t.Fatalf("duplicate workspace path %s", ws.Path())
		}
		seen[ws.Path()] = true
		if !strings.HasPrefix(filepath.Base(ws.Path()), Prefix) {
			t.Fatalf("workspace %s missing prefix %s", ws.Path(), Prefix)
		}
		ws.Release()
	}
}

func TestReleaseRemovesEverything(t *testing.T) {
	base := t.TempDir()
	m := NewManager(base)

	ws, err := m.Acquire()
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if err := ws.WriteFile("program.st", "PROGRAM main\nEND_PROGRAM\n"); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	ws.Release()

	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatalf("list base: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), Prefix) {
			t.Fatalf("workspace %s survived release", e.Name())
		}
	}

	// Second release is a no-op.
	ws.Release()
}

func TestWriteFilePreservesBytes(t *testing.T) {
	m := NewManager(t.TempDir())
	ws, err := m.Acquire()
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer ws.Release()

	content := "<?xml version=\"1.0\"?>\n<project>\r\n\t<pou name=\"main\"/>\n</project>\n"
	if err := ws.WriteFile("plc.xml", content); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(ws.Path(), "plc.xml"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != content {
		t.Fatalf("content mutated: %q != %q", data, content)
	}
}

func TestReadFixedAbsentIsNotAnError(t *testing.T) {
	m := NewManager(t.TempDir())
	ws, err := m.Acquire()
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer ws.Release()

	content, ok, err := ws.ReadFixed("program.st")
	if err != nil {
		t.Fatalf("absence must not be an error, got %v", err)
	}
	if ok || content != "" {
		t.Fatalf("expected absent, got ok=%v content=%q", ok, content)
	}

	if err := ws.WriteFile("program.st", "PROGRAM"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	content, ok, err = ws.ReadFixed("program.st")
	if err != nil || !ok || content != "PROGRAM" {
		t.Fatalf("expected present, got ok=%v content=%q err=%v", ok, content, err)
	}
}

func TestReadMatchingExcludesInputAndForeignExtensions(t *testing.T) {
	m := NewManager(t.TempDir())
	ws, err := m.Acquire()
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer ws.Release()

	for name, content := range map[string]string{
		"program.st":    "input, excluded by name",
		"POUS.c":        "pous source",
		"POUS.h":        "pous header",
		"LOCATED_VARIABLES.csv": "var table",
		"RES0.c":        "resource zero",
		"notes.txt":     "wrong extension",
	} {
		if err := ws.WriteFile(name, content); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	files, err := ws.ReadMatching(map[string]bool{"program.st": true}, []string{".c", ".h", ".csv"})
	if err != nil {
		t.Fatalf("read matching: %v", err)
	}

	if len(files) != 4 {
		t.Fatalf("expected 4 harvested files, got %d: %v", len(files), files)
	}
	if _, present := files["program.st"]; present {
		t.Fatal("input file must be excluded from harvest")
	}
	if _, present := files["notes.txt"]; present {
		t.Fatal("non-matching extension must be excluded")
	}
	if files["RES0.c"] != "resource zero" {
		t.Fatalf("content mismatch for RES0.c: %q", files["RES0.c"])
	}
}

func TestStaleAndSweep(t *testing.T) {
	base := t.TempDir()
	m := NewManager(base)

	old := filepath.Join(base, Prefix+"leaked")
	if err := os.MkdirAll(old, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	fresh, err := m.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer fresh.Release()

	// Unrelated directories are never touched.
	if err := os.MkdirAll(filepath.Join(base, "unrelated"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	removed, err := m.Sweep(time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("stale workspace should be gone")
	}
	if _, err := os.Stat(fresh.Path()); err != nil {
		t.Fatal("fresh workspace must survive the sweep")
	}
	if _, err := os.Stat(filepath.Join(base, "unrelated")); err != nil {
		t.Fatal("unrelated directory must survive the sweep")
	}
}
