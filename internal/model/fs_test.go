package model

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadTree(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src", ".cache"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile := func(path, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, path), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeFile("README.md", "# hi\n")
	writeFile("src/main.go", "package main\n")
	writeFile(".env", "SECRET=1")
	writeFile("src/.cache/blob", "x")

	nodes, err := ReadTree(dir)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}

	flat := FlattenTree(nodes)
	if got := flat["README.md"]; got != "# hi\n" {
		t.Errorf("README.md = %q", got)
	}
	if got := flat["src/main.go"]; got != "package main\n" {
		t.Errorf("src/main.go = %q", got)
	}
	for path := range flat {
		if path == ".env" || path == ".git" || path == "src/.cache/blob" {
			t.Errorf("hidden entry %s included", path)
		}
	}
	if CountFiles(nodes) != 2 {
		t.Errorf("CountFiles = %d, want 2", CountFiles(nodes))
	}
}

func TestReadTreeMissingDir(t *testing.T) {
	if _, err := ReadTree(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
}
