package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.jpg", true},
		{"a.JPEG", true},
		{"a.webp", true},
		{"a.tif", true},
		{"a.txt", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := IsImageFile(tt.name); got != tt.want {
			t.Errorf("IsImageFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTileFilenameAndCaptionPath(t *testing.T) {
	name := TileFilename("/src/holiday.photo.jpg", 7, "png")
	if name != "holiday.photo_7.png" {
		t.Errorf("unexpected tile name %q", name)
	}
	if got := CaptionPath("/out/holiday.photo_7.png"); got != "/out/holiday.photo_7.txt" {
		t.Errorf("unexpected caption path %q", got)
	}
}

func TestListImageFilesSortedAndFlat(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.png", "a.jpg", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := ListImageFiles(dir)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 files, got %v", files)
	}
	if filepath.Base(files[0]) != "a.jpg" || filepath.Base(files[1]) != "b.png" {
		t.Errorf("Expected sorted order, got %v", files)
	}
}

func TestIsDirEmpty(t *testing.T) {
	dir := t.TempDir()
	empty, err := IsDirEmpty(dir)
	if err != nil || !empty {
		t.Fatalf("Expected empty dir, got %v, %v", empty, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	empty, err = IsDirEmpty(dir)
	if err != nil || empty {
		t.Fatalf("Expected non-empty dir, got %v, %v", empty, err)
	}
	if _, err := IsDirEmpty(filepath.Join(dir, "missing")); err == nil {
		t.Error("Expected error for missing dir")
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "skip", "a.txt")
	if err := os.WriteFile(src, []byte("caption"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile failed: %v", err)
	}
	if FileExists(src) {
		t.Error("source should be gone")
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "caption" {
		t.Errorf("unexpected destination content %q, %v", data, err)
	}
}

func TestMoveFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := MoveFile(filepath.Join(dir, "missing"), filepath.Join(dir, "dst")); err == nil {
		t.Error("Expected error moving a missing file")
	}
	if FileExists(filepath.Join(dir, "dst")) {
		t.Error("No destination should be left behind")
	}
}

func TestCopyFileFailureKeepsDestination(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "skip", "a_0.png")
	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("earlier tile"), 0644); err != nil {
		t.Fatal(err)
	}

	// reading a directory fails mid-copy
	src := filepath.Join(dir, "not-a-file")
	if err := os.Mkdir(src, 0755); err != nil {
		t.Fatal(err)
	}
	if err := copyFile(src, dst); err == nil {
		t.Fatal("Expected copy error")
	}

	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "earlier tile" {
		t.Errorf("existing destination changed: %q, %v", data, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(dst))
	if len(entries) != 1 {
		t.Errorf("temporary file left behind: %d entries", len(entries))
	}
}

func TestCopyFileReplacesDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	if err := os.WriteFile(src, []byte("new"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copyFile failed: %v", err)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "new" {
		t.Errorf("destination = %q", data)
	}
	info, err := os.Stat(dst)
	if err != nil || info.Mode().Perm() != 0600 {
		t.Errorf("mode not copied: %v, %v", info, err)
	}
}

func TestFormatFileSize(t *testing.T) {
	if got := FormatFileSize(512); got != "512 B" {
		t.Errorf("got %q", got)
	}
	if got := FormatFileSize(1536); got != "1.5 KB" {
		t.Errorf("got %q", got)
	}
}
