package export

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
)

func TestZip(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a_0.png": "png bytes",
		"a_0.txt": "a caption",
		"b_1.jpg": "jpg bytes",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "skip"), 0755); err != nil {
		t.Fatal(err)
	}

	path, n, err := Zip(dir)
	if err != nil {
		t.Fatalf("Zip failed: %v", err)
	}
	if n != 3 || filepath.Base(path) != ArchiveName {
		t.Errorf("Zip = %s, %d", path, n)
	}

	// A second run replaces the archive without including it
	if _, n, err = Zip(dir); err != nil || n != 3 {
		t.Fatalf("second Zip = %d, %v", n, err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if string(data) != files[f.Name] {
			t.Errorf("%s content = %q", f.Name, data)
		}
	}
	sort.Strings(names)
	if len(names) != 3 || names[0] != "a_0.png" || names[2] != "b_1.jpg" {
		t.Errorf("unexpected entries %v", names)
	}
}

func TestZipMissingDir(t *testing.T) {
	if _, _, err := Zip(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error")
	}
}
