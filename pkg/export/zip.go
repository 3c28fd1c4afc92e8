// Package export packs a tile folder for transfer.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ArchiveName is the file name of the archive written into the tile folder
const ArchiveName = "processed_tiles.zip"

// Zip writes ArchiveName into dir containing every regular file of dir,
// stored under its base name. It returns the archive path and the number
// of files added. An existing archive is replaced and never added to itself.
func Zip(dir string) (string, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, fmt.Errorf("read tile folder: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ArchiveName) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	archivePath := filepath.Join(dir, ArchiveName)
	tmp := archivePath + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return "", 0, fmt.Errorf("create archive: %w", err)
	}

	zw := zip.NewWriter(f)
	for _, name := range names {
		if err := addFile(zw, filepath.Join(dir, name)); err != nil {
			zw.Close()
			f.Close()
			os.Remove(tmp)
			return "", 0, fmt.Errorf("add %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", 0, fmt.Errorf("finish archive: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", 0, err
	}
	if err := os.Rename(tmp, archivePath); err != nil {
		os.Remove(tmp)
		return "", 0, err
	}
	return archivePath, len(names), nil
}

func addFile(zw *zip.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(path)
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}
