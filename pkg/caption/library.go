package caption

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/menta2k/tile-curator/internal/utils"
)

// DefaultLibraryFile is the file name of the caption library
const DefaultLibraryFile = "Unified_Caps.txt"

// ErrNoSuchCaption is returned for a library index that does not exist
var ErrNoSuchCaption = errors.New("no such caption")

// Library is a persisted list of captions, most recently used first.
// The file holds one caption per line.
type Library struct {
	path     string
	mu       sync.Mutex
	captions []string
}

// OpenLibrary loads the library at path. A missing file is an empty library.
func OpenLibrary(path string) (*Library, error) {
	lib := &Library{path: path}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return lib, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open caption library: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lib.captions = append(lib.captions, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read caption library: %w", err)
	}
	return lib, nil
}

// Path returns the file backing the library
func (l *Library) Path() string {
	return l.path
}

// Captions returns a copy of the captions, most recently used first
func (l *Library) Captions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.captions...)
}

// Get returns the caption at index
func (l *Library) Get(index int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.captions) {
		return "", fmt.Errorf("%w: index %d of %d", ErrNoSuchCaption, index, len(l.captions))
	}
	return l.captions[index], nil
}

// Add puts caption at the front of the library, removing an earlier copy,
// and persists the library. Blank captions are ignored.
func (l *Library) Add(caption string) error {
	caption = strings.Join(strings.Fields(caption), " ")
	if caption == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, 0, len(l.captions)+1)
	out = append(out, caption)
	for _, c := range l.captions {
		if c != caption {
			out = append(out, c)
		}
	}
	l.captions = out
	return l.save()
}

func (l *Library) save() error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := utils.EnsureDir(dir); err != nil {
			return err
		}
	}
	var sb strings.Builder
	for _, c := range l.captions {
		sb.WriteString(c)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(l.path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("save caption library: %w", err)
	}
	return nil
}
