package caption

import "fmt"

// Source selects the caption applied to every tile of a run: either literal
// text or an entry of the caption library.
type Source struct {
	text    string
	index   int
	fromLib bool
}

// Literal returns a source that always yields text
func Literal(text string) Source {
	return Source{text: text}
}

// FromLibrary returns a source that yields the library entry at index
func FromLibrary(index int) Source {
	return Source{index: index, fromLib: true}
}

// IsLibrary reports whether the source refers to a library entry
func (s Source) IsLibrary() bool {
	return s.fromLib
}

// Resolve returns the caption text. lib may be nil for literal sources.
func (s Source) Resolve(lib *Library) (string, error) {
	if !s.fromLib {
		return s.text, nil
	}
	if lib == nil {
		return "", fmt.Errorf("caption library entry %d requested without a library", s.index)
	}
	return lib.Get(s.index)
}

func (s Source) String() string {
	if s.fromLib {
		return fmt.Sprintf("library[%d]", s.index)
	}
	return fmt.Sprintf("%q", s.text)
}
