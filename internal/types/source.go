package types

import (
	"errors"
	"fmt"
)

// ErrSourceSetFrozen is returned when a frozen SourceSet is extended.
var ErrSourceSetFrozen = errors.New("source set is frozen")

// SourceFile is a single source unit read during dependency resolution.
type SourceFile struct {
	// Name is the source unit name the compiler sees (slash-separated, cleaned)
	Name string `json:"name"`
	// Path is where the file was read from on disk
	Path    string `json:"path"`
	Content string `json:"content"`
}

// SourceSet maps source unit names to file contents in discovery order.
// It is extended during resolution and frozen before compilation.
type SourceSet struct {
	order  []string
	files  map[string]SourceFile
	frozen bool
}

// NewSourceSet creates an empty, unfrozen SourceSet
func NewSourceSet() *SourceSet {
	return &SourceSet{files: make(map[string]SourceFile)}
}

// Add appends a file. Adding a name twice is an error, as is adding to a frozen set.
func (s *SourceSet) Add(f SourceFile) error {
	if s.frozen {
		return ErrSourceSetFrozen
	}
	if f.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if _, exists := s.files[f.Name]; exists {
		return fmt.Errorf("source %q already present", f.Name)
	}
	s.order = append(s.order, f.Name)
	s.files[f.Name] = f
	return nil
}

// Freeze prevents further additions
func (s *SourceSet) Freeze() { s.frozen = true }

// Frozen reports whether Freeze has been called
func (s *SourceSet) Frozen() bool { return s.frozen }

// Has reports whether name is present
func (s *SourceSet) Has(name string) bool {
	_, ok := s.files[name]
	return ok
}

// Get returns the file for name
func (s *SourceSet) Get(name string) (SourceFile, bool) {
	f, ok := s.files[name]
	return f, ok
}

// Names returns source names in discovery order. The slice is a copy.
func (s *SourceSet) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Files returns files in discovery order
func (s *SourceSet) Files() []SourceFile {
	out := make([]SourceFile, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.files[name])
	}
	return out
}

// Len returns the number of files
func (s *SourceSet) Len() int { return len(s.order) }

// Contents returns a name → content map, the shape both the compiler and
// the analysis service consume.
func (s *SourceSet) Contents() map[string]string {
	out := make(map[string]string, len(s.files))
	for name, f := range s.files {
		out[name] = f.Content
	}
	return out
}
